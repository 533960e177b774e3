/*
Copyright 2017 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

// Transport is the narrow slice of the kernel/uio-facing side that the
// lock coordinator and dispatcher need to signal state the transport
// layer must act on. A real frontend (not part of this core) implements
// it to trigger HA failover or initiator notification; tests use a stub.
type Transport interface {
	// ProcessingComplete tells the transport the last in-flight command
	// for this device just completed, so it may reap a whole batch of
	// completions from its ring in one pass instead of per command.
	ProcessingComplete(dev *Device)

	// NotifyLockLost tells the transport this device's exclusive lock
	// was lost to the cluster (blacklisted); commands in flight should
	// fail NOT READY / state transition so the initiator retries against
	// the new owner.
	NotifyLockLost(dev *Device)

	// NotifyConnLost tells the transport the backend connection timed
	// out; in-flight commands should fail BUSY so the initiator retries
	// the same path once connectivity returns.
	NotifyConnLost(dev *Device)
}
