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

// Completion is invoked exactly once per dispatched Command with the
// terminal outcome: nil for SAM_STAT_GOOD, or a non-nil error the caller
// translates into sense data. It is the Go replacement for tcmu-runner's
// overloaded ASYNC_HANDLED-or-SAM-status return value: dispatch always
// returns immediately, and the real result always arrives through this
// callback, whether the backend finished synchronously on a worker or
// asynchronously off an AIO completion thread.
type Completion func(error)

// Command is one SCSI command in flight against a Device.
type Command struct {
	CDB    []byte
	Device *Device
	Data   *IOVec
	Sense  *SenseBuffer

	// Offset and Length are the byte range decoded from the CDB, already
	// multiplied out by the device's block size.
	Offset int64
	Length int64

	// State is an opaque per-command slot a backend's passthrough
	// handler can use to carry its own progress across async hops; the
	// core never touches it.
	State interface{}

	complete Completion
}

// SetCompletion installs the callback the dispatcher will invoke when the
// command finishes. It is set once, before the first backend call.
func (c *Command) SetCompletion(fn Completion) {
	c.complete = fn
}

// Complete invokes the installed completion, if any. Backends and
// composite state machines call this directly instead of returning a
// status value.
func (c *Command) Complete(err error) {
	if c.complete != nil {
		c.complete(err)
	}
}
