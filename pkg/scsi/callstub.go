/*
Copyright 2016 The GoStor Authors All rights reserved.

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

package scsi

import "github.com/gostor/gotgt-async-core/pkg/api"

// track wraps done so that dev's Tracker sees exactly one Start/Finish
// pair for the generic-path command, however many primitive backend calls
// it ends up making underneath it (composite ops). Call it once per
// top-level Command; primitive sub-calls issued on behalf of that command
// use schedule directly instead. A declined passthrough attempt has
// already made its own Start/Finish pair in Dispatch before this runs.
//
// When the Finish takes the device idle, the transport is told via
// ProcessingComplete — after the command's own completion, so the
// transport sees the finished command in the batch it reaps.
func track(dev *api.Device, transport api.Transport, done api.Completion) api.Completion {
	dev.Tracker.Start()
	return func(err error) {
		idle := dev.Tracker.Finish()
		done(err)
		if idle && transport != nil {
			transport.ProcessingComplete(dev)
		}
	}
}

// schedule is the call stub: it runs fn on the calling goroutine when the
// backend is AIO-capable (fn itself only schedules the AIO and returns
// quickly; done fires later off the AIO completion thread), or hands fn
// to the device's worker pool otherwise, so a blocking backend call never
// runs on the dispatching goroutine. This is the Go shape of
// call_stub_exec_async/call_stub_exec_sync.
func schedule(dev *api.Device, fn func(done api.Completion), done api.Completion) {
	if dev.Backend.AIOSupported() {
		fn(done)
		return
	}
	dev.Pool.Submit(func() { fn(done) })
}
