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

// doRead, doWrite, doFlush and doDiscard are the primitive
// backend calls every other op (top-level dispatch, composite state
// machines) is built from. None of them touch the Tracker: callers track
// once, at the outermost command boundary, via track().

func doRead(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	schedule(dev, func(d api.Completion) {
		dev.Backend.Read(dev, data, offset, length, d)
	}, done)
}

func doWrite(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	schedule(dev, func(d api.Completion) {
		dev.Backend.Write(dev, data, offset, length, d)
	}, done)
}

func doFlush(dev *api.Device, done api.Completion) {
	schedule(dev, func(d api.Completion) {
		dev.Backend.Flush(dev, d)
	}, done)
}

func doDiscard(dev *api.Device, offset, length int64, done api.Completion) bool {
	dc, ok := dev.Backend.(api.Discarder)
	if !ok {
		return false
	}
	schedule(dev, func(d api.Completion) {
		dc.Discard(dev, offset, length, d)
	}, done)
	return true
}

// ReadCommand, WriteCommand, FlushCommand are top-level entry points the
// dispatcher calls for READ/WRITE/SYNCHRONIZE_CACHE opcodes. Each tracks
// the command exactly once around its single backend call.
func ReadCommand(dev *api.Device, tr api.Transport, cmd *api.Command) {
	doRead(dev, cmd.Data, cmd.Offset, cmd.Length, track(dev, tr, cmd.Complete))
}

func WriteCommand(dev *api.Device, tr api.Transport, cmd *api.Command) {
	doWrite(dev, cmd.Data, cmd.Offset, cmd.Length, track(dev, tr, cmd.Complete))
}

func FlushCommand(dev *api.Device, tr api.Transport, cmd *api.Command) {
	doFlush(dev, track(dev, tr, cmd.Complete))
}
