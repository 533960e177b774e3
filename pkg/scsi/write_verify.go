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

// writeVerifyState tracks progress of the read-back-and-compare phase
// across however many chunks a WRITE VERIFY ends up needing; it is not
// stored on api.Command because nothing outside this file re-enters the
// op between chunks.
type writeVerifyState struct {
	dev       *api.Device
	data      *api.IOVec
	base      int64 // cmd.Offset, for computing an absolute miscompare offset
	offset    int64 // current read-back position
	remaining int64
	finish    api.Completion
}

// WriteVerifyCommand implements WRITE VERIFY (0x2e/0x2e-like 10/12/16
// variants): write the full buffer, then read it back and compare,
// chunked to the device's MaxXferLen so a large verify doesn't require
// a single oversized read-back buffer.
func WriteVerifyCommand(dev *api.Device, tr api.Transport, cmd *api.Command) {
	finish := track(dev, tr, cmd.Complete)
	doWrite(dev, cmd.Data, cmd.Offset, cmd.Length, func(err error) {
		if err != nil {
			finish(err)
			return
		}
		st := &writeVerifyState{
			dev:       dev,
			data:      cmd.Data,
			base:      cmd.Offset,
			offset:    cmd.Offset,
			remaining: cmd.Length,
			finish:    finish,
		}
		st.step()
	})
}

func (st *writeVerifyState) maxChunk() int64 {
	max := int64(st.dev.MaxXferLen) * int64(st.dev.BlockSize)
	if max <= 0 {
		max = st.remaining
	}
	return max
}

func (st *writeVerifyState) step() {
	if st.remaining <= 0 {
		st.finish(nil)
		return
	}
	chunk := st.remaining
	if m := st.maxChunk(); chunk > m {
		chunk = m
	}
	readBuf := make([]byte, chunk)
	relOffset := st.offset - st.base
	doRead(st.dev, api.NewIOVec(readBuf), st.offset, chunk, func(err error) {
		if err != nil {
			st.finish(err)
			return
		}
		expected := st.data.Slice(relOffset, chunk)
		if mismatch := expected.CompareAt(0, readBuf); mismatch != -1 {
			st.dev.IncMiscompare()
			st.finish(MiscompareError(relOffset + mismatch))
			return
		}
		st.offset += chunk
		st.remaining -= chunk
		st.step()
	})
}
