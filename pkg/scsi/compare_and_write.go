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

// CompareAndWriteCommand implements COMPARE AND WRITE (0x89): cmd.Data
// carries the compare buffer followed by the write buffer, each
// cmd.Length bytes. The existing device content at cmd.Offset is read
// and compared against the compare buffer; only on a full match is the
// write buffer written.
//
// The comparison direction is cmpOffset != -1 for "found a mismatch",
// the same convention WRITE VERIFY uses. An earlier revision of this
// routine used cmpOffset == -1 as the mismatch signal, which meant a
// perfectly matching compare buffer was reported as MISCOMPARE and a
// genuinely mismatched one sailed through to the write; that inversion
// is not reproduced here.
func CompareAndWriteCommand(dev *api.Device, tr api.Transport, cmd *api.Command) {
	finish := track(dev, tr, cmd.Complete)
	length := cmd.Length
	if length == 0 {
		finish(nil)
		return
	}
	compareView := cmd.Data.Slice(0, length)
	writeView := cmd.Data.Slice(length, length)

	existing := make([]byte, length)
	doRead(dev, api.NewIOVec(existing), cmd.Offset, length, func(err error) {
		if err != nil {
			finish(err)
			return
		}
		if mismatch := compareView.CompareAt(0, existing); mismatch != -1 {
			dev.IncMiscompare()
			finish(MiscompareError(mismatch))
			return
		}
		doWrite(dev, writeView, cmd.Offset, length, finish)
	})
}
