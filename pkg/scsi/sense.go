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

import (
	"errors"

	"github.com/gostor/gotgt-async-core/pkg/api"
)

// StatusError carries a SCSI sense key/ASC pair a caller has already
// decided on (a composite op detecting MISCOMPARE, for instance) rather
// than one to be inferred from a backend errno.
type StatusError struct {
	Key  byte
	Asc  SCSISubError
	Info uint32
	err  error
}

func (e *StatusError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return "scsi status error"
}

func (e *StatusError) Unwrap() error { return e.err }

func newStatusError(key byte, asc SCSISubError, info uint32, err error) *StatusError {
	return &StatusError{Key: key, Asc: asc, Info: info, err: err}
}

// MiscompareError builds a StatusError for a COMPARE_AND_WRITE or
// WRITE_VERIFY mismatch at the given absolute byte offset within the
// command's data, matching the fixed-format "information" field SCSI
// initiators expect from a MISCOMPARE sense.
func MiscompareError(offset int64) *StatusError {
	return newStatusError(MISCOMPARE, ASC_MISCOMPARE_DURING_VERIFY_OPERATION, uint32(offset),
		errors.New("miscompare during verify"))
}

// EncodeSense renders a fixed-format (0x70) sense buffer for the given key
// and ASC/ASCQ pair, with the 4-byte INFORMATION field set from info when
// valid is true.
func EncodeSense(key byte, asc SCSISubError, info uint32, valid bool) *api.SenseBuffer {
	buf := make([]byte, 18)
	buf[0] = 0x70
	if valid {
		buf[0] |= 0x80
	}
	buf[2] = key
	buf[3] = byte(info >> 24)
	buf[4] = byte(info >> 16)
	buf[5] = byte(info >> 8)
	buf[6] = byte(info)
	buf[7] = byte(len(buf) - 8)
	buf[12] = byte(asc >> 8)
	buf[13] = byte(asc)
	return &api.SenseBuffer{Buffer: buf, Length: uint32(len(buf))}
}

// EncodeStatusError renders sense data for a StatusError; any other
// error is classified via ClassifyErrno (a medium error for any non-nil
// error).
func EncodeStatusError(err error) *api.SenseBuffer {
	var se *StatusError
	if errors.As(err, &se) {
		return EncodeSense(se.Key, se.Asc, se.Info, se.Info != 0 || se.Key == MISCOMPARE)
	}
	key, asc := ClassifyErrno(err)
	return EncodeSense(key, asc, 0, false)
}

// ClassifyErrno maps a backend I/O error to a sense key/ASC pair, mirroring
// the errno contract real tcmu-runner handlers report: everything that
// reaches here is a medium error, since the dispatcher intercepts ENOMEM
// (bare TASK_SET_FULL, no sense) and the lock-related errnos (ESHUTDOWN,
// ETIMEDOUT) before calling this, as their meaning depends on whether the
// command was acquiring the lock or already holding it.
func ClassifyErrno(err error) (byte, SCSISubError) {
	if err == nil {
		return NO_SENSE, NO_ADDITIONAL_SENSE
	}
	return MEDIUM_ERROR, ASC_READ_ERROR
}
