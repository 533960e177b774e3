/*
Copyright 2015 The GoStor Authors All rights reserved.

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
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostor/gotgt-async-core/pkg/api"
)

func decodeDevice() *api.Device {
	return &api.Device{
		Name:       "dec0",
		BlockSize:  512,
		NumLBAs:    2048, // 1 MiB
		MaxXferLen: 1024,
	}
}

func TestDecodeRead10(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 10)
	cdb[0] = byte(api.READ_10)
	binary.BigEndian.PutUint32(cdb[2:6], 16)
	binary.BigEndian.PutUint16(cdb[7:9], 4)
	cmd := &api.Command{CDB: cdb}
	require.NoError(t, DecodeCommand(dev, cmd))
	assert.EqualValues(t, 16*512, cmd.Offset)
	assert.EqualValues(t, 4*512, cmd.Length)
}

func TestDecodeRead16(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 16)
	cdb[0] = byte(api.READ_16)
	binary.BigEndian.PutUint64(cdb[2:10], 100)
	binary.BigEndian.PutUint32(cdb[10:14], 8)
	cmd := &api.Command{CDB: cdb}
	require.NoError(t, DecodeCommand(dev, cmd))
	assert.EqualValues(t, 100*512, cmd.Offset)
	assert.EqualValues(t, 8*512, cmd.Length)
}

// A 6-byte CDB's zero transfer length means 256 blocks.
func TestDecodeRead6ZeroLength(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 6)
	cdb[0] = byte(api.READ_6)
	cmd := &api.Command{CDB: cdb}
	require.NoError(t, DecodeCommand(dev, cmd))
	assert.EqualValues(t, 256*512, cmd.Length)
}

func TestDecodeCompareAndWrite(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 16)
	cdb[0] = byte(api.COMPARE_AND_WRITE)
	binary.BigEndian.PutUint64(cdb[2:10], 10)
	cdb[13] = 1
	cmd := &api.Command{CDB: cdb, Data: api.NewIOVec(make([]byte, 1024))}
	require.NoError(t, DecodeCommand(dev, cmd))
	assert.EqualValues(t, 5120, cmd.Offset)
	assert.EqualValues(t, 512, cmd.Length)
}

func TestDecodeCompareAndWriteShortParameterList(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 16)
	cdb[0] = byte(api.COMPARE_AND_WRITE)
	cdb[13] = 2
	cmd := &api.Command{CDB: cdb, Data: api.NewIOVec(make([]byte, 1024))}
	err := DecodeCommand(dev, cmd)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ILLEGAL_REQUEST, se.Key)
	assert.Equal(t, ASC_PARAMETER_LIST_LENGTH_ERR, se.Asc)
}

func TestDecodeRejectsOverMaxXfer(t *testing.T) {
	dev := decodeDevice()
	dev.MaxXferLen = 2
	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_10)
	binary.BigEndian.PutUint16(cdb[7:9], 4)
	cmd := &api.Command{CDB: cdb}
	err := DecodeCommand(dev, cmd)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ASC_INVALID_FIELD_IN_CDB, se.Asc)
}

func TestDecodeRejectsOutOfRange(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_10)
	binary.BigEndian.PutUint32(cdb[2:6], 2047)
	binary.BigEndian.PutUint16(cdb[7:9], 2)
	cmd := &api.Command{CDB: cdb}
	err := DecodeCommand(dev, cmd)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ASC_LBA_OUT_OF_RANGE, se.Asc)
}

func TestDecodeLeavesPassthroughOpcodesAlone(t *testing.T) {
	dev := decodeDevice()
	cdb := make([]byte, 6)
	cdb[0] = byte(api.INQUIRY)
	cmd := &api.Command{CDB: cdb}
	require.NoError(t, DecodeCommand(dev, cmd))
	assert.Zero(t, cmd.Offset)
	assert.Zero(t, cmd.Length)
}

func TestSCSICDBBufXLength(t *testing.T) {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_10)
	binary.BigEndian.PutUint16(cdb[7:9], 7)
	length, ok := SCSICDBBufXLength(cdb)
	require.True(t, ok)
	assert.EqualValues(t, 7, length)
}
