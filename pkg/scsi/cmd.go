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
	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/util"
)

const (
	CBD_GROUPID_0 = iota
	CBD_GROUPID_1
	CBD_GROUPID_2
	CBD_GROUPID_3
	CBD_GROUPID_4
	CBD_GROUPID_5
	CBD_GROUPID_6
	CBD_GROUPID_7
)

const (
	CDB_GROUP0 = 6  /*  6-byte commands */
	CDB_GROUP1 = 10 /* 10-byte commands */
	CDB_GROUP2 = 10 /* 10-byte commands */
	CDB_GROUP3 = 0  /* reserved */
	CDB_GROUP4 = 16 /* 16-byte commands */
	CDB_GROUP5 = 12 /* 12-byte commands */
	CDB_GROUP6 = 0  /* vendor specific  */
	CDB_GROUP7 = 0  /* vendor specific  */
)

func SCSICDBGroupID(opcode byte) byte {
	return ((opcode >> 5) & 0x7)
}

/*
 * Transfer Length (if any)
 * Parameter List Length (if any)
 * Allocation Length (if any)
 */
func SCSICDBBufXLength(scb []byte) (int64, bool) {
	var (
		opcode byte
		length int64
		group  byte
		ok     bool = true
	)
	opcode = scb[0]
	group = SCSICDBGroupID(opcode)

	switch group {
	case CBD_GROUPID_0:
		length = int64(scb[4])
	case CBD_GROUPID_1, CBD_GROUPID_2:
		length = int64(util.GetUnalignedUint16(scb[7:9]))
	case CBD_GROUPID_3:
		if opcode == 0x7F {
			length = int64(scb[7])
		} else {
			ok = false
		}
	case CBD_GROUPID_4:
		length = int64(util.GetUnalignedUint32(scb[10:14]))
	case CBD_GROUPID_5:
		length = int64(util.GetUnalignedUint32(scb[6:10]))
	default:
		ok = false
	}
	return length, ok
}

// SCSICDBLBA extracts the logical block address field of a READ/WRITE
// class CDB, per command group.
func SCSICDBLBA(scb []byte) uint64 {
	switch SCSICDBGroupID(scb[0]) {
	case CBD_GROUPID_0:
		return uint64(scb[1]&0x1f)<<16 | uint64(scb[2])<<8 | uint64(scb[3])
	case CBD_GROUPID_1, CBD_GROUPID_2:
		return uint64(util.GetUnalignedUint32(scb[2:6]))
	case CBD_GROUPID_5:
		return uint64(util.GetUnalignedUint32(scb[2:6]))
	default:
		return util.GetUnalignedUint64(scb[2:10])
	}
}

// scsiCDBXferBlocks extracts the transfer length in blocks for a
// READ/WRITE class CDB. A 6-byte CDB's zero length means 256 blocks.
func scsiCDBXferBlocks(scb []byte) uint64 {
	switch SCSICDBGroupID(scb[0]) {
	case CBD_GROUPID_0:
		n := uint64(scb[4])
		if n == 0 {
			n = 256
		}
		return n
	case CBD_GROUPID_1, CBD_GROUPID_2:
		return uint64(util.GetUnalignedUint16(scb[7:9]))
	case CBD_GROUPID_5:
		return uint64(util.GetUnalignedUint32(scb[6:10]))
	default:
		return uint64(util.GetUnalignedUint32(scb[10:14]))
	}
}

func cdbLenForGroup(opcode byte) int {
	switch SCSICDBGroupID(opcode) {
	case CBD_GROUPID_0:
		return CDB_GROUP0
	case CBD_GROUPID_1, CBD_GROUPID_2:
		return CDB_GROUP1
	case CBD_GROUPID_4:
		return CDB_GROUP4
	case CBD_GROUPID_5:
		return CDB_GROUP5
	default:
		return 0
	}
}

// DecodeCommand fills cmd.Offset and cmd.Length from the CDB for the
// opcodes this core dispatches itself, multiplying LBA and block counts
// out by dev's block size and validating the range against the device
// geometry and transfer-length limit. Opcodes the core does not decode
// (they can only be served by a backend passthrough) are left untouched.
func DecodeCommand(dev *api.Device, cmd *api.Command) error {
	opcode := api.SCSICommandType(cmd.CDB[0])
	switch opcode {
	case api.READ_6, api.READ_10, api.READ_12, api.READ_16,
		api.WRITE_6, api.WRITE_10, api.WRITE_12, api.WRITE_16,
		api.WRITE_VERIFY, api.WRITE_VERIFY_12, api.WRITE_VERIFY_16,
		api.WRITE_SAME, api.WRITE_SAME_16:
		if len(cmd.CDB) < cdbLenForGroup(byte(opcode)) {
			return newStatusError(ILLEGAL_REQUEST, ASC_INVALID_FIELD_IN_CDB, 0, nil)
		}
		cmd.Offset = int64(SCSICDBLBA(cmd.CDB)) * int64(dev.BlockSize)
		cmd.Length = int64(scsiCDBXferBlocks(cmd.CDB)) * int64(dev.BlockSize)
	case api.COMPARE_AND_WRITE:
		if len(cmd.CDB) < CDB_GROUP4 {
			return newStatusError(ILLEGAL_REQUEST, ASC_INVALID_FIELD_IN_CDB, 0, nil)
		}
		// CAW carries NUMBER OF LOGICAL BLOCKS in byte 13; the data-out
		// buffer is twice that long (compare half then write half).
		cmd.Offset = int64(SCSICDBLBA(cmd.CDB)) * int64(dev.BlockSize)
		cmd.Length = int64(cmd.CDB[13]) * int64(dev.BlockSize)
		if cmd.Length > 0 && cmd.Data.Len() < 2*cmd.Length {
			return newStatusError(ILLEGAL_REQUEST, ASC_PARAMETER_LIST_LENGTH_ERR, 0, nil)
		}
	case api.SYNCHRONIZE_CACHE, api.SYNCHRONIZE_CACHE_16:
		cmd.Offset, cmd.Length = 0, 0
		return nil
	default:
		return nil
	}

	// WRITE VERIFY is exempt from the transfer-length cap: its read-back
	// phase chunks itself to MaxXferLen, so an oversized verify is
	// served rather than rejected.
	switch opcode {
	case api.WRITE_VERIFY, api.WRITE_VERIFY_12, api.WRITE_VERIFY_16:
	default:
		if max := int64(dev.MaxXferLen) * int64(dev.BlockSize); max > 0 && cmd.Length > max {
			return newStatusError(ILLEGAL_REQUEST, ASC_INVALID_FIELD_IN_CDB, 0, nil)
		}
	}
	if uint64(cmd.Offset)+uint64(cmd.Length) > dev.SizeBytes() {
		return newStatusError(ILLEGAL_REQUEST, ASC_LBA_OUT_OF_RANGE, 0, nil)
	}
	return nil
}
