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

	"golang.org/x/sys/unix"

	"github.com/gostor/gotgt-async-core/pkg/api"
)

// Result is the terminal SAM status and, for CHECK CONDITION, the sense
// data a dispatched Command finished with.
type Result struct {
	Status byte
	Sense  *api.SenseBuffer
}

// Dispatch decodes cmd's CDB opcode, computes its offset/length against
// dev's block size, and runs it through to completion, invoking onDone
// exactly once with the terminal SCSI status. It first gives the backend
// a chance to claim the opcode via PassthroughHandler; an opcode the
// backend doesn't claim falls through to the generic table below, each
// entry of which performs its own independent track/finish, matching
// libtcmu's call_store()/tcmu_command_passthrough_cbk re-entry after a
// declined passthrough attempt.
func Dispatch(dev *api.Device, transport api.Transport, cmd *api.Command, onDone func(Result)) {
	deliver := func(res Result) {
		cmd.Sense = res.Sense
		onDone(res)
	}
	final := func(err error) {
		if err == nil {
			deliver(Result{Status: api.SAM_STAT_GOOD})
			return
		}
		if errors.Is(err, unix.ENOMEM) {
			// A resource-exhaustion errno never gets sense data: it is a
			// bare SAM status, matching libtcmu's alloc-failure mapping
			// of -ENOMEM straight to TASK_SET_FULL.
			deliver(Result{Status: api.SAM_STAT_TASK_SET_FULL})
			return
		}
		if handled, outcome := HandleInFlightError(dev, transport, err); handled {
			var sense *api.SenseBuffer
			if outcome.Status == api.SAM_STAT_CHECK_CONDITION {
				sense = EncodeSense(outcome.Key, outcome.Asc, 0, false)
			}
			deliver(Result{Status: outcome.Status, Sense: sense})
			return
		}
		deliver(Result{Status: api.SAM_STAT_CHECK_CONDITION, Sense: EncodeStatusError(err)})
	}
	cmd.SetCompletion(final)

	// A device that already knows its lock is gone answers without
	// touching the backend, until the transport re-acquires the lock.
	switch dev.LockState() {
	case api.LockNotConn:
		deliver(Result{Status: api.SAM_STAT_BUSY})
		return
	case api.LockLost:
		deliver(Result{
			Status: api.SAM_STAT_CHECK_CONDITION,
			Sense:  EncodeSense(NOT_READY, ASC_STATE_TRANSITION, 0, false),
		})
		return
	}

	if err := DecodeCommand(dev, cmd); err != nil {
		final(err)
		return
	}

	// Offer the backend the opcode first. A passthrough may decline
	// either synchronously or from its completion callback, after it
	// already went async; both roads lead back to the generic table,
	// which performs its own fresh track/finish pair.
	if ph, ok := dev.Backend.(api.PassthroughHandler); ok && ph.Supports(cmd.CDB[0]) {
		dev.Tracker.Start()
		schedule(dev, func(d api.Completion) {
			ph.Passthrough(dev, cmd, d)
		}, func(err error) {
			idle := dev.Tracker.Finish()
			if errors.Is(err, api.ErrNotHandled) {
				dispatchGeneric(dev, transport, cmd, final)
				return
			}
			final(err)
			if idle && transport != nil {
				transport.ProcessingComplete(dev)
			}
		})
		return
	}
	dispatchGeneric(dev, transport, cmd, final)
}

func dispatchGeneric(dev *api.Device, transport api.Transport, cmd *api.Command, final api.Completion) {
	opcode := api.SCSICommandType(cmd.CDB[0])
	switch opcode {
	case api.READ_6, api.READ_10, api.READ_12, api.READ_16:
		ReadCommand(dev, transport, cmd)
	case api.WRITE_6, api.WRITE_10, api.WRITE_12, api.WRITE_16:
		WriteCommand(dev, transport, cmd)
	case api.SYNCHRONIZE_CACHE, api.SYNCHRONIZE_CACHE_16:
		FlushCommand(dev, transport, cmd)
	case api.COMPARE_AND_WRITE:
		CompareAndWriteCommand(dev, transport, cmd)
	case api.WRITE_VERIFY, api.WRITE_VERIFY_12, api.WRITE_VERIFY_16:
		WriteVerifyCommand(dev, transport, cmd)
	case api.WRITE_SAME, api.WRITE_SAME_16:
		// Only the UNMAP form has a generic rendering here, and only on
		// a backend that can discard; the data-carrying form needs the
		// backend's own passthrough, which already declined above.
		if _, ok := dev.Backend.(api.Discarder); ok && cmd.CDB[1]&0x08 != 0 {
			doDiscard(dev, cmd.Offset, cmd.Length, track(dev, transport, final))
			return
		}
		final(newStatusError(ILLEGAL_REQUEST, ASC_INVALID_OP_CODE, 0, nil))
	default:
		final(newStatusError(ILLEGAL_REQUEST, ASC_INVALID_OP_CODE, 0, nil))
	}
}
