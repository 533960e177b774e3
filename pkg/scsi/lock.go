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
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/gostor/gotgt-async-core/pkg/api"
)

// LockResult is the outcome of a lock request, as reported back to the
// transport layer that asked for it.
type LockResult int

const (
	LockSuccess LockResult = iota
	LockFailed
	LockNotConn
)

func (r LockResult) String() string {
	switch r {
	case LockSuccess:
		return "success"
	case LockNotConn:
		return "not-connected"
	default:
		return "failed"
	}
}

// LockRetries and LockRetryDelay bound the acquisition loop against a
// clustered backend that may be mid-failover when the lock is requested.
const (
	LockRetries    = 5
	LockRetryDelay = 1 * time.Second
)

// TryLock attempts to acquire exclusive ownership of dev's backend,
// breaking a stale holder's lock if necessary. Up to LockRetries
// attempts, pausing LockRetryDelay between them:
//
//  1. If this client already owns the lock, done.
//  2. Otherwise break the current holder's lock. A retryable break
//     failure (EAGAIN) pins the victim: if a different owner shows up
//     on the next attempt, another client raced in and the whole
//     request fails hard rather than evicting the new winner.
//  3. Acquire the lock in exclusive mode.
//
// ETIMEDOUT at any step is terminal: the cluster op timer expired, so
// the device is marked not-connected and the transport should answer
// in-flight I/O with BUSY. ESHUTDOWN from the ownership check is terminal
// in the same way; from AcquireExclusive it is retried, and a request
// whose last attempt still fails with it is also reported not-connected;
// from LockOwners or BreakLock it is retried like EAGAIN. The distinct
// blacklisted handling only applies to I/O that was in flight while we
// believed we held the lock (HandleInFlightError).
func TryLock(dev *api.Device, locker api.ExclusiveLocker) LockResult {
	var origOwner string
	var err error
	for attempt := 0; attempt < LockRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(LockRetryDelay)
		}

		var owner bool
		owner, err = locker.HasLock(dev)
		if err != nil {
			if errors.Is(err, unix.ETIMEDOUT) || errors.Is(err, unix.ESHUTDOWN) {
				break
			}
			log.Errorf("dev %s: could not check lock ownership: %v", dev.Name, err)
			continue
		}
		if owner {
			err = nil
			break
		}

		err = breakLock(dev, locker, &origOwner)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			// EIO or ETIMEDOUT: terminal.
			break
		}

		err = locker.AcquireExclusive(dev)
		if err == nil {
			log.Warnf("dev %s: acquired exclusive lock", dev.Name)
			break
		}
		if errors.Is(err, unix.ETIMEDOUT) {
			break
		}
		log.Errorf("dev %s: error %v while trying to acquire lock", dev.Name, err)
	}

	switch {
	case err == nil:
		dev.SetLockState(api.LockOwned)
		return LockSuccess
	case errors.Is(err, unix.ETIMEDOUT) || errors.Is(err, unix.ESHUTDOWN):
		dev.SetLockState(api.LockNotConn)
		return LockNotConn
	default:
		dev.SetLockState(api.LockNone)
		return LockFailed
	}
}

// breakLock evicts the current lock holder, if any. origOwner pins the
// victim across retries: on the first retryable break failure it records
// who we were trying to evict, and a later attempt that finds a
// different owner fails hard (someone else won the lock while we were
// retrying, and they are entitled to keep it).
//
// Returns nil when the lock is free or was broken, EAGAIN for a
// retryable failure, ETIMEDOUT when the cluster op timer expired, and
// EIO for anything unrecoverable (shared-mode lock, owner race).
func breakLock(dev *api.Device, locker api.ExclusiveLocker, origOwner *string) error {
	exclusive, owners, err := locker.LockOwners(dev)
	if err != nil {
		log.Errorf("dev %s: could not get lock owners: %v", dev.Name, err)
		if errors.Is(err, unix.ETIMEDOUT) {
			return err
		}
		return unix.EAGAIN
	}
	if len(owners) == 0 {
		return nil
	}
	if !exclusive {
		log.Errorf("dev %s: invalid lock mode found", dev.Name)
		return unix.EIO
	}
	if *origOwner != "" && *origOwner != owners[0] {
		// someone took the lock while we were retrying
		return unix.EIO
	}

	log.Debugf("dev %s: attempting to break lock from %s", dev.Name, owners[0])
	if err := locker.BreakLock(dev, owners[0]); err != nil {
		log.Errorf("dev %s: could not break lock from %s: %v", dev.Name, owners[0], err)
		if errors.Is(err, unix.ETIMEDOUT) {
			return err
		}
		if *origOwner == "" {
			*origOwner = owners[0]
		}
		return unix.EAGAIN
	}
	return nil
}

// InFlightOutcome is the SAM status (and, when the status is CHECK
// CONDITION, the sense key/ASC) an in-flight command should be failed
// with after a lock-related backend error.
type InFlightOutcome struct {
	Status byte
	Key    byte
	Asc    SCSISubError
}

// HandleInFlightError classifies an error an in-flight command's backend
// call failed with, when that error might be lock-related. It both
// updates dev's lock state and notifies the transport, and returns the
// outcome the caller should fail the command with. The mapping differs
// from TryLock's acquisition-time handling of the same two errnos:
// here, ESHUTDOWN means the lock was lost outright (this client was
// blacklisted) and initiators must be told to fail over via CHECK
// CONDITION / NOT READY / state transition, while ETIMEDOUT means the
// connection merely stalled and the initiator should retry the same
// path, i.e. plain BUSY with no sense data at all.
func HandleInFlightError(dev *api.Device, transport api.Transport, err error) (handled bool, outcome InFlightOutcome) {
	switch {
	case errors.Is(err, unix.ESHUTDOWN):
		if dev.LockState() != api.LockLost {
			log.Warnf("dev %s: exclusive lock lost, failing over", dev.Name)
			dev.SetLockState(api.LockLost)
			if transport != nil {
				transport.NotifyLockLost(dev)
			}
		}
		return true, InFlightOutcome{Status: api.SAM_STAT_CHECK_CONDITION, Key: NOT_READY, Asc: ASC_STATE_TRANSITION}
	case errors.Is(err, unix.ETIMEDOUT):
		if dev.LockState() != api.LockNotConn {
			log.Warnf("dev %s: backend connection lost", dev.Name)
			dev.SetLockState(api.LockNotConn)
			if transport != nil {
				transport.NotifyConnLost(dev)
			}
		}
		return true, InFlightOutcome{Status: api.SAM_STAT_BUSY}
	default:
		return false, InFlightOutcome{}
	}
}
