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

import (
	"sync"
	"sync/atomic"

	multierror "github.com/hashicorp/go-multierror"
	uuid "github.com/satori/go.uuid"
)

// LockState reflects a Device's last known exclusive-lock standing against
// a clustered backend such as RBD.
type LockState int

const (
	LockUnsupported LockState = iota
	LockNone
	LockOwned
	LockLost
	LockNotConn
)

func (s LockState) String() string {
	switch s {
	case LockNone:
		return "none"
	case LockOwned:
		return "owned"
	case LockLost:
		return "lost"
	case LockNotConn:
		return "not-connected"
	default:
		return "unsupported"
	}
}

// Device is one exported LUN: a block size/geometry, a backing store, and
// the concurrency machinery (tracker, optional worker pool) that the
// dispatcher drives commands through.
type Device struct {
	ID         uuid.UUID
	Name       string
	BlockSize  uint32
	NumLBAs    uint64
	MaxXferLen uint32 // in blocks
	WriteCache bool

	Backend BackingStore
	Tracker *Tracker

	// Pool serves blocking backend calls on worker goroutines. It is nil
	// for AIO-capable backends, which never need one.
	Pool *Pool

	mu        sync.Mutex
	lockState LockState

	miscompares int64
}

// NewDevice constructs a Device and its concurrency machinery. poolWorkers
// is ignored when the backend is AIO-capable.
func NewDevice(name string, backend BackingStore, blockSize uint32, numLBAs uint64, poolWorkers int) *Device {
	d := &Device{
		ID:         uuid.NewV4(),
		Name:       name,
		Backend:    backend,
		BlockSize:  blockSize,
		NumLBAs:    numLBAs,
		MaxXferLen: 2048,
		Tracker:    NewTracker(),
		lockState:  LockNone,
	}
	if backend == nil || !backend.AIOSupported() {
		d.Pool = NewPool(poolWorkers)
	}
	return d
}

// Close drains in-flight commands, stops the worker pool (if any), and
// closes the backend, aggregating teardown errors into one reported
// error.
func (d *Device) Close() error {
	var result *multierror.Error
	d.Tracker.Drain()
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Backend != nil {
		if err := d.Backend.Close(d); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (d *Device) SizeBytes() uint64 {
	return d.NumLBAs * uint64(d.BlockSize)
}

func (d *Device) LockState() LockState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lockState
}

func (d *Device) SetLockState(s LockState) {
	d.mu.Lock()
	d.lockState = s
	d.mu.Unlock()
}

// IncMiscompare counts one COMPARE AND WRITE / WRITE VERIFY data
// mismatch on this device, for metrics.
func (d *Device) IncMiscompare() {
	atomic.AddInt64(&d.miscompares, 1)
}

func (d *Device) Miscompares() int64 {
	return atomic.LoadInt64(&d.miscompares)
}
