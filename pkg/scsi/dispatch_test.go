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

package scsi_test

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/backend/mockstore"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
)

// fakeTransport records the notifications the dispatch core sends the
// frontend.
type fakeTransport struct {
	processingComplete int64
	lockLost           int64
	connLost           int64
}

func (t *fakeTransport) ProcessingComplete(dev *api.Device) {
	atomic.AddInt64(&t.processingComplete, 1)
}
func (t *fakeTransport) NotifyLockLost(dev *api.Device) { atomic.AddInt64(&t.lockLost, 1) }
func (t *fakeTransport) NotifyConnLost(dev *api.Device) { atomic.AddInt64(&t.connLost, 1) }

func newTestDevice(t *testing.T, size uint64, blockSize uint32, async bool) (*api.Device, *mockstore.Store, *fakeTransport) {
	t.Helper()
	store := mockstore.New(size, async)
	dev := api.NewDevice("test0", store, blockSize, size/uint64(blockSize), 2)
	require.NoError(t, store.Open(dev))
	t.Cleanup(func() { dev.Close() })
	return dev, store, &fakeTransport{}
}

// run dispatches one CDB and waits for its terminal status, asserting
// the single-completion invariant as it goes.
func run(t *testing.T, dev *api.Device, tr *fakeTransport, cdb []byte, data *api.IOVec) scsi.Result {
	t.Helper()
	var completions int64
	done := make(chan scsi.Result, 2)
	cmd := &api.Command{CDB: cdb, Device: dev, Data: data}
	scsi.Dispatch(dev, tr, cmd, func(res scsi.Result) {
		atomic.AddInt64(&completions, 1)
		done <- res
	})
	res := <-done
	select {
	case <-done:
		t.Fatal("command completed more than once")
	case <-time.After(20 * time.Millisecond):
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&completions))
	return res
}

func read10CDB(lba uint32, blocks uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.READ_10)
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], blocks)
	return cdb
}

func write10CDB(lba uint32, blocks uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_10)
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], blocks)
	return cdb
}

func writeVerify10CDB(lba uint32, blocks uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_VERIFY)
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], blocks)
	return cdb
}

func cawCDB(lba uint64, blocks byte) []byte {
	cdb := make([]byte, 16)
	cdb[0] = byte(api.COMPARE_AND_WRITE)
	binary.BigEndian.PutUint64(cdb[2:10], lba)
	cdb[13] = blocks
	return cdb
}

func senseKey(res scsi.Result) byte {
	if res.Sense == nil {
		return 0
	}
	return res.Sense.Buffer[2] & 0x0f
}

func senseInfo(res scsi.Result) uint32 {
	return binary.BigEndian.Uint32(res.Sense.Buffer[3:7])
}

func senseASC(res scsi.Result) uint16 {
	return uint16(res.Sense.Buffer[12])<<8 | uint16(res.Sense.Buffer[13])
}

func TestReadWriteRoundTrip(t *testing.T) {
	for _, async := range []bool{false, true} {
		dev, store, tr := newTestDevice(t, 1<<20, 512, async)

		payload := bytes.Repeat([]byte{0x42}, 1024)
		res := run(t, dev, tr, write10CDB(4, 2), api.NewIOVec(payload))
		require.Equal(t, api.SAM_STAT_GOOD, res.Status)

		readBuf := make([]byte, 1024)
		res = run(t, dev, tr, read10CDB(4, 2), api.NewIOVec(readBuf))
		require.Equal(t, api.SAM_STAT_GOOD, res.Status)
		assert.Equal(t, payload, readBuf)
		assert.Equal(t, payload, store.DataAt(2048, 1024))
		assert.Zero(t, dev.Tracker.InFlight())
	}
}

func TestFlush(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	cdb := make([]byte, 10)
	cdb[0] = byte(api.SYNCHRONIZE_CACHE)
	res := run(t, dev, tr, cdb, nil)
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)
	ops := store.Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, "flush", ops[0].Kind)
}

// Scenario S1: a matching compare half issues the read, then the write,
// and leaves the write half on the medium.
func TestCompareAndWriteSuccess(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)

	preImage := bytes.Repeat([]byte{0xaa}, 512)
	store.SetData(5120, preImage)

	buf := append(bytes.Repeat([]byte{0xaa}, 512), bytes.Repeat([]byte{0xbb}, 512)...)
	res := run(t, dev, tr, cawCDB(10, 1), api.NewIOVec(buf))
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)

	ops := store.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, mockstore.Op{Kind: "read", Offset: 5120, Length: 512}, ops[0])
	assert.Equal(t, mockstore.Op{Kind: "write", Offset: 5120, Length: 512}, ops[1])
	assert.Equal(t, bytes.Repeat([]byte{0xbb}, 512), store.DataAt(5120, 512))
}

// Scenario S2: a pre-image differing at byte 17 reports MISCOMPARE with
// that offset in the sense INFORMATION field, and never writes.
func TestCompareAndWriteMiscompare(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)

	preImage := bytes.Repeat([]byte{0xaa}, 512)
	preImage[17] = 0x00
	store.SetData(5120, preImage)

	buf := append(bytes.Repeat([]byte{0xaa}, 512), bytes.Repeat([]byte{0xbb}, 512)...)
	res := run(t, dev, tr, cawCDB(10, 1), api.NewIOVec(buf))
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	require.NotNil(t, res.Sense)
	assert.EqualValues(t, 0x0e, senseKey(res)) // MISCOMPARE
	assert.EqualValues(t, 0x1d00, senseASC(res))
	assert.EqualValues(t, 17, senseInfo(res))

	for _, op := range store.Ops() {
		assert.NotEqual(t, "write", op.Kind)
	}
	assert.EqualValues(t, 1, dev.Miscompares())
}

// A matching compare must not be reported as MISCOMPARE (regression
// guard for the inverted-branch variant of this op).
func TestCompareAndWriteMatchIsNotMiscompare(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, true)
	store.SetData(0, bytes.Repeat([]byte{0x11}, 512))
	buf := append(bytes.Repeat([]byte{0x11}, 512), bytes.Repeat([]byte{0x22}, 512)...)
	res := run(t, dev, tr, cawCDB(0, 1), api.NewIOVec(buf))
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)
	assert.Zero(t, dev.Miscompares())
}

// Boundary #8: zero blocks is well defined: GOOD without touching the
// backend.
func TestCompareAndWriteZeroLength(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	res := run(t, dev, tr, cawCDB(0, 0), api.NewIOVec(nil))
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)
	assert.Empty(t, store.Ops())
}

// Scenario S3: WRITE VERIFY writes, reads back into a fresh buffer, and
// succeeds when the medium matches.
func TestWriteVerifySuccess(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)

	payload := bytes.Repeat([]byte{0x77}, 4096)
	res := run(t, dev, tr, writeVerify10CDB(0, 8), api.NewIOVec(payload))
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)

	ops := store.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, mockstore.Op{Kind: "write", Offset: 0, Length: 4096}, ops[0])
	assert.Equal(t, mockstore.Op{Kind: "read", Offset: 0, Length: 4096}, ops[1])
	assert.Equal(t, payload, store.DataAt(0, 4096))
}

// Scenario S4: corruption at byte 2049 of the read-back surfaces as
// MISCOMPARE with that offset.
func TestWriteVerifyMiscompare(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	store.CorruptAt = 2049

	payload := bytes.Repeat([]byte{0x77}, 4096)
	res := run(t, dev, tr, writeVerify10CDB(0, 8), api.NewIOVec(payload))
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	require.NotNil(t, res.Sense)
	assert.EqualValues(t, 0x0e, senseKey(res))
	assert.EqualValues(t, 2049, senseInfo(res))
	assert.EqualValues(t, 1, dev.Miscompares())
}

// Boundary #9: a verify larger than the device's max transfer length is
// read back in max-transfer-sized chunks.
func TestWriteVerifyChunks(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	dev.MaxXferLen = 2 // 1024 bytes per read-back

	payload := bytes.Repeat([]byte{0x31}, 4096)
	res := run(t, dev, tr, writeVerify10CDB(0, 8), api.NewIOVec(payload))
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)

	var reads []mockstore.Op
	for _, op := range store.Ops() {
		if op.Kind == "read" {
			reads = append(reads, op)
		}
	}
	require.Len(t, reads, 4)
	for i, op := range reads {
		assert.EqualValues(t, int64(i)*1024, op.Offset)
		assert.EqualValues(t, 1024, op.Length)
	}
}

// Scenario S5: ESHUTDOWN mid-read means this client was blacklisted:
// the transport hears NotifyLockLost exactly once, the command fails
// NOT READY, and later commands short-circuit without a backend call.
func TestBlacklistMidIO(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, true)
	store.ReadErr = unix.ESHUTDOWN

	res := run(t, dev, tr, read10CDB(0, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	require.NotNil(t, res.Sense)
	assert.Equal(t, scsi.NOT_READY, senseKey(res))
	assert.EqualValues(t, 0x040a, senseASC(res))
	assert.EqualValues(t, 1, atomic.LoadInt64(&tr.lockLost))
	assert.Equal(t, api.LockLost, dev.LockState())

	opsBefore := len(store.Ops())
	res = run(t, dev, tr, read10CDB(0, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	assert.Equal(t, scsi.NOT_READY, senseKey(res))
	assert.Len(t, store.Ops(), opsBefore)
	assert.EqualValues(t, 1, atomic.LoadInt64(&tr.lockLost))
	assert.Zero(t, dev.Tracker.InFlight())
}

// ETIMEDOUT means the cluster connection stalled: BUSY, no sense data,
// and the transport hears NotifyConnLost.
func TestTimeoutMidIO(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, true)
	store.WriteErr = unix.ETIMEDOUT

	res := run(t, dev, tr, write10CDB(0, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_BUSY, res.Status)
	assert.Nil(t, res.Sense)
	assert.EqualValues(t, 1, atomic.LoadInt64(&tr.connLost))
	assert.Equal(t, api.LockNotConn, dev.LockState())

	res = run(t, dev, tr, read10CDB(0, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_BUSY, res.Status)
}

// Boundary #10: allocation failure surfaces as a bare TASK SET FULL and
// leaves the tracker balanced.
func TestAllocFailure(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	store.ReadErr = unix.ENOMEM

	res := run(t, dev, tr, read10CDB(0, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_TASK_SET_FULL, res.Status)
	assert.Nil(t, res.Sense)
	assert.Zero(t, dev.Tracker.InFlight())
}

func TestMediumError(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	store.WriteErr = unix.EIO

	res := run(t, dev, tr, write10CDB(0, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	require.NotNil(t, res.Sense)
	assert.Equal(t, scsi.MEDIUM_ERROR, senseKey(res))
}

func TestUnsupportedOpcode(t *testing.T) {
	dev, _, tr := newTestDevice(t, 1<<20, 512, false)
	cdb := make([]byte, 6)
	cdb[0] = 0x1b // START STOP: nothing serves it here
	res := run(t, dev, tr, cdb, nil)
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	assert.Equal(t, scsi.ILLEGAL_REQUEST, senseKey(res))
	assert.EqualValues(t, 0x2000, senseASC(res))
}

func TestLBAOutOfRange(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	res := run(t, dev, tr, read10CDB(1<<12, 1), api.NewIOVec(make([]byte, 512)))
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	assert.Equal(t, scsi.ILLEGAL_REQUEST, senseKey(res))
	assert.EqualValues(t, 0x2100, senseASC(res))
	assert.Empty(t, store.Ops())
}

// Scenario S6: a blocking backend serves overlapping concurrent writes
// off the worker pool; everything completes, the tracker drains, and
// the transport sees at least one batched processing-complete.
func TestSyncBackendOnPool(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, 512)
			done := make(chan scsi.Result, 1)
			cmd := &api.Command{CDB: write10CDB(4, 1), Device: dev, Data: api.NewIOVec(payload)}
			scsi.Dispatch(dev, tr, cmd, func(res scsi.Result) { done <- res })
			res := <-done
			assert.Equal(t, api.SAM_STAT_GOOD, res.Status)
		}(i)
	}
	wg.Wait()

	dev.Tracker.Drain()
	assert.Zero(t, dev.Tracker.InFlight())
	assert.GreaterOrEqual(t, atomic.LoadInt64(&tr.processingComplete), int64(1))

	writes := 0
	for _, op := range store.Ops() {
		if op.Kind == "write" {
			writes++
		}
	}
	assert.Equal(t, 8, writes)
}

// passthroughStore claims one opcode on top of the mock store and
// answers it with a scripted error (nil for handled-GOOD,
// api.ErrNotHandled to decline at completion time).
type passthroughStore struct {
	*mockstore.Store
	claims byte
	answer error
	served int64
}

func (p *passthroughStore) Supports(opcode byte) bool { return opcode == p.claims }

func (p *passthroughStore) Passthrough(dev *api.Device, cmd *api.Command, done api.Completion) {
	atomic.AddInt64(&p.served, 1)
	done(p.answer)
}

func newPassthroughDevice(t *testing.T, claims byte, answer error) (*api.Device, *passthroughStore, *fakeTransport) {
	t.Helper()
	store := &passthroughStore{Store: mockstore.New(1<<20, false), claims: claims, answer: answer}
	dev := api.NewDevice("pt0", store, 512, 2048, 1)
	require.NoError(t, store.Open(dev))
	t.Cleanup(func() { dev.Close() })
	return dev, store, &fakeTransport{}
}

// A backend that claims an opcode the core has no rendering for serves
// it end to end.
func TestPassthroughHandled(t *testing.T) {
	dev, store, tr := newPassthroughDevice(t, 0x1b, nil) // START STOP
	cdb := make([]byte, 6)
	cdb[0] = 0x1b
	res := run(t, dev, tr, cdb, nil)
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)
	assert.EqualValues(t, 1, atomic.LoadInt64(&store.served))
	assert.Zero(t, dev.Tracker.InFlight())
}

// A passthrough that declines from inside its completion callback falls
// back to the generic path, which still serves the READ correctly and
// leaves the tracker balanced.
func TestPassthroughDeclinedFallsBack(t *testing.T) {
	dev, store, tr := newPassthroughDevice(t, byte(api.READ_10), api.ErrNotHandled)
	store.SetData(0, bytes.Repeat([]byte{0x9c}, 512))

	readBuf := make([]byte, 512)
	res := run(t, dev, tr, read10CDB(0, 1), api.NewIOVec(readBuf))
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)
	assert.EqualValues(t, 1, atomic.LoadInt64(&store.served))
	assert.Equal(t, bytes.Repeat([]byte{0x9c}, 512), readBuf)
	assert.Zero(t, dev.Tracker.InFlight())
}

// A claimed opcode whose passthrough fails and that the core cannot
// serve either surfaces the backend's error.
func TestPassthroughError(t *testing.T) {
	dev, _, tr := newPassthroughDevice(t, 0x1b, unix.EIO)
	cdb := make([]byte, 6)
	cdb[0] = 0x1b
	res := run(t, dev, tr, cdb, nil)
	require.Equal(t, api.SAM_STAT_CHECK_CONDITION, res.Status)
	assert.Equal(t, scsi.MEDIUM_ERROR, senseKey(res))
}

// The WRITE SAME UNMAP form maps to the backend's discard capability.
func TestWriteSameUnmapDiscard(t *testing.T) {
	dev, store, tr := newTestDevice(t, 1<<20, 512, false)
	store.SetData(1024, bytes.Repeat([]byte{0xff}, 1024))

	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_SAME)
	cdb[1] = 0x08 // UNMAP
	binary.BigEndian.PutUint32(cdb[2:6], 2)
	binary.BigEndian.PutUint16(cdb[7:9], 2)
	res := run(t, dev, tr, cdb, nil)
	require.Equal(t, api.SAM_STAT_GOOD, res.Status)
	assert.Equal(t, make([]byte, 1024), store.DataAt(1024, 1024))
}
