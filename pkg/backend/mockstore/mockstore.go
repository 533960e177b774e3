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

// Package mockstore is an in-memory backend with fault injection, used
// by the dispatch and composite-op tests. It can masquerade as either
// an AIO-capable backend (completions delivered from a spawned
// goroutine) or a blocking one (served off the device's worker pool),
// so both dispatch paths run against the same fixture.
package mockstore

import (
	"strconv"
	"sync"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/config"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
)

const MockBackingStorage = "mock"

func init() {
	scsi.RegisterBackingStore(MockBackingStorage, func(rest string) (api.BackingStore, error) {
		path, _ := config.ParseOpts(rest)
		size, err := strconv.ParseUint(path, 10, 64)
		if err != nil {
			return nil, err
		}
		return New(size, false), nil
	})
}

// Op records one backend call, for assertions about what a composite
// operation did (and did not) issue.
type Op struct {
	Kind   string // "read", "write", "flush", "discard"
	Offset int64
	Length int64
}

type Store struct {
	scsi.BaseBackingStore

	mu   sync.Mutex
	data []byte
	ops  []Op

	async bool

	// Sticky injected errors, returned by the corresponding call until
	// cleared. Set to errno-class values (unix.EIO, unix.ESHUTDOWN,
	// unix.ETIMEDOUT, unix.ENOMEM) to exercise the dispatch mappings.
	ReadErr  error
	WriteErr error
	FlushErr error

	// CorruptAt, when >= 0, flips the byte at that absolute device
	// offset in every read result, without touching the stored data.
	CorruptAt int64
}

// New builds a store of size bytes. async selects the AIO calling
// convention.
func New(size uint64, async bool) *Store {
	return &Store{
		BaseBackingStore: scsi.BaseBackingStore{Name: MockBackingStorage, DataSize: size},
		data:             make([]byte, size),
		async:            async,
		CorruptAt:        -1,
	}
}

func (s *Store) Open(dev *api.Device) error  { return nil }
func (s *Store) Close(dev *api.Device) error { return nil }
func (s *Store) AIOSupported() bool          { return s.async }

// SetData seeds the backing image at offset, bypassing the op log.
func (s *Store) SetData(offset int64, p []byte) {
	s.mu.Lock()
	copy(s.data[offset:], p)
	s.mu.Unlock()
}

// DataAt returns a copy of the stored bytes at [offset, offset+length).
func (s *Store) DataAt(offset, length int64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, length)
	copy(out, s.data[offset:offset+length])
	return out
}

// Ops returns the recorded backend calls so far.
func (s *Store) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

func (s *Store) complete(done api.Completion, err error) {
	if s.async {
		go done(err)
		return
	}
	done(err)
}

func (s *Store) Read(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	s.mu.Lock()
	s.ops = append(s.ops, Op{Kind: "read", Offset: offset, Length: length})
	if s.ReadErr != nil {
		err := s.ReadErr
		s.mu.Unlock()
		s.complete(done, err)
		return
	}
	buf := make([]byte, length)
	copy(buf, s.data[offset:offset+length])
	if s.CorruptAt >= offset && s.CorruptAt < offset+length {
		buf[s.CorruptAt-offset] ^= 0xff
	}
	s.mu.Unlock()
	data.CopyFrom(0, buf)
	s.complete(done, nil)
}

func (s *Store) Write(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	buf := make([]byte, length)
	data.CopyTo(0, buf)
	s.mu.Lock()
	s.ops = append(s.ops, Op{Kind: "write", Offset: offset, Length: length})
	if s.WriteErr != nil {
		err := s.WriteErr
		s.mu.Unlock()
		s.complete(done, err)
		return
	}
	copy(s.data[offset:], buf)
	s.mu.Unlock()
	s.complete(done, nil)
}

func (s *Store) Flush(dev *api.Device, done api.Completion) {
	s.mu.Lock()
	s.ops = append(s.ops, Op{Kind: "flush"})
	err := s.FlushErr
	s.mu.Unlock()
	s.complete(done, err)
}

func (s *Store) Discard(dev *api.Device, offset, length int64, done api.Completion) {
	s.mu.Lock()
	s.ops = append(s.ops, Op{Kind: "discard", Offset: offset, Length: length})
	for i := offset; i < offset+length && i < int64(len(s.data)); i++ {
		s.data[i] = 0
	}
	s.mu.Unlock()
	s.complete(done, nil)
}
