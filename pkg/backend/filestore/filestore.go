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

// Package filestore backs a Device with a regular file or block device,
// the synchronous-I/O counterpart to rbdstore's AIO path. It is always
// dispatched off the device's worker pool: AIOSupported reports false.
package filestore

import (
	"fmt"
	"os"

	"github.com/ncw/directio"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/config"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
	"github.com/gostor/gotgt-async-core/pkg/util"
)

const BackingStorage = "file"

func init() {
	scsi.RegisterBackingStore(BackingStorage, New)
}

// Store is a plain POSIX file backend. When Direct is set, Open tries
// O_DIRECT via directio.OpenFile first, falling back to a buffered
// os.OpenFile when the path isn't alignment-compatible with O_DIRECT
// (tmpfs, some overlay filesystems).
type Store struct {
	scsi.BaseBackingStore
	path   string
	Direct bool
	file   *os.File
}

// New is registered under the "file" subtype; the backend remainder is
// the filesystem path to open, optionally followed by "/direct=false"
// to force buffered I/O.
func New(rest string) (api.BackingStore, error) {
	path, opts := config.ParseOpts(rest)
	return &Store{
		BaseBackingStore: scsi.BaseBackingStore{Name: BackingStorage},
		path:             path,
		Direct:           opts["direct"] != "false",
	}, nil
}

func (s *Store) Open(dev *api.Device) error {
	finfo, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	s.DataSize = uint64(finfo.Size())

	if s.Direct {
		if f, err := directio.OpenFile(s.path, os.O_RDWR, 0o600); err == nil {
			s.file = f
			log.Debugf("filestore: opened %s with O_DIRECT", s.path)
			return nil
		}
		log.Debugf("filestore: O_DIRECT unavailable for %s, falling back to buffered I/O", s.path)
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	s.file = f
	return nil
}

func (s *Store) Close(dev *api.Device) error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

func (s *Store) AIOSupported() bool { return false }

func (s *Store) Read(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	buf := make([]byte, length)
	n, err := s.file.ReadAt(buf, offset)
	if err != nil {
		done(err)
		return
	}
	if int64(n) != length {
		done(fmt.Errorf("filestore: short read at offset %d: got %d want %d: %w", offset, n, length, unix.EIO))
		return
	}
	data.CopyFrom(0, buf)
	done(nil)
}

func (s *Store) Write(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	buf := make([]byte, length)
	data.CopyTo(0, buf)
	n, err := s.file.WriteAt(buf, offset)
	if err != nil {
		done(err)
		return
	}
	if int64(n) != length {
		done(fmt.Errorf("filestore: short write at offset %d: wrote %d want %d: %w", offset, n, length, unix.EIO))
		return
	}
	done(nil)
}

func (s *Store) Flush(dev *api.Device, done api.Completion) {
	done(util.Fdatasync(s.file))
}

func (s *Store) Discard(dev *api.Device, offset, length int64, done api.Completion) {
	done(util.Fadvise(s.file, offset, length, util.POSIX_FADV_DONTNEED))
}
