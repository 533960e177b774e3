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

// Package qcow2store backs a Device with a qcow2 image file. Its calls
// block, so like filestore it runs on the device's worker pool.
package qcow2store

import (
	"github.com/dypflying/go-qcow2lib/qcow2"
	log "github.com/sirupsen/logrus"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/config"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
)

// path format qcow2/filename
const (
	Qcow2BackingStorage = "qcow2"
)

func init() {
	scsi.RegisterBackingStore(Qcow2BackingStorage, newQcow2)
}

type Store struct {
	scsi.BaseBackingStore
	path  string
	child *qcow2.BdrvChild
}

func newQcow2(rest string) (api.BackingStore, error) {
	path, _ := config.ParseOpts(rest)
	return &Store{
		BaseBackingStore: scsi.BaseBackingStore{Name: Qcow2BackingStorage},
		path:             path,
	}, nil
}

func (bs *Store) Open(dev *api.Device) error {
	var err error
	var openOpts = map[string]any{
		qcow2.OPT_FILENAME: bs.path,
		qcow2.OPT_FMT:      "qcow2",
	}
	log.Debugf("open qcow2 path = %s", bs.path)
	if bs.child, err = qcow2.Blk_Open(bs.path, openOpts, qcow2.BDRV_O_RDWR); err != nil {
		return err
	}
	if bs.DataSize, err = qcow2.Blk_Getlength(bs.child); err != nil {
		return err
	}
	return nil
}

func (bs *Store) Close(dev *api.Device) error {
	qcow2.Blk_Close(bs.child)
	return nil
}

func (bs *Store) AIOSupported() bool { return false }

func (bs *Store) Read(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	buf := make([]byte, length)
	if _, err := qcow2.Blk_Pread(bs.child, uint64(offset), buf, uint64(length)); err != nil {
		done(err)
		return
	}
	data.CopyFrom(0, buf)
	done(nil)
}

func (bs *Store) Write(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	buf := make([]byte, length)
	data.CopyTo(0, buf)
	if _, err := qcow2.Blk_Pwrite(bs.child, uint64(offset), buf, uint64(length), 0); err != nil {
		done(err)
		return
	}
	done(nil)
}

func (bs *Store) Flush(dev *api.Device, done api.Completion) {
	// qcow2lib writes through its backing file; there is no separate
	// flush entry point to drive here.
	done(nil)
}
