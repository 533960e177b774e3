//go:build ceph
// +build ceph

/*
Copyright 2018 The GoStor Authors All rights reserved.

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
package rbdstore

import (
	"fmt"
	"strings"

	"github.com/ceph/go-ceph/rados"
	"github.com/ceph/go-ceph/rbd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/config"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
)

// This ceph-rbd plugin is only for linux
// path format ceph-rbd/poolname/imagename[/opt=value,...]
const (
	RBDBackingStorage = "ceph-rbd"
)

func init() {
	scsi.RegisterBackingStore(RBDBackingStorage, newRBD)
}

// Store serves a device from an RBD image. Completions are delivered
// off dedicated goroutines, so the store reports AIOSupported and never
// blocks the dispatching goroutine; librbd's own AIO threads play that
// role in the C implementation this mirrors.
type Store struct {
	scsi.BaseBackingStore
	poolName  string
	imageName string
	conn      *rados.Conn
	ioctx     *rados.IOContext
	image     *rbd.Image
}

func newRBD(rest string) (api.BackingStore, error) {
	path, _ := config.ParseOpts(rest)
	pathinfo := strings.SplitN(path, "/", 2)
	if len(pathinfo) != 2 {
		return nil, fmt.Errorf("invalid device path string: %s", rest)
	}
	return &Store{
		BaseBackingStore: scsi.BaseBackingStore{Name: RBDBackingStorage},
		poolName:         pathinfo[0],
		imageName:        pathinfo[1],
	}, nil
}

func (bs *Store) Open(dev *api.Device) error {
	conn, err := rados.NewConn()
	if err != nil {
		log.Error(err)
		return err
	}
	bs.conn = conn
	if err := bs.conn.ReadDefaultConfigFile(); err != nil {
		log.Error(err)
		return err
	}
	if err := bs.conn.Connect(); err != nil {
		log.Error(err)
		return err
	}

	ioctx, err := bs.conn.OpenIOContext(bs.poolName)
	if err != nil {
		bs.conn.Shutdown()
		log.Error(err)
		return err
	}
	bs.ioctx = ioctx

	image := rbd.GetImage(bs.ioctx, bs.imageName)
	if image == nil {
		err := fmt.Errorf("rbdGetImage failed: poolName:%s, imageName:%s",
			bs.poolName, bs.imageName)
		log.Error(err)
		return err
	}
	bs.image = image
	if err := bs.image.Open(); err != nil {
		log.Error(err)
		return err
	}

	dataSize, err := bs.image.GetSize()
	if err != nil {
		log.Error(err)
		return err
	}
	bs.DataSize = dataSize

	bs.checkExclusiveLockEnabled(dev)
	return nil
}

// checkExclusiveLockEnabled warns rather than fails when the image was
// created without the exclusive-lock feature: the device still works,
// it just cannot participate in single-writer HA failover.
func (bs *Store) checkExclusiveLockEnabled(dev *api.Device) {
	if _, lockers, err := bs.lockOwners(); err != nil {
		log.Warnf("dev %s: could not probe exclusive-lock support on %s/%s: %v",
			dev.Name, bs.poolName, bs.imageName, err)
	} else if len(lockers) > 0 {
		log.Infof("dev %s: image %s/%s currently locked by %s",
			dev.Name, bs.poolName, bs.imageName, lockers[0])
	}
}

func (bs *Store) Close(dev *api.Device) error {
	err := bs.image.Close()
	bs.ioctx.Destroy()
	bs.conn.Shutdown()
	return err
}

func (bs *Store) AIOSupported() bool { return true }

// wrapErrno translates a librados/librbd error into the errno-class
// error values the dispatch core keys its lock handling off.
func wrapErrno(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(rados.RadosError); ok {
		switch -int(errno) {
		case int(unix.ETIMEDOUT):
			return unix.ETIMEDOUT
		case int(unix.ESHUTDOWN), 108: // -EBLACKLISTED aliases -ESHUTDOWN
			return unix.ESHUTDOWN
		}
	}
	return err
}

func (bs *Store) Read(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	go func() {
		buf := make([]byte, length)
		n, err := bs.image.ReadAt(buf, offset)
		if err != nil {
			done(wrapErrno(err))
			return
		}
		if int64(n) != length {
			done(unix.EIO)
			return
		}
		data.CopyFrom(0, buf)
		done(nil)
	}()
}

func (bs *Store) Write(dev *api.Device, data *api.IOVec, offset, length int64, done api.Completion) {
	buf := make([]byte, length)
	data.CopyTo(0, buf)
	go func() {
		n, err := bs.image.WriteAt(buf, offset)
		if err != nil {
			done(wrapErrno(err))
			return
		}
		if int64(n) != length {
			done(unix.EIO)
			return
		}
		done(nil)
	}()
}

func (bs *Store) Flush(dev *api.Device, done api.Completion) {
	go func() {
		done(wrapErrno(bs.image.Flush()))
	}()
}

func (bs *Store) lockOwners() (exclusive bool, owners []string, err error) {
	tag, lockers, err := bs.image.ListLockers()
	if err != nil {
		return false, nil, wrapErrno(err)
	}
	// A non-empty tag means the advisory lock was taken shared-mode.
	exclusive = tag == ""
	for _, l := range lockers {
		owners = append(owners, l.Client)
	}
	return exclusive, owners, nil
}

func (bs *Store) HasLock(dev *api.Device) (bool, error) {
	_, owners, err := bs.lockOwners()
	if err != nil {
		return false, err
	}
	me := fmt.Sprintf("client.%d", bs.conn.GetInstanceID())
	for _, o := range owners {
		if o == me {
			return true, nil
		}
	}
	return false, nil
}

func (bs *Store) LockOwners(dev *api.Device) (bool, []string, error) {
	return bs.lockOwners()
}

func (bs *Store) BreakLock(dev *api.Device, owner string) error {
	return wrapErrno(bs.image.BreakLock(owner, dev.Name))
}

func (bs *Store) AcquireExclusive(dev *api.Device) error {
	return wrapErrno(bs.image.LockExclusive(dev.Name))
}
