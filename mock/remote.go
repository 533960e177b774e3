package mock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
	"github.com/gostor/gotgt-async-core/pkg/util"

	_ "github.com/gostor/gotgt-async-core/pkg/backend/filestore" /* init lib */
)

// remoteBs stands a whole device up over the file backend and drives it
// through the dispatcher, the way a remote frontend would, minus the
// wire. It doubles as the start/stop fixture for the integration test.
type remoteBs struct {
	Volume     string
	Size       int64
	SectorSize int64

	isUp     bool
	path     string
	registry *scsi.Registry
	dev      *api.Device
}

type nopTransport struct{}

func (nopTransport) ProcessingComplete(dev *api.Device) {}
func (nopTransport) NotifyLockLost(dev *api.Device)     {}
func (nopTransport) NotifyConnLost(dev *api.Device)     {}

// Startup creates a sparse backing file of the given size and opens a
// device over it.
func (r *remoteBs) Startup(name string, dir string, size, sectorSize int64) error {
	if r.isUp {
		return fmt.Errorf("volume %s already started", r.Volume)
	}
	if dir == "" {
		dir = os.TempDir()
	}
	r.Volume = name
	r.Size = size
	r.SectorSize = sectorSize
	r.path = filepath.Join(dir, name+".img")

	f, err := os.OpenFile(r.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	f.Close()

	r.registry = scsi.NewRegistry()
	dev, err := r.registry.Open(name, "file/"+r.path+"/direct=false", uint32(sectorSize), 1)
	if err != nil {
		os.Remove(r.path)
		return err
	}
	r.dev = dev
	r.isUp = true
	return nil
}

// Shutdown drains and tears the device down; a second call is an error,
// like stopping a target that is not running.
func (r *remoteBs) Shutdown() error {
	if !r.isUp {
		return fmt.Errorf("volume %s is not running", r.Volume)
	}
	r.isUp = false
	err := r.registry.Remove(r.Volume)
	os.Remove(r.path)
	return err
}

// dispatch runs one CDB through the core and waits for its completion.
func (r *remoteBs) dispatch(cdb []byte, data *api.IOVec) (scsi.Result, error) {
	done := make(chan scsi.Result, 1)
	cmd := &api.Command{CDB: cdb, Device: r.dev, Data: data}
	scsi.Dispatch(r.dev, nopTransport{}, cmd, func(res scsi.Result) {
		done <- res
	})
	return <-done, nil
}

// WriteAt writes data at the given byte offset via a WRITE(10).
func (r *remoteBs) WriteAt(data []byte, offset int64) (int, error) {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.WRITE_10)
	copy(cdb[2:6], util.MarshalUint32(uint32(offset/r.SectorSize)))
	copy(cdb[7:9], util.MarshalUint16(uint16(int64(len(data))/r.SectorSize)))
	res, err := r.dispatch(cdb, api.NewIOVec(data))
	if err != nil {
		return 0, err
	}
	if res.Status != api.SAM_STAT_GOOD {
		return 0, fmt.Errorf("write failed with SAM status %#x", res.Status)
	}
	return len(data), nil
}

// ReadAt fills data from the given byte offset via a READ(10).
func (r *remoteBs) ReadAt(data []byte, offset int64) (int, error) {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.READ_10)
	copy(cdb[2:6], util.MarshalUint32(uint32(offset/r.SectorSize)))
	copy(cdb[7:9], util.MarshalUint16(uint16(int64(len(data))/r.SectorSize)))
	res, err := r.dispatch(cdb, api.NewIOVec(data))
	if err != nil {
		return 0, err
	}
	if res.Status != api.SAM_STAT_GOOD {
		return 0, fmt.Errorf("read failed with SAM status %#x", res.Status)
	}
	return len(data), nil
}

// Sync issues a SYNCHRONIZE CACHE.
func (r *remoteBs) Sync() (int, error) {
	cdb := make([]byte, 10)
	cdb[0] = byte(api.SYNCHRONIZE_CACHE)
	res, err := r.dispatch(cdb, nil)
	if err != nil {
		return 0, err
	}
	if res.Status != api.SAM_STAT_GOOD {
		return 0, fmt.Errorf("sync failed with SAM status %#x", res.Status)
	}
	return 0, nil
}
