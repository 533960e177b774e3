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

package scsi

import (
	"fmt"
	"sort"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/config"
)

// DefaultBlockSize is used when a device is configured without one.
const DefaultBlockSize = 512

// Registry holds the devices this daemon currently exports, keyed by
// name. The daemon populates it from config at startup and the admin
// API mutates it afterwards.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*api.Device
}

func NewRegistry() *Registry {
	return &Registry{devices: map[string]*api.Device{}}
}

// Open constructs, opens, and registers a device over a backend URI of
// the form "subtype/path[/opt=value,...]". The device's LBA count is
// derived from the backend's image size. If the backend requires an
// exclusive lock, acquisition is attempted here; a device whose lock
// could not be acquired still opens, in whatever lock state TryLock
// left it, and the transport may retry later.
func (r *Registry) Open(name, backendURI string, blockSize uint32, workers int) (*api.Device, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	subtype, rest, err := config.ParseBackendURI(backendURI)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.devices[name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("device %q already exists", name)
	}
	r.mu.Unlock()

	bs, err := NewBackingStore(subtype, rest)
	if err != nil {
		return nil, err
	}

	dev := api.NewDevice(name, bs, blockSize, 0, workers)
	if err := bs.Open(dev); err != nil {
		if dev.Pool != nil {
			dev.Pool.Close()
		}
		return nil, fmt.Errorf("open backend %q for device %q: %w", backendURI, name, err)
	}
	dev.NumLBAs = bs.Size(dev) / uint64(blockSize)

	if locker, ok := bs.(api.ExclusiveLocker); ok {
		res := TryLock(dev, locker)
		log.Infof("device %s: exclusive lock acquisition: %s", name, res)
	}

	r.mu.Lock()
	if _, exists := r.devices[name]; exists {
		r.mu.Unlock()
		dev.Close()
		return nil, fmt.Errorf("device %q already exists", name)
	}
	r.devices[name] = dev
	r.mu.Unlock()
	log.Infof("device %s: opened %s, %d LBAs of %d bytes", name, backendURI, dev.NumLBAs, blockSize)
	return dev, nil
}

// Get returns the named device, or nil.
func (r *Registry) Get(name string) *api.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[name]
}

// List returns all registered devices, sorted by name.
func (r *Registry) List() []*api.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*api.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Remove unregisters the named device and tears it down, draining its
// in-flight commands first.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	dev, ok := r.devices[name]
	if ok {
		delete(r.devices, name)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such device %q", name)
	}
	return dev.Close()
}

// CloseAll tears down every registered device, aggregating errors.
func (r *Registry) CloseAll() error {
	var result *multierror.Error
	for _, dev := range r.List() {
		if err := r.Remove(dev.Name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Lock drives an explicit exclusive-lock request against the named
// device, as the transport does when the kernel asks for reacquisition.
func (r *Registry) Lock(name string) (LockResult, error) {
	dev := r.Get(name)
	if dev == nil {
		return LockFailed, fmt.Errorf("no such device %q", name)
	}
	locker, ok := dev.Backend.(api.ExclusiveLocker)
	if !ok {
		return LockFailed, fmt.Errorf("device %q backend has no exclusive-lock support", name)
	}
	return TryLock(dev, locker), nil
}
