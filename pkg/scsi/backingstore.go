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

	"github.com/gostor/gotgt-async-core/pkg/api"
)

// BaseBackingStore is embedded by backend implementations for the bits
// every backend needs (its registered subtype name, a running data
// size). It does not by itself implement api.BackingStore.
type BaseBackingStore struct {
	Name     string
	DataSize uint64
}

// Size satisfies the api.BackingStore size accessor for any backend that
// records its image size in DataSize at Open time.
func (b *BaseBackingStore) Size(dev *api.Device) uint64 {
	return b.DataSize
}

// BackingStoreFunc constructs a backend from its opts string: the part
// of a device's configured backend path after "<subtype>/".
type BackingStoreFunc func(opts string) (api.BackingStore, error)

var registeredBSPlugins = map[string]BackingStoreFunc{}

// RegisterBackingStore is called from a backend package's init() to make
// itself available under subtype name.
func RegisterBackingStore(name string, f BackingStoreFunc) {
	registeredBSPlugins[name] = f
}

// NewBackingStore constructs the backend registered under name, as
// parsed out of a device's config backend string.
func NewBackingStore(name, opts string) (api.BackingStore, error) {
	f, ok := registeredBSPlugins[name]
	if !ok {
		return nil, fmt.Errorf("backend subtype %q is not registered", name)
	}
	return f(opts)
}
