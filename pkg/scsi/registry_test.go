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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gostor/gotgt-async-core/pkg/backend/mockstore"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
)

func TestRegistryOpenGetRemove(t *testing.T) {
	reg := scsi.NewRegistry()
	dev, err := reg.Open("vol0", "mock/1048576", 512, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2048, dev.NumLBAs)
	assert.Same(t, dev, reg.Get("vol0"))

	devices := reg.List()
	require.Len(t, devices, 1)
	assert.Equal(t, "vol0", devices[0].Name)

	require.NoError(t, reg.Remove("vol0"))
	assert.Nil(t, reg.Get("vol0"))
	assert.Error(t, reg.Remove("vol0"))
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := scsi.NewRegistry()
	_, err := reg.Open("vol0", "mock/1048576", 512, 1)
	require.NoError(t, err)
	defer reg.CloseAll()

	_, err = reg.Open("vol0", "mock/1048576", 512, 1)
	assert.Error(t, err)
}

func TestRegistryUnknownSubtype(t *testing.T) {
	reg := scsi.NewRegistry()
	_, err := reg.Open("vol0", "nosuch/whatever", 512, 1)
	assert.Error(t, err)
}

func TestRegistryCloseAll(t *testing.T) {
	reg := scsi.NewRegistry()
	_, err := reg.Open("a", "mock/65536", 512, 1)
	require.NoError(t, err)
	_, err = reg.Open("b", "mock/65536", 512, 1)
	require.NoError(t, err)

	require.NoError(t, reg.CloseAll())
	assert.Empty(t, reg.List())
}

func TestRegistryLockWithoutCapability(t *testing.T) {
	reg := scsi.NewRegistry()
	_, err := reg.Open("vol0", "mock/65536", 512, 1)
	require.NoError(t, err)
	defer reg.CloseAll()

	_, err = reg.Lock("vol0")
	assert.Error(t, err)
	_, err = reg.Lock("nosuch")
	assert.Error(t, err)
}
