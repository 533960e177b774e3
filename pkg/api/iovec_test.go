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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmented(chunks ...[]byte) *IOVec {
	return &IOVec{Segments: chunks}
}

func TestIOVecLen(t *testing.T) {
	v := segmented([]byte{1, 2, 3}, []byte{4, 5})
	assert.EqualValues(t, 5, v.Len())
	assert.EqualValues(t, 0, (*IOVec)(nil).Len())
}

func TestIOVecSliceAcrossSegments(t *testing.T) {
	v := segmented([]byte{0, 1, 2, 3}, []byte{4, 5, 6, 7}, []byte{8, 9})
	s := v.Slice(2, 5)
	require.EqualValues(t, 5, s.Len())
	out := make([]byte, 5)
	s.CopyTo(0, out)
	assert.Equal(t, []byte{2, 3, 4, 5, 6}, out)
}

// Slices share backing arrays with the original, so writes through a
// slice are visible in the parent; composite ops rely on this for the
// non-mutating "seek" view.
func TestIOVecSliceShares(t *testing.T) {
	backing := []byte{0, 0, 0, 0}
	v := segmented(backing)
	s := v.Slice(1, 2)
	s.CopyFrom(0, []byte{7, 8})
	assert.Equal(t, []byte{0, 7, 8, 0}, backing)
}

func TestIOVecCopyToFromOffsets(t *testing.T) {
	v := segmented(make([]byte, 3), make([]byte, 4))
	n := v.CopyFrom(2, []byte{0xaa, 0xbb, 0xcc})
	require.Equal(t, 3, n)
	out := make([]byte, 7)
	v.CopyTo(0, out)
	assert.Equal(t, []byte{0, 0, 0xaa, 0xbb, 0xcc, 0, 0}, out)
}

func TestIOVecCopyShortBuffer(t *testing.T) {
	v := segmented([]byte{1, 2})
	out := make([]byte, 5)
	n := v.CopyTo(0, out)
	assert.Equal(t, 2, n)
}

func TestIOVecCompareAt(t *testing.T) {
	v := segmented([]byte{1, 2, 3}, []byte{4, 5, 6})

	assert.EqualValues(t, -1, v.CompareAt(0, []byte{1, 2, 3, 4, 5, 6}))
	assert.EqualValues(t, -1, v.CompareAt(2, []byte{3, 4, 5}))
	assert.EqualValues(t, 4, v.CompareAt(0, []byte{1, 2, 3, 4, 9, 6}))
	assert.EqualValues(t, 3, v.CompareAt(3, []byte{9}))
	// Comparing past the end mismatches at the first missing byte.
	assert.EqualValues(t, 6, v.CompareAt(0, []byte{1, 2, 3, 4, 5, 6, 7}))
}
