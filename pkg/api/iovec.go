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

// IOVec is a scatter/gather list of data segments, the Go counterpart of
// the iovec array a tcmu-runner handler is handed for a command's data
// buffer. Segments are addressed as one contiguous logical byte range.
type IOVec struct {
	Segments [][]byte
}

// NewIOVec wraps a single contiguous buffer as a one-segment IOVec.
func NewIOVec(buf []byte) *IOVec {
	return &IOVec{Segments: [][]byte{buf}}
}

// Len returns the total logical length across all segments.
func (v *IOVec) Len() int64 {
	if v == nil {
		return 0
	}
	var n int64
	for _, s := range v.Segments {
		n += int64(len(s))
	}
	return n
}

// Slice returns a non-mutating view of the logical range [off, off+length)
// as a new IOVec sharing the underlying segment backing arrays. Composite
// operations use this to build sub-op buffers without advancing the
// original iovec in place.
func (v *IOVec) Slice(off, length int64) *IOVec {
	out := &IOVec{}
	if v == nil || length <= 0 {
		return out
	}
	var pos int64
	remaining := length
	for _, seg := range v.Segments {
		segLen := int64(len(seg))
		if pos+segLen <= off {
			pos += segLen
			continue
		}
		start := int64(0)
		if off > pos {
			start = off - pos
		}
		end := segLen
		if end-start > remaining {
			end = start + remaining
		}
		if start < end {
			out.Segments = append(out.Segments, seg[start:end])
			remaining -= end - start
		}
		pos += segLen
		if remaining <= 0 {
			break
		}
	}
	return out
}

// CopyFrom copies len(p) bytes from p into the iovec starting at logical
// offset off, returning the number of bytes actually copied.
func (v *IOVec) CopyFrom(off int64, p []byte) int {
	return v.walk(off, p, func(window, pWindow []byte) { copy(window, pWindow) })
}

// CopyTo copies up to len(p) bytes from the iovec starting at logical
// offset off into p, returning the number of bytes actually copied.
func (v *IOVec) CopyTo(off int64, p []byte) int {
	return v.walk(off, p, func(window, pWindow []byte) { copy(pWindow, window) })
}

// walk is shared machinery for CopyFrom/CopyTo: it advances across segments
// starting at off, handing each overlapping [iovec segment window, p window]
// pair to cp, which decides the copy direction.
func (v *IOVec) walk(off int64, p []byte, cp func(window, pWindow []byte)) int {
	if v == nil || len(p) == 0 {
		return 0
	}
	n := len(p)
	var pos int64
	copied := 0
	for _, seg := range v.Segments {
		segLen := int64(len(seg))
		if pos+segLen <= off {
			pos += segLen
			continue
		}
		start := int64(0)
		if off > pos {
			start = off - pos
		}
		window := seg[start:]
		remain := n - copied
		if len(window) > remain {
			window = window[:remain]
		}
		pWindow := p[copied : copied+len(window)]
		cp(window, pWindow)
		copied += len(window)
		pos += segLen
		if copied >= n {
			break
		}
	}
	return copied
}

// CompareAt compares other against the iovec's logical range starting at
// off, returning the absolute logical offset of the first mismatching byte,
// or -1 if the compared region is identical (mirrors tcmu_compare_with_iovec's
// contract of returning the byte offset of the first miscompare).
func (v *IOVec) CompareAt(off int64, other []byte) int64 {
	if v == nil {
		return off
	}
	tmp := make([]byte, len(other))
	n := v.CopyTo(off, tmp)
	for i := 0; i < n && i < len(other); i++ {
		if tmp[i] != other[i] {
			return off + int64(i)
		}
	}
	if n < len(other) {
		return off + int64(n)
	}
	return -1
}
