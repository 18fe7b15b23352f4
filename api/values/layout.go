// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package values

import (
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

func take[T irkind.Element](src []T, idx []int) []T {
	dst := make([]T, len(idx))
	for i, j := range idx {
		dst[i] = src[j]
	}
	return dst
}

func put[T irkind.Element](dst []T, idx []int, src []T, accumulate bool) {
	for i, j := range idx {
		if accumulate {
			dst[j] += src[i]
		} else {
			dst[j] = src[i]
		}
	}
}

// Take returns a new array of dimensions dims where the element i is the
// element idx[i] of the flat data of a.
func (a *Array) Take(dims []int, idx []int) (*Array, error) {
	if size(dims) != len(idx) {
		return nil, fmterr.Internalf("%d indices for dimensions %v", len(idx), dims)
	}
	n := a.Size()
	for _, j := range idx {
		if j < 0 || j >= n {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "flat index %d out of range for %d elements", j, n)
		}
	}
	var data any
	switch d := a.data.(type) {
	case []int8:
		data = take(d, idx)
	case []int16:
		data = take(d, idx)
	case []int32:
		data = take(d, idx)
	case []int64:
		data = take(d, idx)
	case []uint8:
		data = take(d, idx)
	case []uint16:
		data = take(d, idx)
	case []uint32:
		data = take(d, idx)
	case []uint64:
		data = take(d, idx)
	case []float32:
		data = take(d, idx)
	case []float64:
		data = take(d, idx)
	case []complex64:
		data = take(d, idx)
	case []complex128:
		data = take(d, idx)
	default:
		return nil, fmterr.Internalf("invalid array data %T", a.data)
	}
	return newArray(a.kind, data, append([]int{}, dims...)), nil
}

// Put writes the elements of src at the flat indices idx of a, in place.
// If accumulate is true, the elements are added instead of replaced; an index
// can then appear several times.
func (a *Array) Put(idx []int, src *Array, accumulate bool) error {
	if src.kind != a.kind {
		return fmterr.Errorf(fmterr.TypeMismatch, "cannot write %s elements into a %s array", src.kind, a.kind)
	}
	if src.Size() != len(idx) {
		return fmterr.Internalf("%d indices for %d elements", len(idx), src.Size())
	}
	n := a.Size()
	for _, j := range idx {
		if j < 0 || j >= n {
			return fmterr.Errorf(fmterr.ShapeMismatch, "flat index %d out of range for %d elements", j, n)
		}
	}
	switch d := a.data.(type) {
	case []int8:
		put(d, idx, src.data.([]int8), accumulate)
	case []int16:
		put(d, idx, src.data.([]int16), accumulate)
	case []int32:
		put(d, idx, src.data.([]int32), accumulate)
	case []int64:
		put(d, idx, src.data.([]int64), accumulate)
	case []uint8:
		put(d, idx, src.data.([]uint8), accumulate)
	case []uint16:
		put(d, idx, src.data.([]uint16), accumulate)
	case []uint32:
		put(d, idx, src.data.([]uint32), accumulate)
	case []uint64:
		put(d, idx, src.data.([]uint64), accumulate)
	case []float32:
		put(d, idx, src.data.([]float32), accumulate)
	case []float64:
		put(d, idx, src.data.([]float64), accumulate)
	case []complex64:
		put(d, idx, src.data.([]complex64), accumulate)
	case []complex128:
		put(d, idx, src.data.([]complex128), accumulate)
	default:
		return fmterr.Internalf("invalid array data %T", a.data)
	}
	return nil
}

// Strides returns the row-major strides of dimensions.
func Strides(dims []int) []int {
	strides := make([]int, len(dims))
	stride := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= dims[i]
	}
	return strides
}

// ForEachIndex calls f for every multi-dimensional index of dims in
// row-major order.
func ForEachIndex(dims []int, f func(pos []int)) {
	n := size(dims)
	pos := make([]int, len(dims))
	for range n {
		f(pos)
		for axis := len(dims) - 1; axis >= 0; axis-- {
			pos[axis]++
			if pos[axis] < dims[axis] {
				break
			}
			pos[axis] = 0
		}
	}
}
