// Copyright 2024 Google LLC
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

package kernels

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
)

type (
	// Slice selects a strided range of an axis.
	// Negative bounds count from the end of the axis. Bounds are clamped.
	Slice struct {
		Start, Stop       int
		HasStart, HasStop bool
		// Step between two selected positions. Must not be 0.
		Step int
	}

	// Selection selects positions along an axis: either a single position,
	// dropping the axis, or a slice.
	Selection struct {
		Single bool
		Pos    int
		Slice  Slice
	}
)

// FullSlice selects a whole axis.
func FullSlice() Slice {
	return Slice{Step: 1}
}

// Indices returns the first position, the step and the number of positions
// selected by a slice on an axis of a given length.
func (s Slice) Indices(length int) (start, step, count int, err error) {
	step = s.Step
	if step == 0 {
		return 0, 0, 0, fmterr.Errorf(fmterr.InvalidValue, "slice step cannot be zero")
	}
	lower, upper := 0, length
	if step < 0 {
		lower, upper = -1, length-1
	}
	clamp := func(v int, has bool, absent int) int {
		if !has {
			return absent
		}
		if v < 0 {
			v += length
		}
		return min(max(v, lower), upper)
	}
	if step > 0 {
		start = clamp(s.Start, s.HasStart, lower)
		stop := clamp(s.Stop, s.HasStop, upper)
		count = max(0, (stop-start+step-1)/step)
	} else {
		start = clamp(s.Start, s.HasStart, upper)
		stop := clamp(s.Stop, s.HasStop, lower)
		count = max(0, (start-stop-step-1)/(-step))
	}
	return start, step, count, nil
}

func wrapPosition(pos, length int) (int, error) {
	if pos < 0 {
		pos += length
	}
	if pos < 0 || pos >= length {
		return 0, fmterr.Errorf(fmterr.InvalidValue, "index %d out of bounds for an axis of length %d", pos, length)
	}
	return pos, nil
}

// Select returns the dimensions of the region of an array of dimensions dims
// selected by a list of selections, and the flat indices of the elements of
// that region. Axes without a selection are kept whole.
func Select(dims []int, sels []Selection) (outDims []int, idx []int, err error) {
	if len(sels) > len(dims) {
		return nil, nil, fmterr.Errorf(fmterr.ShapeMismatch, "%d selections for an array of rank %d", len(sels), len(dims))
	}
	strides := values.Strides(dims)
	var outStrides []int
	offset := 0
	for axis, d := range dims {
		if axis >= len(sels) {
			outDims = append(outDims, d)
			outStrides = append(outStrides, strides[axis])
			continue
		}
		sel := sels[axis]
		if sel.Single {
			pos, err := wrapPosition(sel.Pos, d)
			if err != nil {
				return nil, nil, err
			}
			offset += pos * strides[axis]
			continue
		}
		start, step, count, err := sel.Slice.Indices(d)
		if err != nil {
			return nil, nil, err
		}
		if count > 0 {
			offset += start * strides[axis]
		}
		outDims = append(outDims, count)
		outStrides = append(outStrides, step*strides[axis])
	}
	return outDims, stridedIndices(outDims, outStrides, offset), nil
}

// Rows returns the dimensions and the flat indices of the rows of an array
// of dimensions dims selected by a list of positions along the first axis.
func Rows(dims []int, rows []int64) (outDims []int, idx []int, err error) {
	if len(dims) == 0 {
		return nil, nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot select rows of a scalar")
	}
	rowSize := size(dims[1:])
	idx = make([]int, 0, len(rows)*rowSize)
	for _, r := range rows {
		pos, err := wrapPosition(int(r), dims[0])
		if err != nil {
			return nil, nil, err
		}
		for j := range rowSize {
			idx = append(idx, pos*rowSize+j)
		}
	}
	outDims = append([]int{len(rows)}, dims[1:]...)
	return outDims, idx, nil
}

// Points returns the flat indices of the elements (rows[i], cols[i]) of a
// matrix of dimensions dims. A list of length 1 is broadcast to the length of
// the other.
func Points(dims []int, rows, cols []int64) ([]int, error) {
	if len(dims) != 2 {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "points can only be selected in a matrix, got dimensions %v", dims)
	}
	n, err := BroadcastDims([]int{len(rows)}, []int{len(cols)})
	if err != nil {
		return nil, err
	}
	idx := make([]int, n[0])
	for i := range idx {
		r, c := rows[min(i, len(rows)-1)], cols[min(i, len(cols)-1)]
		rPos, err := wrapPosition(int(r), dims[0])
		if err != nil {
			return nil, err
		}
		cPos, err := wrapPosition(int(c), dims[1])
		if err != nil {
			return nil, err
		}
		idx[i] = rPos*dims[1] + cPos
	}
	return idx, nil
}
