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
	"slices"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
)

func size(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// BroadcastDims returns the dimensions of the result of an elementwise
// operation: dimensions are aligned on the right and an extent of 1 is
// stretched to the extent of the other operands.
func BroadcastDims(dims ...[]int) ([]int, error) {
	rank := 0
	for _, d := range dims {
		rank = max(rank, len(d))
	}
	out := make([]int, rank)
	for i := range out {
		out[i] = 1
	}
	for _, d := range dims {
		offset := rank - len(d)
		for i, di := range d {
			switch {
			case di == out[offset+i] || di == 1:
			case out[offset+i] == 1:
				out[offset+i] = di
			default:
				return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot broadcast dimensions %v together", dims)
			}
		}
	}
	return out, nil
}

// Broadcast stretches an array to the given dimensions.
func Broadcast(x *values.Array, dims []int) (*values.Array, error) {
	xDims := x.Dims()
	if slices.Equal(xDims, dims) {
		return x, nil
	}
	if len(xDims) > len(dims) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot broadcast dimensions %v to %v", xDims, dims)
	}
	offset := len(dims) - len(xDims)
	strides := make([]int, len(dims))
	xStrides := values.Strides(xDims)
	for i, d := range xDims {
		switch d {
		case dims[offset+i]:
			strides[offset+i] = xStrides[i]
		case 1:
		default:
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot broadcast dimensions %v to %v", xDims, dims)
		}
	}
	return x.Take(dims, stridedIndices(dims, strides, 0))
}

// stridedIndices returns the flat indices of a strided walk over dims.
func stridedIndices(dims, strides []int, offset int) []int {
	idx := make([]int, 0, size(dims))
	values.ForEachIndex(dims, func(pos []int) {
		j := offset
		for axis, p := range pos {
			j += p * strides[axis]
		}
		idx = append(idx, j)
	})
	return idx
}

// Transpose permutes the axes of an array.
func Transpose(x *values.Array, perm []int) (*values.Array, error) {
	xDims := x.Dims()
	if len(perm) != len(xDims) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "permutation %v does not match dimensions %v", perm, xDims)
	}
	xStrides := values.Strides(xDims)
	dims := make([]int, len(perm))
	strides := make([]int, len(perm))
	seen := make([]bool, len(perm))
	for i, axis := range perm {
		if axis < 0 || axis >= len(perm) || seen[axis] {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "invalid permutation %v", perm)
		}
		seen[axis] = true
		dims[i] = xDims[axis]
		strides[i] = xStrides[axis]
	}
	return x.Take(dims, stridedIndices(dims, strides, 0))
}

// DimShuffle reorders the axes of an array given an order where -1
// inserts a new axis of extent 1. Axes absent from the order are dropped
// and must have an extent of 1.
func DimShuffle(x *values.Array, order []int) (*values.Array, error) {
	xDims := x.Dims()
	kept := make([]bool, len(xDims))
	var perm []int
	for _, axis := range order {
		if axis == -1 {
			continue
		}
		if axis < 0 || axis >= len(xDims) || kept[axis] {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "invalid order %v for dimensions %v", order, xDims)
		}
		kept[axis] = true
		perm = append(perm, axis)
	}
	var squeezed []int
	remap := make([]int, len(xDims))
	for axis, d := range xDims {
		if kept[axis] {
			remap[axis] = len(squeezed)
			squeezed = append(squeezed, d)
			continue
		}
		if d != 1 {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot drop axis %d of extent %d", axis, d)
		}
	}
	y, err := x.Reshape(squeezed...)
	if err != nil {
		return nil, err
	}
	for i, axis := range perm {
		perm[i] = remap[axis]
	}
	if y, err = Transpose(y, perm); err != nil {
		return nil, err
	}
	dims := make([]int, len(order))
	k := 0
	for i, axis := range order {
		if axis == -1 {
			dims[i] = 1
			continue
		}
		dims[i] = y.Dims()[k]
		k++
	}
	return y.Reshape(dims...)
}

// Concat joins arrays of the same kind along an axis.
func Concat(axis int, xs ...*values.Array) (*values.Array, error) {
	if len(xs) == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "nothing to concatenate")
	}
	dims := xs[0].Dims()
	if axis < 0 || axis >= len(dims) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "axis %d out of range for dimensions %v", axis, dims)
	}
	total := 0
	for i, x := range xs {
		xDims := x.Dims()
		if x.Kind() != xs[0].Kind() {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot concatenate %s and %s arrays", xs[0].Kind(), x.Kind())
		}
		if len(xDims) != len(dims) {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "array %d has dimensions %v incompatible with %v", i, xDims, dims)
		}
		for a := range dims {
			if a != axis && xDims[a] != dims[a] {
				return nil, fmterr.Errorf(fmterr.ShapeMismatch, "array %d has dimensions %v incompatible with %v", i, xDims, dims)
			}
		}
		total += xDims[axis]
	}
	outDims := slices.Clone(dims)
	outDims[axis] = total
	out, err := values.Zeros(xs[0].Kind(), outDims...)
	if err != nil {
		return nil, err
	}
	outStrides := values.Strides(outDims)
	start := 0
	for _, x := range xs {
		idx := stridedIndices(x.Dims(), outStrides, start*outStrides[axis])
		if err := out.Put(idx, x, false); err != nil {
			return nil, err
		}
		start += x.Dims()[axis]
	}
	return out, nil
}

// Split cuts an array along an axis into parts of the given sizes.
func Split(x *values.Array, axis int, sizes []int) ([]*values.Array, error) {
	dims := x.Dims()
	if axis < 0 || axis >= len(dims) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "axis %d out of range for dimensions %v", axis, dims)
	}
	total := 0
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "invalid split size %d in %v", s, sizes)
		}
		total += s
	}
	if total != dims[axis] {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "split sizes %v sum to %d but axis %d has extent %d", sizes, total, axis, dims[axis])
	}
	strides := values.Strides(dims)
	parts := make([]*values.Array, len(sizes))
	start := 0
	for i, s := range sizes {
		partDims := slices.Clone(dims)
		partDims[axis] = s
		var err error
		if parts[i], err = x.Take(partDims, stridedIndices(partDims, strides, start*strides[axis])); err != nil {
			return nil, err
		}
		start += s
	}
	return parts, nil
}
