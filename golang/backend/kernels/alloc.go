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
	"math"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// ARange returns the vector [start, start+step, ...] of values lower than stop
// (greater than stop if step is negative).
func ARange(kind irkind.Kind, start, stop, step float64) (*values.Array, error) {
	if step == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "arange step cannot be zero")
	}
	n := max(0, int(math.Ceil((stop-start)/step)))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = start + float64(i)*step
	}
	return values.FromFloat64s(kind, vals, n)
}

// Eye returns a n x m matrix with ones on the k-th diagonal and zeros elsewhere.
func Eye(kind irkind.Kind, n, m, k int) (*values.Array, error) {
	if n < 0 || m < 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "invalid eye dimensions %dx%d", n, m)
	}
	vals := make([]float64, n*m)
	for i := range n {
		if j := i + k; j >= 0 && j < m {
			vals[i*m+j] = 1
		}
	}
	return values.FromFloat64s(kind, vals, n, m)
}

// Fill returns an array of dimensions dims where every element is the
// single element of x.
func Fill(x *values.Array, dims []int) (*values.Array, error) {
	if x.Size() != 1 {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "fill value must have a single element, got dimensions %v", x.Dims())
	}
	scalar, err := x.Reshape()
	if err != nil {
		return nil, err
	}
	return Broadcast(scalar, dims)
}

// Dot computes the product of vectors and matrices.
// Supported ranks: vector-vector, matrix-vector, vector-matrix and matrix-matrix.
func Dot(x, y *values.Array) (*values.Array, error) {
	if x.Kind() != y.Kind() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "dot: kind mismatch between %s and %s", x.Kind(), y.Kind())
	}
	xRank, yRank := x.Rank(), y.Rank()
	if xRank < 1 || xRank > 2 || yRank < 1 || yRank > 2 {
		return nil, fmterr.Errorf(fmterr.Unsupported, "dot of arrays of rank %d and %d", xRank, yRank)
	}
	xm, err := x.Reshape(matrixDims(x.Dims(), true)...)
	if err != nil {
		return nil, err
	}
	ym, err := y.Reshape(matrixDims(y.Dims(), false)...)
	if err != nil {
		return nil, err
	}
	f, err := FactoryFor(x.Kind())
	if err != nil {
		return nil, err
	}
	z, err := f.MatMul(xm, ym)
	if err != nil {
		return nil, err
	}
	var dims []int
	if xRank == 2 {
		dims = append(dims, z.Dims()[0])
	}
	if yRank == 2 {
		dims = append(dims, z.Dims()[1])
	}
	return z.Reshape(dims...)
}

// matrixDims returns the dimensions of a vector seen as a row (left operand)
// or a column (right operand).
func matrixDims(dims []int, left bool) []int {
	if len(dims) == 2 {
		return dims
	}
	if left {
		return []int{1, dims[0]}
	}
	return []int{dims[0], 1}
}
