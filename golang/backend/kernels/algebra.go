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
	"github.com/gx-org/tensorir/build/ir/irkind"
)

type (
	signed interface {
		int8 | int16 | int32 | int64
	}

	unsigned interface {
		uint8 | uint16 | uint32 | uint64
	}

	float interface {
		float32 | float64
	}

	complexNumber interface {
		complex64 | complex128
	}

	realNumber interface {
		signed | unsigned | float
	}

	algebraic interface {
		realNumber | complexNumber
	}
)

func mapArray[T algebraic](x *values.Array, f func(T) T) (*values.Array, error) {
	xs := values.Flat[T](x)
	zs := make([]T, len(xs))
	for i, xi := range xs {
		zs[i] = f(xi)
	}
	return values.New(zs, x.Dims()...)
}

func zipArrays[T algebraic](x, y *values.Array, f func(T, T) (T, error)) (*values.Array, error) {
	xs, ys := values.Flat[T](x), values.Flat[T](y)
	if len(xs) != len(ys) {
		return nil, fmterr.Internalf("cannot combine arrays of dimensions %v and %v", x.Dims(), y.Dims())
	}
	zs := make([]T, len(xs))
	for i := range zs {
		var err error
		if zs[i], err = f(xs[i], ys[i]); err != nil {
			return nil, err
		}
	}
	return values.New(zs, x.Dims()...)
}

func unsupportedUnary(op UnaryOp, kind irkind.Kind) error {
	return fmterr.Errorf(fmterr.Unsupported, "%s not supported for %s", op, kind)
}

func unsupportedBinary(op BinaryOp, kind irkind.Kind) error {
	return fmterr.Errorf(fmterr.Unsupported, "%s not supported for %s", op, kind)
}

// algebraFactory provides the kernels common to all kinds.
type algebraFactory[T algebraic] struct{}

func (algebraFactory[T]) Kind() irkind.Kind {
	return irkind.KindOf[T]()
}

func (algebraFactory[T]) unary(op UnaryOp) (Unary, bool) {
	switch op {
	case Neg:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return -v })
		}, true
	case Sqr:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return v * v })
		}, true
	case Identity:
		return func(x *values.Array) (*values.Array, error) {
			return x.Clone(), nil
		}, true
	}
	return nil, false
}

func (algebraFactory[T]) binary(op BinaryOp) (Binary, bool) {
	switch op {
	case Add:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return a + b, nil })
		}, true
	case Sub:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return a - b, nil })
		}, true
	case Mul:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return a * b, nil })
		}, true
	case Equal:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) {
				if a == b {
					return 1, nil
				}
				return 0, nil
			})
		}, true
	}
	return nil, false
}

// orderedBinary returns the kernels of operators comparing real numbers.
func orderedBinary[T realNumber](op BinaryOp) (Binary, bool) {
	switch op {
	case Maximum:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return max(a, b), nil })
		}, true
	case Minimum:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return min(a, b), nil })
		}, true
	}
	return nil, false
}

func sign[T realNumber](v T) T {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return T(0) - 1
	}
	return 0
}

func (algebraFactory[T]) Sum(x *values.Array, axes []int) (*values.Array, error) {
	dims := x.Dims()
	reduced := make([]bool, len(dims))
	for _, axis := range axes {
		reduced[axis] = true
	}
	var outDims []int
	for axis, d := range dims {
		if !reduced[axis] {
			outDims = append(outDims, d)
		}
	}
	outStrides := values.Strides(outDims)
	xs := values.Flat[T](x)
	out, err := values.Zeros(x.Kind(), outDims...)
	if err != nil {
		return nil, err
	}
	zs := values.Flat[T](out)
	i := 0
	values.ForEachIndex(dims, func(pos []int) {
		j, k := 0, 0
		for axis, p := range pos {
			if reduced[axis] {
				continue
			}
			j += p * outStrides[k]
			k++
		}
		zs[j] += xs[i]
		i++
	})
	return out, nil
}

func (algebraFactory[T]) MatMul(x, y *values.Array) (*values.Array, error) {
	xDims, yDims := x.Dims(), y.Dims()
	if len(xDims) != 2 || len(yDims) != 2 || xDims[1] != yDims[0] {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot multiply matrices of dimensions %v and %v", xDims, yDims)
	}
	n, k, m := xDims[0], xDims[1], yDims[1]
	xs, ys := values.Flat[T](x), values.Flat[T](y)
	zs := make([]T, n*m)
	for i := range n {
		for l := range k {
			xil := xs[i*k+l]
			for j := range m {
				zs[i*m+j] += xil * ys[l*m+j]
			}
		}
	}
	return values.New(zs, n, m)
}
