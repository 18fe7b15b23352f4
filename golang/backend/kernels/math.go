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
	"math/cmplx"

	"golang.org/x/exp/constraints"

	"github.com/gx-org/tensorir/api/values"
)

func floatFloorDiv[T constraints.Float](a, b T) (T, error) {
	return T(math.Floor(float64(a / b))), nil
}

func floatQuo[T float](a, b T) (T, error) {
	return a / b, nil
}

type floatFactory[T float] struct {
	algebraFactory[T]
}

var _ Factory = floatFactory[float32]{}

func (f floatFactory[T]) UnaryOp(op UnaryOp) (Unary, error) {
	if kernel, ok := f.unary(op); ok {
		return kernel, nil
	}
	switch op {
	case Exp:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(math.Exp(float64(v))) })
		}, nil
	case Log:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(math.Log(float64(v))) })
		}, nil
	case Sqrt:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(math.Sqrt(float64(v))) })
		}, nil
	case Abs:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(math.Abs(float64(v))) })
		}, nil
	case Sign:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, sign[T])
		}, nil
	}
	return nil, unsupportedUnary(op, f.Kind())
}

func (f floatFactory[T]) BinaryOp(op BinaryOp) (Binary, error) {
	if kernel, ok := f.binary(op); ok {
		return kernel, nil
	}
	if kernel, ok := orderedBinary[T](op); ok {
		return kernel, nil
	}
	switch op {
	case Pow:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return T(math.Pow(float64(a), float64(b))), nil })
		}, nil
	case TrueDiv:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, floatQuo[T])
		}, nil
	case IntDiv:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, floatFloorDiv[T])
		}, nil
	}
	return nil, unsupportedBinary(op, f.Kind())
}

type complexFactory[T complexNumber] struct {
	algebraFactory[T]
}

var _ Factory = complexFactory[complex64]{}

func (f complexFactory[T]) UnaryOp(op UnaryOp) (Unary, error) {
	if kernel, ok := f.unary(op); ok {
		return kernel, nil
	}
	switch op {
	case Exp:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(cmplx.Exp(complex128(v))) })
		}, nil
	case Log:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(cmplx.Log(complex128(v))) })
		}, nil
	case Sqrt:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return T(cmplx.Sqrt(complex128(v))) })
		}, nil
	}
	return nil, unsupportedUnary(op, f.Kind())
}

func (f complexFactory[T]) BinaryOp(op BinaryOp) (Binary, error) {
	if kernel, ok := f.binary(op); ok {
		return kernel, nil
	}
	switch op {
	case TrueDiv:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return a / b, nil })
		}, nil
	case Pow:
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, func(a, b T) (T, error) { return T(cmplx.Pow(complex128(a), complex128(b))), nil })
		}, nil
	}
	return nil, unsupportedBinary(op, f.Kind())
}
