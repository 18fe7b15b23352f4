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
	"golang.org/x/exp/constraints"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
)

// floorDiv rounds the quotient towards negative infinity.
func floorDiv[T constraints.Integer](a, b T) (T, error) {
	if b == 0 {
		return 0, fmterr.Errorf(fmterr.InvalidValue, "integer division by zero")
	}
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q, nil
}

type signedFactory[T signed] struct {
	algebraFactory[T]
}

var _ Factory = signedFactory[int32]{}

func (f signedFactory[T]) UnaryOp(op UnaryOp) (Unary, error) {
	if kernel, ok := f.unary(op); ok {
		return kernel, nil
	}
	switch op {
	case Abs:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, func(v T) T { return v * sign(v) })
		}, nil
	case Sign:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, sign[T])
		}, nil
	}
	return nil, unsupportedUnary(op, f.Kind())
}

func (f signedFactory[T]) BinaryOp(op BinaryOp) (Binary, error) {
	if kernel, ok := f.binary(op); ok {
		return kernel, nil
	}
	if kernel, ok := orderedBinary[T](op); ok {
		return kernel, nil
	}
	if op == IntDiv {
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, floorDiv[T])
		}, nil
	}
	return nil, unsupportedBinary(op, f.Kind())
}

type unsignedFactory[T unsigned] struct {
	algebraFactory[T]
}

var _ Factory = unsignedFactory[uint32]{}

func (f unsignedFactory[T]) UnaryOp(op UnaryOp) (Unary, error) {
	if kernel, ok := f.unary(op); ok {
		return kernel, nil
	}
	switch op {
	case Abs:
		return func(x *values.Array) (*values.Array, error) {
			return x.Clone(), nil
		}, nil
	case Sign:
		return func(x *values.Array) (*values.Array, error) {
			return mapArray(x, sign[T])
		}, nil
	}
	return nil, unsupportedUnary(op, f.Kind())
}

func (f unsignedFactory[T]) BinaryOp(op BinaryOp) (Binary, error) {
	if kernel, ok := f.binary(op); ok {
		return kernel, nil
	}
	if kernel, ok := orderedBinary[T](op); ok {
		return kernel, nil
	}
	if op == IntDiv {
		return func(x, y *values.Array) (*values.Array, error) {
			return zipArrays(x, y, floorDiv[T])
		}, nil
	}
	return nil, unsupportedBinary(op, f.Kind())
}
