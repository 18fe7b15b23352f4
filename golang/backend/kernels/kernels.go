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

// Package kernels implement Go kernels computing operations on host arrays.
package kernels

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

type (
	// Unary like - or exp.
	Unary func(*values.Array) (*values.Array, error)

	// Binary like +, -, *, /.
	// Both arrays have the same kind and the same dimensions.
	Binary func(*values.Array, *values.Array) (*values.Array, error)

	// Factory creates kernels for arrays of a given kind.
	Factory interface {
		// Kind of the arrays processed by the kernels.
		Kind() irkind.Kind

		// UnaryOp returns the kernel of a unary operator.
		UnaryOp(UnaryOp) (Unary, error)

		// BinaryOp returns the kernel of a binary operator.
		BinaryOp(BinaryOp) (Binary, error)

		// Sum returns the sum of an array along axes.
		Sum(x *values.Array, axes []int) (*values.Array, error)

		// MatMul multiplies a [n, k] matrix with a [k, m] matrix.
		MatMul(x, y *values.Array) (*values.Array, error)
	}

	// UnaryOp identifies a unary operator.
	UnaryOp int

	// BinaryOp identifies a binary operator.
	BinaryOp int
)

// Unary operators.
const (
	Neg UnaryOp = iota
	Exp
	Log
	Sqr
	Identity
	Sqrt
	Abs
	Sign
)

// Binary operators.
const (
	Add BinaryOp = iota
	Sub
	Mul
	TrueDiv
	IntDiv
	Pow
	Maximum
	Minimum
	Equal
)

var unaryNames = [...]string{
	Neg:      "neg",
	Exp:      "exp",
	Log:      "log",
	Sqr:      "sqr",
	Identity: "identity",
	Sqrt:     "sqrt",
	Abs:      "abs",
	Sign:     "sign",
}

func (op UnaryOp) String() string {
	if op < 0 || int(op) >= len(unaryNames) {
		return "unknown"
	}
	return unaryNames[op]
}

var binaryNames = [...]string{
	Add:     "add",
	Sub:     "sub",
	Mul:     "mul",
	TrueDiv: "true_div",
	IntDiv:  "int_div",
	Pow:     "pow",
	Maximum: "maximum",
	Minimum: "minimum",
	Equal:   "equal",
}

func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryNames) {
		return "unknown"
	}
	return binaryNames[op]
}

// FactoryFor returns a factory given an element kind.
func FactoryFor(kind irkind.Kind) (Factory, error) {
	switch kind {
	case irkind.Int8:
		return signedFactory[int8]{}, nil
	case irkind.Int16:
		return signedFactory[int16]{}, nil
	case irkind.Int32:
		return signedFactory[int32]{}, nil
	case irkind.Int64:
		return signedFactory[int64]{}, nil
	case irkind.Uint8:
		return unsignedFactory[uint8]{}, nil
	case irkind.Uint16:
		return unsignedFactory[uint16]{}, nil
	case irkind.Uint32:
		return unsignedFactory[uint32]{}, nil
	case irkind.Uint64:
		return unsignedFactory[uint64]{}, nil
	case irkind.Float32:
		return floatFactory[float32]{}, nil
	case irkind.Float64:
		return floatFactory[float64]{}, nil
	case irkind.Complex64:
		return complexFactory[complex64]{}, nil
	case irkind.Complex128:
		return complexFactory[complex128]{}, nil
	}
	return nil, fmterr.Errorf(fmterr.TypeMismatch, "no kernel factory for %s", kind)
}

// Apply1 applies a unary operator to an array.
func Apply1(op UnaryOp, x *values.Array) (*values.Array, error) {
	f, err := FactoryFor(x.Kind())
	if err != nil {
		return nil, err
	}
	kernel, err := f.UnaryOp(op)
	if err != nil {
		return nil, err
	}
	return kernel(x)
}

// Apply2 applies a binary operator to two arrays of the same kind,
// broadcasting their dimensions.
func Apply2(op BinaryOp, x, y *values.Array) (*values.Array, error) {
	if x.Kind() != y.Kind() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: kind mismatch between %s and %s", op, x.Kind(), y.Kind())
	}
	f, err := FactoryFor(x.Kind())
	if err != nil {
		return nil, err
	}
	kernel, err := f.BinaryOp(op)
	if err != nil {
		return nil, err
	}
	dims, err := BroadcastDims(x.Dims(), y.Dims())
	if err != nil {
		return nil, err
	}
	if x, err = Broadcast(x, dims); err != nil {
		return nil, err
	}
	if y, err = Broadcast(y, dims); err != nil {
		return nil, err
	}
	return kernel(x, y)
}

// Sum reduces an array along axes.
// The reduced axes are removed from the dimensions of the result.
func Sum(x *values.Array, axes []int) (*values.Array, error) {
	for _, axis := range axes {
		if axis < 0 || axis >= x.Rank() {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "axis %d out of range for an array of rank %d", axis, x.Rank())
		}
	}
	f, err := FactoryFor(x.Kind())
	if err != nil {
		return nil, err
	}
	return f.Sum(x, axes)
}
