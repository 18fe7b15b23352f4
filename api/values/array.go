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

// Package values implements concrete host arrays bound to graph variables.
package values

import (
	"math"
	"math/cmplx"
	"reflect"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/fmt/fmtarray"
)

// Array is a multi-dimensional array stored on the host.
// The elements are stored in row-major order in a Go slice matching the kind
// of the array.
type Array struct {
	shape shapes.Shape
	kind  irkind.Kind
	data  any
}

func size(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func newArray(kind irkind.Kind, data any, dims []int) *Array {
	return &Array{
		shape: shapes.Make(kind.DType(), dims...),
		kind:  kind,
		data:  data,
	}
}

// New returns a new array given its flat data and its dimensions.
// The array takes ownership of the data.
func New[T irkind.Element](data []T, dims ...int) (*Array, error) {
	for _, d := range dims {
		if d < 0 {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "negative dimension in %v", dims)
		}
	}
	if len(data) != size(dims) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "got %d elements for dimensions %v", len(data), dims)
	}
	return newArray(irkind.KindOf[T](), data, append([]int{}, dims...)), nil
}

// FromSlice returns a new array given its flat data and its dimensions.
// It panics if the number of elements does not match the dimensions.
func FromSlice[T irkind.Element](data []T, dims ...int) *Array {
	a, err := New(data, dims...)
	if err != nil {
		panic(err)
	}
	return a
}

// Scalar returns an array of rank 0.
func Scalar[T irkind.Element](v T) *Array {
	return FromSlice([]T{v})
}

func makeSlice(kind irkind.Kind, n int) (any, error) {
	switch kind {
	case irkind.Int8:
		return make([]int8, n), nil
	case irkind.Int16:
		return make([]int16, n), nil
	case irkind.Int32:
		return make([]int32, n), nil
	case irkind.Int64:
		return make([]int64, n), nil
	case irkind.Uint8:
		return make([]uint8, n), nil
	case irkind.Uint16:
		return make([]uint16, n), nil
	case irkind.Uint32:
		return make([]uint32, n), nil
	case irkind.Uint64:
		return make([]uint64, n), nil
	case irkind.Float32:
		return make([]float32, n), nil
	case irkind.Float64:
		return make([]float64, n), nil
	case irkind.Complex64:
		return make([]complex64, n), nil
	case irkind.Complex128:
		return make([]complex128, n), nil
	}
	return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot create an array of kind %s", kind)
}

// Zeros returns an array of a given kind filled with zeros.
func Zeros(kind irkind.Kind, dims ...int) (*Array, error) {
	for _, d := range dims {
		if d < 0 {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "negative dimension in %v", dims)
		}
	}
	data, err := makeSlice(kind, size(dims))
	if err != nil {
		return nil, err
	}
	return newArray(kind, data, append([]int{}, dims...)), nil
}

// FromFloat64s returns an array of a given kind from float64 values.
func FromFloat64s(kind irkind.Kind, vals []float64, dims ...int) (*Array, error) {
	a, err := Zeros(kind, dims...)
	if err != nil {
		return nil, err
	}
	if len(vals) != a.Size() {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "got %d elements for dimensions %v", len(vals), dims)
	}
	for i, v := range vals {
		a.setAt(i, realNumber(v))
	}
	return a, nil
}

// Flat returns the elements of an array.
// It panics if T does not match the kind of the array.
func Flat[T irkind.Element](a *Array) []T {
	return a.data.([]T)
}

// Kind of the elements of the array.
func (a *Array) Kind() irkind.Kind {
	return a.kind
}

// Shape of the array.
func (a *Array) Shape() shapes.Shape {
	return a.shape
}

// Dims returns a copy of the dimensions of the array.
func (a *Array) Dims() []int {
	return append([]int{}, a.shape.Dimensions...)
}

// Rank returns the number of dimensions of the array.
func (a *Array) Rank() int {
	return len(a.shape.Dimensions)
}

// Size returns the number of elements in the array.
func (a *Array) Size() int {
	return size(a.shape.Dimensions)
}

// Data returns the underlying slice storing the elements.
func (a *Array) Data() any {
	return a.data
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	v := reflect.ValueOf(a.data)
	cp := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(cp, v)
	return newArray(a.kind, cp.Interface(), a.Dims())
}

// Reshape returns a copy of the array with new dimensions.
// One dimension can be -1, in which case it is inferred from the size.
func (a *Array) Reshape(dims ...int) (*Array, error) {
	dims = append([]int{}, dims...)
	inferred := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == -1 && inferred < 0:
			inferred = i
		case d < 0:
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "invalid dimensions %v", dims)
		default:
			known *= d
		}
	}
	if inferred >= 0 {
		if known == 0 || a.Size()%known != 0 {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot reshape %v into %v", a.shape.Dimensions, dims)
		}
		dims[inferred] = a.Size() / known
	}
	if size(dims) != a.Size() {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot reshape %v into %v: size mismatch", a.shape.Dimensions, dims)
	}
	cp := a.Clone()
	cp.shape = shapes.Make(a.kind.DType(), dims...)
	return cp, nil
}

// Equal returns true if both arrays have the same kind, dimensions, and elements.
func (a *Array) Equal(other *Array) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.kind != other.kind {
		return false
	}
	if !slices.Equal(a.shape.Dimensions, other.shape.Dimensions) {
		return false
	}
	if a.Size() == 0 {
		return true
	}
	return reflect.DeepEqual(a.data, other.data)
}

// IsFinite returns false if an element of the array is infinite or NaN.
func (a *Array) IsFinite() bool {
	if !a.kind.IsContinuous() {
		return true
	}
	for i := range a.Size() {
		n := a.at(i)
		if math.IsInf(n.f, 0) || math.IsNaN(n.f) || cmplx.IsInf(n.c) || cmplx.IsNaN(n.c) {
			return false
		}
	}
	return true
}

// String representation of the array.
func (a *Array) String() string {
	dims := a.shape.Dimensions
	switch data := a.data.(type) {
	case []int8:
		return fmtarray.SprintCompact(data, dims)
	case []int16:
		return fmtarray.SprintCompact(data, dims)
	case []int32:
		return fmtarray.SprintCompact(data, dims)
	case []int64:
		return fmtarray.SprintCompact(data, dims)
	case []uint8:
		return fmtarray.SprintCompact(data, dims)
	case []uint16:
		return fmtarray.SprintCompact(data, dims)
	case []uint32:
		return fmtarray.SprintCompact(data, dims)
	case []uint64:
		return fmtarray.SprintCompact(data, dims)
	case []float32:
		return fmtarray.SprintCompact(data, dims)
	case []float64:
		return fmtarray.SprintCompact(data, dims)
	case []complex64:
		return fmtarray.SprintCompact(data, dims)
	case []complex128:
		return fmtarray.SprintCompact(data, dims)
	}
	return "invalid array"
}
