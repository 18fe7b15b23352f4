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
	"reflect"

	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

var (
	goInt     = reflect.TypeFor[int]()
	goUint    = reflect.TypeFor[uint]()
	goFloat64 = reflect.TypeFor[float64]()
)

// ElementType returns the Go type of the innermost elements of a literal:
// the type of a scalar, or the element type of (nested) slices and arrays.
func ElementType(v any) reflect.Type {
	tp := reflect.TypeOf(v)
	for tp != nil && (tp.Kind() == reflect.Slice || tp.Kind() == reflect.Array) {
		tp = tp.Elem()
	}
	return tp
}

// IsHostLiteral returns true if the elements of a literal have the default
// Go type of untyped constants (int or float64).
// The kind of such literals is chosen by an autocast policy.
func IsHostLiteral(v any) bool {
	tp := ElementType(v)
	return tp == goInt || tp == goFloat64
}

func literalKind(tp reflect.Type) irkind.Kind {
	switch tp {
	case goInt:
		return irkind.Int64
	case goUint:
		return irkind.Uint64
	}
	if tp == nil {
		return irkind.Invalid
	}
	return irkind.FromGoType(tp)
}

func literalDims(v reflect.Value, dims []int) ([]int, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return dims, nil
	}
	dims = append(dims, v.Len())
	if v.Len() == 0 {
		// The remaining dimensions are given by the type only.
		for tp := v.Type().Elem(); tp.Kind() == reflect.Slice || tp.Kind() == reflect.Array; tp = tp.Elem() {
			if tp.Kind() == reflect.Array {
				dims = append(dims, tp.Len())
			} else {
				dims = append(dims, 0)
			}
		}
		return dims, nil
	}
	return literalDims(v.Index(0), dims)
}

func fillLiteral(out *Array, v reflect.Value, dims []int, pos int) (int, error) {
	if len(dims) == 0 {
		switch {
		case v.CanInt():
			out.setAt(pos, number{class: signedClass, i: v.Int()})
		case v.CanUint():
			out.setAt(pos, number{class: unsignedClass, u: v.Uint()})
		case v.CanFloat():
			out.setAt(pos, number{class: realClass, f: v.Float()})
		case v.CanComplex():
			out.setAt(pos, number{class: complexClass, c: v.Complex()})
		default:
			return pos, fmterr.Errorf(fmterr.TypeMismatch, "cannot convert %s to a tensor element", v.Type())
		}
		return pos + 1, nil
	}
	if v.Len() != dims[0] {
		return pos, fmterr.Errorf(fmterr.TypeMismatch, "ragged literal: got %d elements but want %d", v.Len(), dims[0])
	}
	var err error
	for i := range v.Len() {
		if pos, err = fillLiteral(out, v.Index(i), dims[1:], pos); err != nil {
			return pos, err
		}
	}
	return pos, nil
}

// FromGo converts a Go literal into an array.
// The literal can be an *Array, a scalar of a numeric Go type, or nested
// slices or arrays of a numeric Go type. Go int and uint are stored as int64
// and uint64 respectively.
func FromGo(v any) (*Array, error) {
	if arr, ok := v.(*Array); ok {
		if arr == nil {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot convert a nil array")
		}
		return arr, nil
	}
	kind := literalKind(ElementType(v))
	if !kind.IsValid() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot convert a literal of type %T to a tensor", v)
	}
	rv := reflect.ValueOf(v)
	dims, err := literalDims(rv, nil)
	if err != nil {
		return nil, err
	}
	out, err := Zeros(kind, dims...)
	if err != nil {
		return nil, err
	}
	if _, err := fillLiteral(out, rv, dims, 0); err != nil {
		return nil, err
	}
	return out, nil
}
