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

package irkind

import (
	"reflect"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gx-org/tensorir/build/fmterr"
)

// Native describes how elements of a kind are represented by a code generator.
type Native struct {
	// Host is the kind of the Go scalar storing an element.
	Host reflect.Kind
	// CType is the name of the C type storing an element.
	CType string
	// Tag is the low-level data type of the element.
	Tag dtypes.DType
}

var natives = [...]Native{
	Int8:       {Host: reflect.Int8, CType: "int8_t", Tag: dtypes.Int8},
	Uint8:      {Host: reflect.Uint8, CType: "uint8_t", Tag: dtypes.Uint8},
	Int16:      {Host: reflect.Int16, CType: "int16_t", Tag: dtypes.Int16},
	Uint16:     {Host: reflect.Uint16, CType: "uint16_t", Tag: dtypes.Uint16},
	Int32:      {Host: reflect.Int32, CType: "int32_t", Tag: dtypes.Int32},
	Uint32:     {Host: reflect.Uint32, CType: "uint32_t", Tag: dtypes.Uint32},
	Int64:      {Host: reflect.Int64, CType: "int64_t", Tag: dtypes.Int64},
	Uint64:     {Host: reflect.Uint64, CType: "uint64_t", Tag: dtypes.Uint64},
	Float32:    {Host: reflect.Float32, CType: "float", Tag: dtypes.Float32},
	Float64:    {Host: reflect.Float64, CType: "double", Tag: dtypes.Float64},
	Complex64:  {Host: reflect.Complex64, CType: "float _Complex", Tag: dtypes.Complex64},
	Complex128: {Host: reflect.Complex128, CType: "double _Complex", Tag: dtypes.Complex128},
}

// Native returns the native descriptor of a kind.
func (k Kind) Native() (Native, error) {
	if !k.IsValid() {
		return Native{}, fmterr.Errorf(fmterr.TypeMismatch, "unsupported element kind %s", k)
	}
	return natives[k], nil
}

// DType returns the low-level data type of the kind.
// It returns dtypes.InvalidDType if the kind is not valid.
func (k Kind) DType() dtypes.DType {
	if !k.IsValid() {
		return dtypes.InvalidDType
	}
	return natives[k].Tag
}

// FromDType returns the kind of a low-level data type.
func FromDType(dt dtypes.DType) Kind {
	for k := Int8; k < Max; k++ {
		if natives[k].Tag == dt {
			return k
		}
	}
	return Invalid
}

// FromGoType returns the kind of a Go type.
func FromGoType(tp reflect.Type) Kind {
	return FromDType(dtypes.FromGoType(tp))
}
