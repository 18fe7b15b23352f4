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

// Package irkind defines the element kinds of tensors in the intermediate representation (IR).
package irkind

// Kind of the elements of a tensor.
type Kind uint

// Element kinds supported by tensors.
// The order of the constants is a linear extension of the promotion order:
// if a kind can be promoted to another kind, it is declared before it.
const (
	Invalid Kind = iota

	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Complex64
	Complex128

	// Max value for a Kind constant.
	Max
)

// DefaultInt is the default kind for integers when no autocast applies.
const DefaultInt = Int64

// Element is the set of Go types storing tensor elements.
type Element interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		complex64 | complex128
}

var names = [...]string{
	Invalid:    "invalid",
	Int8:       "int8",
	Uint8:      "uint8",
	Int16:      "int16",
	Uint16:     "uint16",
	Int32:      "int32",
	Uint32:     "uint32",
	Int64:      "int64",
	Uint64:     "uint64",
	Float32:    "float32",
	Float64:    "float64",
	Complex64:  "complex64",
	Complex128: "complex128",
}

// String returns a string representation of a kind.
func (k Kind) String() string {
	if k >= Max {
		return "invalid"
	}
	return names[k]
}

// FromString returns a kind given its name.
// Unknown names return Invalid.
func FromString(s string) Kind {
	for k := Int8; k < Max; k++ {
		if names[k] == s {
			return k
		}
	}
	return Invalid
}

// KindOf returns the kind of a Go element type.
func KindOf[T Element]() Kind {
	var t T
	switch any(t).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	return Invalid
}

// All returns all the valid kinds.
func All() []Kind {
	all := make([]Kind, 0, Max-1)
	for k := Int8; k < Max; k++ {
		all = append(all, k)
	}
	return all
}

// IsValid returns true if the kind is one of the supported element kinds.
func (k Kind) IsValid() bool {
	return k > Invalid && k < Max
}

// IsSigned returns true for signed integers.
func (k Kind) IsSigned() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsUnsigned returns true for unsigned integers.
func (k Kind) IsUnsigned() bool {
	switch k {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsInteger returns true if the kind is a signed or unsigned integer.
func (k Kind) IsInteger() bool {
	return k.IsSigned() || k.IsUnsigned()
}

// IsFloat returns true if the kind is a real floating point number.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// IsComplex returns true if the kind is a complex number.
func (k Kind) IsComplex() bool {
	return k == Complex64 || k == Complex128
}

// IsContinuous returns true for kinds on which gradients are defined.
func (k Kind) IsContinuous() bool {
	return k.IsFloat() || k.IsComplex()
}

// Bits returns the size of an element in bits.
func (k Kind) Bits() int {
	switch k {
	case Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64, Complex64:
		return 64
	case Complex128:
		return 128
	}
	return 0
}

// Real returns the kind of the real part of a complex kind.
// Other kinds are returned unchanged.
func (k Kind) Real() Kind {
	switch k {
	case Complex64:
		return Float32
	case Complex128:
		return Float64
	}
	return k
}
