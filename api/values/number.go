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
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

type numberClass int

const (
	signedClass numberClass = iota
	unsignedClass
	realClass
	complexClass
)

// number holds a single element of any kind without loss.
type number struct {
	class numberClass
	i     int64
	u     uint64
	f     float64
	c     complex128
}

func realNumber(f float64) number {
	return number{class: realClass, f: f}
}

func (n number) int64() int64 {
	switch n.class {
	case signedClass:
		return n.i
	case unsignedClass:
		return int64(n.u)
	case realClass:
		return int64(n.f)
	}
	return int64(real(n.c))
}

func (n number) uint64() uint64 {
	switch n.class {
	case signedClass:
		return uint64(n.i)
	case unsignedClass:
		return n.u
	case realClass:
		return uint64(n.f)
	}
	return uint64(real(n.c))
}

func (n number) float64() float64 {
	switch n.class {
	case signedClass:
		return float64(n.i)
	case unsignedClass:
		return float64(n.u)
	case realClass:
		return n.f
	}
	return real(n.c)
}

func (n number) complex128() complex128 {
	if n.class == complexClass {
		return n.c
	}
	return complex(n.float64(), 0)
}

func (a *Array) at(i int) number {
	switch d := a.data.(type) {
	case []int8:
		return number{class: signedClass, i: int64(d[i])}
	case []int16:
		return number{class: signedClass, i: int64(d[i])}
	case []int32:
		return number{class: signedClass, i: int64(d[i])}
	case []int64:
		return number{class: signedClass, i: d[i]}
	case []uint8:
		return number{class: unsignedClass, u: uint64(d[i])}
	case []uint16:
		return number{class: unsignedClass, u: uint64(d[i])}
	case []uint32:
		return number{class: unsignedClass, u: uint64(d[i])}
	case []uint64:
		return number{class: unsignedClass, u: d[i]}
	case []float32:
		return number{class: realClass, f: float64(d[i])}
	case []float64:
		return number{class: realClass, f: d[i]}
	case []complex64:
		return number{class: complexClass, c: complex128(d[i])}
	case []complex128:
		return number{class: complexClass, c: d[i]}
	}
	return number{}
}

func (a *Array) setAt(i int, n number) {
	switch d := a.data.(type) {
	case []int8:
		d[i] = int8(n.int64())
	case []int16:
		d[i] = int16(n.int64())
	case []int32:
		d[i] = int32(n.int64())
	case []int64:
		d[i] = n.int64()
	case []uint8:
		d[i] = uint8(n.uint64())
	case []uint16:
		d[i] = uint16(n.uint64())
	case []uint32:
		d[i] = uint32(n.uint64())
	case []uint64:
		d[i] = n.uint64()
	case []float32:
		d[i] = float32(n.float64())
	case []float64:
		d[i] = n.float64()
	case []complex64:
		d[i] = complex64(n.complex128())
	case []complex128:
		d[i] = n.complex128()
	}
}

// Cast returns a copy of the array converted to another kind.
// Complex arrays cannot be cast to real kinds.
func (a *Array) Cast(kind irkind.Kind) (*Array, error) {
	if kind == a.kind {
		return a.Clone(), nil
	}
	if a.kind.IsComplex() && !kind.IsComplex() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot cast %s to %s: imaginary part would be discarded", a.kind, kind)
	}
	out, err := Zeros(kind, a.Dims()...)
	if err != nil {
		return nil, err
	}
	for i := range a.Size() {
		out.setAt(i, a.at(i))
	}
	return out, nil
}

// ExactlyRepresentedBy returns true if casting the array to a kind and back
// does not change any element.
func (a *Array) ExactlyRepresentedBy(kind irkind.Kind) bool {
	if a.kind.IsComplex() && !kind.IsComplex() {
		return false
	}
	cast, err := a.Cast(kind)
	if err != nil {
		return false
	}
	for i := range a.Size() {
		if a.at(i) != cast.at(i).as(a.kind) {
			return false
		}
	}
	return true
}

// as converts a number into the representation used by a kind.
func (n number) as(kind irkind.Kind) number {
	switch {
	case kind.IsSigned():
		return number{class: signedClass, i: n.int64()}
	case kind.IsUnsigned():
		return number{class: unsignedClass, u: n.uint64()}
	case kind.IsFloat():
		return number{class: realClass, f: n.float64()}
	}
	return number{class: complexClass, c: n.complex128()}
}

// Int64s returns the elements of an integer array as int64.
func (a *Array) Int64s() ([]int64, error) {
	if !a.kind.IsInteger() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot read %s elements as integers", a.kind)
	}
	vals := make([]int64, a.Size())
	for i := range vals {
		vals[i] = a.at(i).int64()
	}
	return vals, nil
}

// Float64s returns the elements of a real array as float64.
func (a *Array) Float64s() ([]float64, error) {
	if a.kind.IsComplex() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot read %s elements as real numbers", a.kind)
	}
	vals := make([]float64, a.Size())
	for i := range vals {
		vals[i] = a.at(i).float64()
	}
	return vals, nil
}

// Complex128s returns the elements of the array as complex128.
func (a *Array) Complex128s() []complex128 {
	vals := make([]complex128, a.Size())
	for i := range vals {
		vals[i] = a.at(i).complex128()
	}
	return vals
}

// Item returns the single element of an array of size 1 as a Go value of the
// array element type.
func (a *Array) Item() (any, error) {
	if a.Size() != 1 {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "array of dimensions %v has %d elements", a.shape.Dimensions, a.Size())
	}
	switch d := a.data.(type) {
	case []int8:
		return d[0], nil
	case []int16:
		return d[0], nil
	case []int32:
		return d[0], nil
	case []int64:
		return d[0], nil
	case []uint8:
		return d[0], nil
	case []uint16:
		return d[0], nil
	case []uint32:
		return d[0], nil
	case []uint64:
		return d[0], nil
	case []float32:
		return d[0], nil
	case []float64:
		return d[0], nil
	case []complex64:
		return d[0], nil
	case []complex128:
		return d[0], nil
	}
	return nil, fmterr.Internalf("invalid array data %T", a.data)
}
