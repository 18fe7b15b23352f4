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
	"github.com/gx-org/tensorir/build/fmterr"
)

// CanRepresent returns true if every value of kind from is a value of kind to.
//
// int8, uint8 and int16 fit in float32 and complex64. Other integers only
// promote to float64 and complex128: accepting uint16 in float32 would give
// int16 and uint16 two minimal upper bounds, int32 and float32.
func CanRepresent(from, to Kind) bool {
	if from == to {
		return from.IsValid()
	}
	switch {
	case from.IsUnsigned() && to.IsUnsigned():
		return to.Bits() >= from.Bits()
	case from.IsUnsigned() && to.IsSigned():
		return to.Bits() > from.Bits()
	case from.IsSigned() && to.IsSigned():
		return to.Bits() >= from.Bits()
	case from.IsInteger() && fitsFloat32(from):
		return to.IsFloat() || to.IsComplex()
	case from.IsInteger():
		return to == Float64 || to == Complex128
	case from.IsFloat() && to.IsFloat():
		return to.Bits() >= from.Bits()
	case from.IsFloat() && to.IsComplex():
		return to.Bits() >= 2*from.Bits()
	case from.IsComplex() && to.IsComplex():
		return to.Bits() >= from.Bits()
	}
	return false
}

func fitsFloat32(k Kind) bool {
	return k == Int8 || k == Uint8 || k == Int16
}

// Promote returns the narrowest kind able to represent every value of all
// the kinds passed as arguments.
//
// Promote is commutative and associative: it computes the least upper bound
// of the kinds in the CanRepresent order.
func Promote(kinds ...Kind) (Kind, error) {
	if len(kinds) == 0 {
		return Invalid, fmterr.Errorf(fmterr.TypeMismatch, "cannot promote an empty list of kinds")
	}
	for _, k := range kinds {
		if !k.IsValid() {
			return Invalid, fmterr.Errorf(fmterr.TypeMismatch, "cannot promote kinds %v: %s is not a valid element kind", kinds, k)
		}
	}
	// Kind constants are declared in a linear extension of the order:
	// the first upper bound is the least upper bound.
	for candidate := Int8; candidate < Max; candidate++ {
		if representsAll(candidate, kinds) {
			return candidate, nil
		}
	}
	return Invalid, fmterr.Internalf("no upper bound for kinds %v", kinds)
}

func representsAll(to Kind, kinds []Kind) bool {
	for _, k := range kinds {
		if !CanRepresent(k, to) {
			return false
		}
	}
	return true
}
