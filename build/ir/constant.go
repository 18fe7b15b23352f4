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

package ir

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
)

// GetConstantValue returns the scalar value of a variable if the variable is
// a constant holding a single element, or if it is computed from such a
// constant by operations preserving values (see Op.ConstantSource).
// The value is converted to the kind of the variable.
//
// A ValueUnavailable error is returned otherwise. Callers must treat it as
// "unknown" and keep the variable symbolic.
func GetConstantValue(v *Variable) (*values.Array, error) {
	for cur := v; ; {
		if cur.IsConstant() {
			val := cur.Value()
			if val.Size() != 1 {
				return nil, fmterr.Errorf(fmterr.ValueUnavailable, "%s is a constant of %d elements", v, val.Size())
			}
			scalar, err := val.Reshape()
			if err != nil {
				return nil, err
			}
			return scalar.Cast(v.Kind())
		}
		owner := cur.Owner()
		if owner == nil {
			return nil, fmterr.Errorf(fmterr.ValueUnavailable, "%s is not a constant", v)
		}
		src, ok := owner.Op().ConstantSource(owner)
		if !ok {
			return nil, fmterr.Errorf(fmterr.ValueUnavailable, "%s is computed by %s", v, owner.Op())
		}
		cur = src
	}
}

// GetConstantInt returns the value of an integer scalar constant.
func GetConstantInt(v *Variable) (int, error) {
	val, err := GetConstantValue(v)
	if err != nil {
		return 0, err
	}
	if !val.Kind().IsInteger() {
		return 0, fmterr.Errorf(fmterr.TypeMismatch, "%s is a constant of kind %s, not an integer", v, val.Kind())
	}
	ints, err := val.Int64s()
	if err != nil {
		return 0, err
	}
	return int(ints[0]), nil
}

// GetVectorLength returns the static length of a variable of rank 1.
// The length is known for constants and for applications of Ops declaring it
// (see Op.VectorLength). A ValueUnavailable error is returned otherwise.
func GetVectorLength(v *Variable) (int, error) {
	if v.Rank() != 1 {
		return 0, fmterr.Errorf(fmterr.TypeMismatch, "%s has rank %d: length only defined for vectors", v, v.Rank())
	}
	if v.IsConstant() {
		return v.Value().Size(), nil
	}
	if v.Pattern()[0] {
		return 1, nil
	}
	owner := v.Owner()
	if owner == nil {
		return 0, fmterr.Errorf(fmterr.ValueUnavailable, "length of input %s is not known statically", v)
	}
	n, ok := owner.Op().VectorLength(owner)
	if !ok {
		return 0, fmterr.Errorf(fmterr.ValueUnavailable, "length of %s computed by %s is not known statically", v, owner.Op())
	}
	return n, nil
}
