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
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// patternOf returns the broadcast pattern of a constant value:
// dimensions of extent 1 are broadcastable.
func patternOf(arr *values.Array) BroadcastPattern {
	dims := arr.Dims()
	pattern := make(BroadcastPattern, len(dims))
	for i, d := range dims {
		pattern[i] = d == 1
	}
	return pattern
}

func (g *Graph) constantFromArray(arr *values.Array) (*Variable, error) {
	tp, err := TensorOf(arr.Kind(), patternOf(arr))
	if err != nil {
		return nil, err
	}
	return g.newVariable(tp, "", NoOwner, 0, arr), nil
}

// Constant converts a Go literal into a constant.
// Go int and float64 scalars are converted with the autocast policy of the
// graph. Nested slices of int give int64 and nested slices of float64 give
// float64. Other literals keep their kind.
// Dimensions of extent 1 are broadcastable.
func (g *Graph) Constant(x any) (*Variable, error) {
	arr, err := values.FromGo(x)
	if err != nil {
		return nil, err
	}
	if arr.Rank() == 0 && values.IsHostLiteral(x) {
		if arr, err = g.Policy().Autocast(arr); err != nil {
			return nil, err
		}
	} else if _, isArray := x.(*values.Array); isArray {
		arr = arr.Clone()
	}
	return g.constantFromArray(arr)
}

// ConstantOf converts a Go literal into a constant of a given kind.
func (g *Graph) ConstantOf(x any, kind irkind.Kind) (*Variable, error) {
	arr, err := values.FromGo(x)
	if err != nil {
		return nil, err
	}
	if arr, err = arr.Cast(kind); err != nil {
		return nil, err
	}
	return g.constantFromArray(arr)
}

// AsVariable coerces an argument into a variable of the graph.
// The argument can be a variable, an application with a single output,
// or a literal converted with Constant.
func (g *Graph) AsVariable(x any) (*Variable, error) {
	switch xT := x.(type) {
	case *Variable:
		if xT == nil {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "nil variable")
		}
		if xT.graph != g {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "variable %s belongs to another graph", xT)
		}
		return xT, nil
	case *Apply:
		if xT == nil {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "nil application")
		}
		if len(xT.outputs) != 1 {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "ambiguous input: %s has %d outputs", xT, len(xT.outputs))
		}
		return g.AsVariable(xT.outputs[0])
	case nil:
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot convert nil to a variable")
	}
	return g.Constant(x)
}

// AsVariables coerces a list of arguments into variables of the graph.
func (g *Graph) AsVariables(xs ...any) ([]*Variable, error) {
	vars := make([]*Variable, len(xs))
	for i, x := range xs {
		var err error
		if vars[i], err = g.AsVariable(x); err != nil {
			return nil, fmterr.PrefixWith("argument %d: ", i)(err)
		}
	}
	return vars, nil
}
