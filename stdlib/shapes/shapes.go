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

// Package shapes provides Ops manipulating the shape of tensors.
package shapes

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// ShapeOp returns the extents of a tensor as a vector of int64.
type ShapeOp struct {
	ir.BaseOp
}

var _ ir.Op = (*ShapeOp)(nil)

func newShapeOp(g *ir.Graph) *ShapeOp {
	return g.Memo().Load("shape", func() ir.Op {
		return &ShapeOp{}
	}).(*ShapeOp)
}

// Key identifies the Op.
func (*ShapeOp) Key() string {
	return "shape"
}

func (*ShapeOp) String() string {
	return "Shape"
}

// Make builds an application of the Op.
func (op *ShapeOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 1 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 1 argument, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x}, ir.Vector(irkind.Int64))
}

// Perform returns the dimensions of the input.
func (*ShapeOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	dims := ins[0].Dims()
	out := make([]int64, len(dims))
	for i, d := range dims {
		out[i] = int64(d)
	}
	return []*values.Array{values.FromSlice(out, len(out))}, nil
}

// Grad returns no gradient: the shape does not depend on the elements.
func (*ShapeOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	return []*ir.Variable{nil}, nil
}

// InferShape returns the rank of the input.
func (*ShapeOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{{len(shapes[0])}}, nil
}

// VectorLength returns the rank of the input.
func (*ShapeOp) VectorLength(app *ir.Apply) (int, bool) {
	return app.Input(0).Rank(), true
}

// Shape returns the extents of x.
func Shape(g *ir.Graph, x any) (*ir.Variable, error) {
	return ir.Call(g, newShapeOp(g), x)
}

// intScalar coerces a shape argument into an integer scalar.
// Go integers become int64 constants.
func intScalar(g *ir.Graph, x any) (*ir.Variable, error) {
	if i, ok := goInt(x); ok {
		return g.ConstantOf(i, irkind.Int64)
	}
	v, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if v.Rank() != 0 || !v.Kind().IsInteger() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s is not an integer scalar", v)
	}
	return v, nil
}

// intVector coerces a shape argument into an integer vector.
// Go slices of integers become int64 constants.
func intVector(g *ir.Graph, x any) (*ir.Variable, error) {
	if ints, ok := x.([]int); ok {
		return g.ConstantOf(ints, irkind.Int64)
	}
	v, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if v.Rank() != 1 || !v.Kind().IsInteger() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s is not an integer vector", v)
	}
	return v, nil
}

func goInt(x any) (int, bool) {
	switch xT := x.(type) {
	case int:
		return xT, true
	case int32:
		return int(xT), true
	case int64:
		return int(xT), true
	}
	return 0, false
}

// scalarInt returns the value of a scalar integer array.
func scalarInt(a *values.Array) (int, error) {
	vals, err := a.Int64s()
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmterr.Errorf(fmterr.ShapeMismatch, "expected a scalar, got an array of dimensions %v", a.Dims())
	}
	return int(vals[0]), nil
}

// vectorInts returns the values of an integer vector array.
func vectorInts(a *values.Array) ([]int, error) {
	vals, err := a.Int64s()
	if err != nil {
		return nil, err
	}
	ints := make([]int, len(vals))
	for i, v := range vals {
		ints[i] = int(v)
	}
	return ints, nil
}

// wrapAxis converts a negative axis into a positive one.
func wrapAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, fmterr.Errorf(fmterr.ShapeMismatch, "axis %d out of range for rank %d", axis, rank)
	}
	return axis, nil
}
