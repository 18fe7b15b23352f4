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

package shapes

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
	"github.com/gx-org/tensorir/stdlib/subtensor"
)

// JoinOp concatenates tensors of the same rank along an axis.
// The axis is the first input, an integer scalar.
type JoinOp struct {
	ir.BaseOp
}

var _ ir.Op = (*JoinOp)(nil)

func newJoinOp(g *ir.Graph) *JoinOp {
	return g.Memo().Load("join", func() ir.Op {
		return &JoinOp{}
	}).(*JoinOp)
}

// Key identifies the Op.
func (*JoinOp) Key() string {
	return "join"
}

func (*JoinOp) String() string {
	return "Join"
}

// Make checks the arguments (the axis followed by the tensors) and builds an
// application of the Op. The output kind is the promotion of the kinds of the
// tensors.
//
// When the axis is a constant, the tensors must have the same broadcast pattern
// outside of the axis and the output keeps it. Otherwise, no dimension of the
// output is broadcastable.
func (op *JoinOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) < 2 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires an axis and at least one tensor", op)
	}
	axis, err := intScalar(g, args[0])
	if err != nil {
		return nil, fmterr.PrefixWith("%s: axis: ", op)(err)
	}
	xs, err := g.AsVariables(args[1:]...)
	if err != nil {
		return nil, err
	}
	rank := xs[0].Rank()
	kinds := make([]irkind.Kind, len(xs))
	for i, x := range xs {
		if x.Rank() == 0 {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s cannot join scalars: use Stack", op)
		}
		if x.Rank() != rank {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: %s has rank %d but %s has rank %d", op, xs[0], rank, x, x.Rank())
		}
		kinds[i] = x.Kind()
	}
	kind, err := irkind.Promote(kinds...)
	if err != nil {
		return nil, err
	}
	pattern := make(ir.BroadcastPattern, rank)
	if at, err := ir.GetConstantInt(axis); err == nil {
		if at, err = wrapAxis(at, rank); err != nil {
			return nil, fmterr.PrefixWith("%s: ", op)(err)
		}
		copy(pattern, xs[0].Pattern())
		pattern[at] = false
		for _, x := range xs[1:] {
			other := x.Pattern().Clone()
			other[at] = false
			if !other.Equal(pattern) {
				return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: patterns %s and %s differ outside of axis %d", op, xs[0].Pattern(), x.Pattern(), at)
			}
		}
	}
	tp, err := ir.TensorOf(kind, pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, append([]*ir.Variable{axis}, xs...), tp)
}

// Perform concatenates concrete values.
func (*JoinOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	axis, err := scalarInt(ins[0])
	if err != nil {
		return nil, err
	}
	xs := ins[1:]
	if axis, err = wrapAxis(axis, xs[0].Rank()); err != nil {
		return nil, err
	}
	kind := app.Output(0).Kind()
	cast := make([]*values.Array, len(xs))
	for i, x := range xs {
		if cast[i], err = x.Cast(kind); err != nil {
			return nil, err
		}
	}
	out, err := kernels.Concat(axis, cast...)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad splits the gradient of the output along the axis.
func (*JoinOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	ins := app.Inputs()
	grads := make([]*ir.Variable, len(ins))
	axis, xs := ins[0], ins[1:]
	if !app.Output(0).Kind().IsContinuous() {
		return grads, nil
	}
	g := app.Graph()
	sizes := make([]any, len(xs))
	for i, x := range xs {
		shape, err := Shape(g, x)
		if err != nil {
			return nil, err
		}
		if sizes[i], err = subtensor.Get(g, shape, axis); err != nil {
			return nil, err
		}
	}
	sizesVec, err := MakeVector(g, irkind.Int64, sizes...)
	if err != nil {
		return nil, err
	}
	parts, err := Split(g, outGrads[0], sizesVec, axis)
	if err != nil {
		return nil, err
	}
	for i, x := range xs {
		if !x.Kind().IsContinuous() {
			continue
		}
		if grads[i+1], err = elemwise.ReduceLike(g, parts[i], x); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

// InferShape sums the extents along the axis when the axis is a constant.
func (*JoinOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	xs := shapes[1:]
	rank := len(xs[0])
	at, err := ir.GetConstantInt(app.Input(0))
	if err == nil {
		at, err = wrapAxis(at, rank)
	}
	if err != nil {
		return []ir.Shape{ir.UnknownShape(rank)}, nil
	}
	out := make(ir.Shape, rank)
	for axis := range out {
		out[axis] = ir.UnknownDim
		if axis == at {
			continue
		}
		for _, x := range xs {
			if x[axis] != ir.UnknownDim {
				out[axis] = x[axis]
				break
			}
		}
	}
	total := 0
	for _, x := range xs {
		if x[at] == ir.UnknownDim {
			total = ir.UnknownDim
			break
		}
		total += x[at]
	}
	out[at] = total
	return []ir.Shape{out}, nil
}

// VectorLength sums the lengths of joined vectors.
func (*JoinOp) VectorLength(app *ir.Apply) (int, bool) {
	total := 0
	for _, x := range app.Inputs()[1:] {
		n, err := ir.GetVectorLength(x)
		if err != nil {
			return 0, false
		}
		total += n
	}
	return total, true
}

// Join concatenates tensors of the same rank along an axis.
// The axis is an int or an integer scalar variable.
// Joining a single tensor returns the tensor.
func Join(g *ir.Graph, axis any, xs ...any) (*ir.Variable, error) {
	if len(xs) == 1 {
		return g.AsVariable(xs[0])
	}
	return ir.Call(g, newJoinOp(g), append([]any{axis}, xs...)...)
}

// Concatenate joins a list of tensors along an axis.
func Concatenate(g *ir.Graph, xs []any, axis int) (*ir.Variable, error) {
	if len(xs) == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "nothing to concatenate")
	}
	return Join(g, axis, xs...)
}

// Stack inserts tensors of the same type as slices along a new leading axis.
// Scalars of the same kind are assembled with MakeVector.
func Stack(g *ir.Graph, xs ...any) (*ir.Variable, error) {
	vs, err := g.AsVariables(xs...)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "nothing to stack")
	}
	allScalars := true
	for _, v := range vs {
		if v.Rank() != 0 || v.Kind() != vs[0].Kind() {
			allScalars = false
			break
		}
	}
	if allScalars {
		return MakeVector(g, vs[0].Kind(), xs...)
	}
	padded := make([]any, len(vs))
	for i, v := range vs {
		if padded[i], err = elemwise.PadLeft(g, v, v.Rank()+1); err != nil {
			return nil, err
		}
	}
	return ir.Call(g, newJoinOp(g), append([]any{0}, padded...)...)
}
