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

// Package elemwise implements elementwise operations with broadcasting,
// axis shuffles and reductions.
package elemwise

import (
	"slices"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
)

// Elemwise applies a scalar operation to every element of its inputs.
// Inputs are broadcast together: inputs of lower rank are left-padded with
// broadcastable dimensions and a dimension of the output is broadcastable only
// if it is broadcastable in every input.
type Elemwise struct {
	ir.BaseOp
	scalar ScalarOp
}

var _ ir.Op = (*Elemwise)(nil)

// New returns the Elemwise Op of a scalar operation.
// The Op is shared with all the callers in the graph.
func New(g *ir.Graph, scalar ScalarOp) *Elemwise {
	key := "elemwise{" + scalar.Name() + "}"
	return g.Memo().Load(key, func() ir.Op {
		return &Elemwise{scalar: scalar}
	}).(*Elemwise)
}

// Apply builds the application of a scalar operation to arguments and returns
// its output.
func Apply(g *ir.Graph, scalar ScalarOp, args ...any) (*ir.Variable, error) {
	return ir.Call(g, New(g, scalar), args...)
}

// Scalar returns the scalar operation applied by the Op.
func (op *Elemwise) Scalar() ScalarOp {
	return op.scalar
}

// Key identifies the Op.
func (op *Elemwise) Key() string {
	return "elemwise{" + op.scalar.Name() + "}"
}

func (op *Elemwise) String() string {
	return op.scalar.Name()
}

// Make checks the arguments and builds an application of the Op.
func (op *Elemwise) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	arity := op.scalar.Arity()
	switch {
	case arity == 0 && len(args) < 2:
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires at least 2 arguments, got %d", op, len(args))
	case arity > 0 && len(args) != arity:
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires %d arguments, got %d", op, arity, len(args))
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	rank := 0
	kinds := make([]irkind.Kind, len(ins))
	patterns := make([]ir.BroadcastPattern, len(ins))
	for i, in := range ins {
		rank = max(rank, in.Rank())
		kinds[i] = in.Kind()
		patterns[i] = in.Pattern()
	}
	for i, in := range ins {
		if in.Rank() == rank {
			continue
		}
		if ins[i], err = PadLeft(g, in, rank); err != nil {
			return nil, err
		}
	}
	kind, err := op.scalar.OutKind(g, kinds)
	if err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	tp, err := ir.TensorOf(kind, ir.And(patterns...))
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, tp)
}

// Perform computes the output given concrete values of the inputs.
func (op *Elemwise) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	dims := make([][]int, len(ins))
	for i, in := range ins {
		dims[i] = in.Dims()
	}
	outDims, err := kernels.BroadcastDims(dims...)
	if err != nil {
		return nil, err
	}
	out, err := op.scalar.Perform(ins, app.Output(0).Kind())
	if err != nil {
		return nil, err
	}
	if out, err = kernels.Broadcast(out, outDims); err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad returns the gradients of the inputs, summed over the dimensions
// along which the inputs have been broadcast.
func (op *Elemwise) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	g := app.Graph()
	if !app.Output(0).Kind().IsContinuous() {
		return make([]*ir.Variable, len(app.Inputs())), nil
	}
	grads, err := op.scalar.Grad(g, app.Inputs(), app.Output(0), outGrads[0])
	if err != nil {
		return nil, err
	}
	for i, in := range app.Inputs() {
		if grads[i] == nil {
			continue
		}
		if !in.Kind().IsContinuous() {
			grads[i] = nil
			continue
		}
		if grads[i], err = ReduceLike(g, grads[i], in); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

// InferShape returns the shape of the output.
func (op *Elemwise) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := app.Output(0)
	shape := ir.ShapeOfType(out.Type())
	for axis := range shape {
		if shape[axis] == 1 {
			continue
		}
		known := true
		for _, in := range shapes {
			switch d := in[axis]; d {
			case 1:
			case ir.UnknownDim:
				known = false
			default:
				if shape[axis] != ir.UnknownDim && shape[axis] != d {
					return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: cannot broadcast shapes %v", op, shapes)
				}
				shape[axis] = d
			}
		}
		if shape[axis] == ir.UnknownDim && known {
			shape[axis] = 1
		}
	}
	return []ir.Shape{shape}, nil
}

// Aliasing declares the output of view operations as a view of the input.
func (op *Elemwise) Aliasing() ir.Aliasing {
	if !op.scalar.view() {
		return ir.Aliasing{}
	}
	return ir.Aliasing{View: map[int][]int{0: {0}}}
}

// ConstantSource returns the input with the same value than the output.
func (op *Elemwise) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	i := op.scalar.constantInput()
	if i < 0 {
		return nil, false
	}
	return app.Input(i), true
}

// ReduceLike sums a gradient over the dimensions along which a variable has
// been broadcast and converts it to the kind of the variable.
// The result has the type of the variable.
func ReduceLike(g *ir.Graph, grad, like *ir.Variable) (*ir.Variable, error) {
	var err error
	if extra := grad.Rank() - like.Rank(); extra > 0 {
		axes := make([]int, extra)
		for i := range axes {
			axes[i] = i
		}
		if grad, err = Sum(g, grad, axes...); err != nil {
			return nil, err
		}
	}
	likePattern := like.Pattern()
	if grad.Rank() < like.Rank() || !grad.Pattern().Equal(ir.And(grad.Pattern(), likePattern)) {
		// Stretch the gradient along dimensions which are not broadcastable in like.
		if grad, err = Fill(g, like, grad); err != nil {
			return nil, err
		}
	}
	var axes []int
	gradPattern := grad.Pattern()
	for axis, bc := range likePattern {
		if bc && !gradPattern[axis] {
			axes = append(axes, axis)
		}
	}
	if len(axes) > 0 {
		if grad, err = Sum(g, grad, axes...); err != nil {
			return nil, err
		}
		order := make([]int, 0, like.Rank())
		next := 0
		for axis := range likePattern {
			if slices.Contains(axes, axis) {
				order = append(order, -1)
				continue
			}
			order = append(order, next)
			next++
		}
		if grad, err = DimShuffle(g, grad, order...); err != nil {
			return nil, err
		}
	}
	if grad.Kind() != like.Kind() {
		if grad, err = Cast(g, grad, like.Kind()); err != nil {
			return nil, err
		}
	}
	return grad, nil
}
