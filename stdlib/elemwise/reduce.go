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

package elemwise

import (
	"fmt"
	"slices"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
)

// SumOp adds the elements of a tensor along axes.
// The reduced axes are removed from the output.
type SumOp struct {
	ir.BaseOp
	axes []int
}

var _ ir.Op = (*SumOp)(nil)

// normalizeAxes returns sorted unique axes, in [0, rank).
// No axis means all the axes.
func normalizeAxes(rank int, axes []int) ([]int, error) {
	if len(axes) == 0 {
		all := make([]int, rank)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	out := make([]int, len(axes))
	for i, axis := range axes {
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "axis %d out of range for rank %d", axes[i], rank)
		}
		out[i] = axis
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Key identifies the Op.
func (op *SumOp) Key() string {
	return fmt.Sprintf("sum{%v}", op.axes)
}

func (op *SumOp) String() string {
	return op.Key()
}

// Axes returns the reduced axes.
func (op *SumOp) Axes() []int {
	return slices.Clone(op.axes)
}

// Make checks the input and builds an application of the Op.
func (op *SumOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 1 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 1 argument, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	for _, axis := range op.axes {
		if axis >= x.Rank() {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: axis %d out of range for %s of rank %d", op, axis, x, x.Rank())
		}
	}
	var pattern ir.BroadcastPattern
	for axis, bc := range x.Pattern() {
		if !slices.Contains(op.axes, axis) {
			pattern = append(pattern, bc)
		}
	}
	tp, err := ir.TensorOf(x.Kind(), pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x}, tp)
}

// Perform sums a concrete value.
func (op *SumOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	out, err := kernels.Sum(ins[0], op.axes)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad broadcasts the gradient of the output back to the shape of the input.
func (op *SumOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x := app.Input(0)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil}, nil
	}
	g := app.Graph()
	order := make([]int, x.Rank())
	next := 0
	for axis := range order {
		if slices.Contains(op.axes, axis) {
			order[axis] = NewAxis
			continue
		}
		order[axis] = next
		next++
	}
	gz, err := DimShuffle(g, outGrads[0], order...)
	if err != nil {
		return nil, err
	}
	gx, err := Fill(g, x, gz)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

// InferShape returns the shape of the output.
func (op *SumOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	var out ir.Shape
	for axis, d := range shapes[0] {
		if !slices.Contains(op.axes, axis) {
			out = append(out, d)
		}
	}
	return []ir.Shape{out}, nil
}

// Sum adds the elements of x along axes. Without axes, all the elements are
// added. Negative axes count from the last dimension.
// The kind of the output is the kind of x.
func Sum(g *ir.Graph, x any, axes ...int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if axes, err = normalizeAxes(xv.Rank(), axes); err != nil {
		return nil, fmterr.PrefixWith("sum: ")(err)
	}
	if len(axes) == 0 {
		return xv, nil
	}
	op := g.Memo().Load(fmt.Sprintf("sum{%v}", axes), func() ir.Op {
		return &SumOp{axes: axes}
	})
	return ir.Call(g, op, xv)
}

// reducedSizeOp returns, as a scalar of a given kind, the number of elements
// of its input along axes.
type reducedSizeOp struct {
	ir.BaseOp
	axes []int
	kind irkind.Kind
}

func (op *reducedSizeOp) Key() string {
	return fmt.Sprintf("reduced_size{%v,%s}", op.axes, op.kind)
}

func (op *reducedSizeOp) String() string {
	return op.Key()
}

func (op *reducedSizeOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x}, ir.Scalar(op.kind))
}

func (op *reducedSizeOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	dims := ins[0].Dims()
	n := 1
	for _, axis := range op.axes {
		n *= dims[axis]
	}
	out, err := values.FromFloat64s(op.kind, []float64{float64(n)})
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad: the output does not depend on the values of the input.
func (op *reducedSizeOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	return []*ir.Variable{nil}, nil
}

func (op *reducedSizeOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{{}}, nil
}

// meanAccumulator is the kind in which means are accumulated.
// The kind of a mean is the promotion of the input kind with the accumulator.
const meanAccumulator = irkind.Float32

// Mean averages the elements of x along axes. Without axes, all the elements
// are averaged.
// The mean of floats or complex numbers keeps their kind. The mean of int8,
// uint8 or int16 is a float32, the mean of wider integers a float64.
func Mean(g *ir.Graph, x any, axes ...int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if axes, err = normalizeAxes(xv.Rank(), axes); err != nil {
		return nil, fmterr.PrefixWith("mean: ")(err)
	}
	kind, err := irkind.Promote(xv.Kind(), meanAccumulator)
	if err != nil {
		return nil, err
	}
	acc, err := Cast(g, xv, kind)
	if err != nil {
		return nil, err
	}
	sum, err := Sum(g, acc, axes...)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		return sum, nil
	}
	sizeOp := g.Memo().Load(fmt.Sprintf("reduced_size{%v,%s}", axes, kind), func() ir.Op {
		return &reducedSizeOp{axes: axes, kind: kind}
	})
	size, err := ir.Call(g, sizeOp, xv)
	if err != nil {
		return nil, err
	}
	return TrueDiv(g, sum, size)
}
