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
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

// AllocOp broadcasts a value to a shape given by integer scalars.
// A dimension of the output is broadcastable if its extent is the constant 1.
type AllocOp struct {
	ir.BaseOp
}

var _ ir.Op = (*AllocOp)(nil)

func newAllocOp(g *ir.Graph) *AllocOp {
	return g.Memo().Load("alloc", func() ir.Op {
		return &AllocOp{}
	}).(*AllocOp)
}

// Key identifies the Op.
func (*AllocOp) Key() string {
	return "alloc"
}

func (*AllocOp) String() string {
	return "Alloc"
}

// Make checks the arguments (the value followed by one integer scalar per
// output dimension) and builds an application of the Op.
func (op *AllocOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires a value", op)
	}
	value, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	ins := []*ir.Variable{value}
	pattern := make(ir.BroadcastPattern, len(args)-1)
	for i, arg := range args[1:] {
		dim, err := intScalar(g, arg)
		if err != nil {
			return nil, fmterr.PrefixWith("%s: dimension %d: ", op, i)(err)
		}
		ins = append(ins, dim)
		extent, err := ir.GetConstantInt(dim)
		pattern[i] = err == nil && extent == 1
	}
	if value.Rank() > len(pattern) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: cannot broadcast %s of rank %d to rank %d", op, value, value.Rank(), len(pattern))
	}
	tp, err := ir.TensorOf(value.Kind(), pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, tp)
}

// Perform broadcasts the value.
func (*AllocOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	dims := make([]int, len(ins)-1)
	for i, in := range ins[1:] {
		var err error
		if dims[i], err = scalarInt(in); err != nil {
			return nil, err
		}
		if dims[i] < 0 {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "negative dimension %d", dims[i])
		}
	}
	out, err := kernels.Broadcast(ins[0], dims)
	if err != nil {
		return nil, err
	}
	if out == ins[0] {
		out = out.Clone()
	}
	return []*values.Array{out}, nil
}

// Grad sums the gradient of the output over the broadcast dimensions.
// The dimensions have no gradient.
func (*AllocOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	ins := app.Inputs()
	grads := make([]*ir.Variable, len(ins))
	value := ins[0]
	if !value.Kind().IsContinuous() {
		return grads, nil
	}
	var err error
	if grads[0], err = elemwise.ReduceLike(app.Graph(), outGrads[0], value); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the constant dimensions.
func (*AllocOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := make(ir.Shape, len(shapes)-1)
	for i, dim := range app.Inputs()[1:] {
		extent, err := ir.GetConstantInt(dim)
		if err != nil {
			extent = ir.UnknownDim
		}
		out[i] = extent
	}
	return []ir.Shape{out}, nil
}

// ConstantSource returns the value: every element of the output is equal to it.
func (*AllocOp) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	return app.Input(0), true
}

// VectorLength returns the extent of a vector when it is a constant.
func (*AllocOp) VectorLength(app *ir.Apply) (int, bool) {
	if len(app.Inputs()) != 2 {
		return 0, false
	}
	extent, err := ir.GetConstantInt(app.Input(1))
	return extent, err == nil
}

// Alloc broadcasts value to the shape given by dims. Each dimension is an int
// or an integer scalar variable.
func Alloc(g *ir.Graph, value any, dims ...any) (*ir.Variable, error) {
	return ir.Call(g, newAllocOp(g), append([]any{value}, dims...)...)
}

// RebroadcastOp changes the broadcast pattern of a tensor.
// Extents of the dimensions marked as broadcastable are checked to be 1 at runtime.
// The output is a view of the input.
type RebroadcastOp struct {
	ir.BaseOp
	axes map[int]bool
}

var _ ir.Op = (*RebroadcastOp)(nil)

func axesString(axes map[int]bool) string {
	var ss []string
	for _, axis := range slices.Sorted(maps.Keys(axes)) {
		ss = append(ss, fmt.Sprintf("%d:%t", axis, axes[axis]))
	}
	return strings.Join(ss, ",")
}

func newRebroadcastOp(g *ir.Graph, axes map[int]bool) *RebroadcastOp {
	return g.Memo().Load("rebroadcast{"+axesString(axes)+"}", func() ir.Op {
		return &RebroadcastOp{axes: maps.Clone(axes)}
	}).(*RebroadcastOp)
}

// Key identifies the Op.
func (op *RebroadcastOp) Key() string {
	return "rebroadcast{" + axesString(op.axes) + "}"
}

func (op *RebroadcastOp) String() string {
	return "Rebroadcast{" + axesString(op.axes) + "}"
}

// Make builds an application of the Op.
func (op *RebroadcastOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 1 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 1 argument, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	pattern := x.Pattern().Clone()
	for axis, bc := range op.axes {
		if axis < 0 || axis >= len(pattern) {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: axis %d out of range for %s of rank %d", op, axis, x, x.Rank())
		}
		pattern[axis] = bc
	}
	tp, err := ir.TensorOf(x.Kind(), pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x}, tp)
}

// Perform checks the extents of the broadcastable dimensions.
func (op *RebroadcastOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	dims := ins[0].Dims()
	for axis, bc := range op.axes {
		if bc && dims[axis] != 1 {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: dimension %d should have an extent of 1, got %d", op, axis, dims[axis])
		}
	}
	return []*values.Array{ins[0]}, nil
}

// Grad restores the broadcast pattern of the input on the gradient.
func (op *RebroadcastOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x := app.Input(0)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil}, nil
	}
	restore := make(map[int]bool, len(op.axes))
	for axis := range op.axes {
		restore[axis] = x.Pattern()[axis]
	}
	gx, err := rebroadcast(app.Graph(), outGrads[0], restore)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

// InferShape returns the shape of the input with broadcastable dimensions set to 1.
func (op *RebroadcastOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := slices.Clone(shapes[0])
	for axis, bc := range op.axes {
		if bc {
			out[axis] = 1
		}
	}
	return []ir.Shape{out}, nil
}

// Aliasing declares the output as a view of the input.
func (*RebroadcastOp) Aliasing() ir.Aliasing {
	return ir.Aliasing{View: map[int][]int{0: {0}}}
}

// ConstantSource returns the input.
func (*RebroadcastOp) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	return app.Input(0), true
}

// rebroadcast applies a RebroadcastOp, or returns x if the pattern does not change.
func rebroadcast(g *ir.Graph, x *ir.Variable, axes map[int]bool) (*ir.Variable, error) {
	pattern := x.Pattern()
	changed := false
	for axis, bc := range axes {
		if axis < 0 || axis >= len(pattern) || pattern[axis] != bc {
			changed = true
		}
	}
	if !changed {
		return x, nil
	}
	return ir.Call(g, newRebroadcastOp(g, axes), x)
}

// Rebroadcast sets the broadcast flag of some axes of x.
func Rebroadcast(g *ir.Graph, x any, axes map[int]bool) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	return rebroadcast(g, xv, axes)
}

func setAxes(axes []int, bc bool) map[int]bool {
	m := make(map[int]bool, len(axes))
	for _, axis := range axes {
		m[axis] = bc
	}
	return m
}

// AddBroadcast marks axes of x as broadcastable.
func AddBroadcast(g *ir.Graph, x any, axes ...int) (*ir.Variable, error) {
	return Rebroadcast(g, x, setAxes(axes, true))
}

// Unbroadcast marks axes of x as not broadcastable.
func Unbroadcast(g *ir.Graph, x any, axes ...int) (*ir.Variable, error) {
	return Rebroadcast(g, x, setAxes(axes, false))
}
