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

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
)

// ReshapeOp changes the dimensions of a tensor to a shape given as an integer
// vector of ndim elements. One element of the shape can be -1: its extent is
// inferred from the size of the tensor.
// The output is a view of the input.
type ReshapeOp struct {
	ir.BaseOp
	ndim int
}

var _ ir.Op = (*ReshapeOp)(nil)

func reshapeKey(ndim int) string {
	return fmt.Sprintf("reshape{%d}", ndim)
}

func newReshapeOp(g *ir.Graph, ndim int) *ReshapeOp {
	return g.Memo().Load(reshapeKey(ndim), func() ir.Op {
		return &ReshapeOp{ndim: ndim}
	}).(*ReshapeOp)
}

// Key identifies the Op.
func (op *ReshapeOp) Key() string {
	return reshapeKey(op.ndim)
}

func (op *ReshapeOp) String() string {
	return fmt.Sprintf("Reshape{%d}", op.ndim)
}

// shapeEntries returns the statically known elements of a shape vector.
// Unknown elements are set to ir.UnknownDim.
func shapeEntries(shape *ir.Variable, ndim int) []int {
	entries := make([]int, ndim)
	for i := range entries {
		entries[i] = ir.UnknownDim
	}
	if ints, ok := constantSizes(shape); ok && len(ints) == ndim {
		copy(entries, ints)
		return entries
	}
	owner := shape.Owner()
	if owner == nil {
		return entries
	}
	if _, ok := owner.Op().(*MakeVectorOp); !ok {
		return entries
	}
	for i, in := range owner.Inputs() {
		if n, err := ir.GetConstantInt(in); err == nil {
			entries[i] = n
		}
	}
	return entries
}

// Make checks the arguments and builds an application of the Op.
// An output dimension is broadcastable if its extent is the constant 1.
func (op *ReshapeOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 2 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 2 arguments, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	shape, err := intVector(g, args[1])
	if err != nil {
		return nil, fmterr.PrefixWith("%s: shape: ", op)(err)
	}
	if n, err := ir.GetVectorLength(shape); err == nil && n != op.ndim {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: shape %s has %d elements", op, shape, n)
	}
	pattern := make(ir.BroadcastPattern, op.ndim)
	for i, d := range shapeEntries(shape, op.ndim) {
		pattern[i] = d == 1
	}
	tp, err := ir.TensorOf(x.Kind(), pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x, shape}, tp)
}

// resolveDims replaces a -1 in dims by the extent matching a size.
func resolveDims(dims []int, size int) ([]int, error) {
	free := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == -1 && free >= 0:
			return nil, fmterr.Errorf(fmterr.InvalidValue, "shape %v has more than one -1", dims)
		case d == -1:
			free = i
		case d < 0:
			return nil, fmterr.Errorf(fmterr.InvalidValue, "negative extent in shape %v", dims)
		default:
			known *= d
		}
	}
	if free < 0 {
		return dims, nil
	}
	if known == 0 || size%known != 0 {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot reshape %d elements into %v", size, dims)
	}
	dims[free] = size / known
	return dims, nil
}

// Perform reshapes a concrete value.
func (op *ReshapeOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	x := ins[0]
	dims, err := vectorInts(ins[1])
	if err != nil {
		return nil, err
	}
	if len(dims) != op.ndim {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: shape %v has %d elements", op, dims, len(dims))
	}
	if dims, err = resolveDims(dims, x.Size()); err != nil {
		return nil, err
	}
	out, err := x.Reshape(dims...)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad reshapes the gradient of the output to the shape of the tensor.
func (op *ReshapeOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x := app.Input(0)
	grads := make([]*ir.Variable, 2)
	if !x.Kind().IsContinuous() {
		return grads, nil
	}
	var err error
	if grads[0], err = reshapeLike(app.Graph(), outGrads[0], x); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the constant elements of the shape.
func (op *ReshapeOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := ir.Shape(shapeEntries(app.Input(1), op.ndim))
	free := -1
	known := 1
	for i, d := range out {
		switch d {
		case ir.UnknownDim:
			if free >= 0 {
				return []ir.Shape{out}, nil
			}
			free = i
		default:
			known *= d
		}
	}
	// A single unknown element can be the -1 placeholder or an unknown value:
	// both are resolved by the size of the input.
	if free >= 0 && shapes[0].Known() && known > 0 {
		out[free] = shapes[0].Size() / known
	}
	return []ir.Shape{out}, nil
}

// Aliasing declares the output as a view of the input.
func (*ReshapeOp) Aliasing() ir.Aliasing {
	return ir.Aliasing{View: map[int][]int{0: {0}}}
}

// ConstantSource returns the input.
func (*ReshapeOp) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	return app.Input(0), true
}

// VectorLength returns the constant extent of a vector.
func (op *ReshapeOp) VectorLength(app *ir.Apply) (int, bool) {
	if op.ndim != 1 {
		return 0, false
	}
	n := shapeEntries(app.Input(1), 1)[0]
	return n, n >= 0
}

func reshapeLike(g *ir.Graph, x, like *ir.Variable) (*ir.Variable, error) {
	shape, err := Shape(g, like)
	if err != nil {
		return nil, err
	}
	return ReshapeTo(g, x, shape, like.Rank())
}

// Reshape changes the dimensions of x. The shape is a slice of ints or an
// integer vector variable of statically known length.
func Reshape(g *ir.Graph, x, shape any) (*ir.Variable, error) {
	shapeVar, err := intVector(g, shape)
	if err != nil {
		return nil, fmterr.PrefixWith("reshape: ")(err)
	}
	ndim, err := ir.GetVectorLength(shapeVar)
	if err != nil {
		return nil, fmterr.Wrapf(fmterr.ValueUnavailable, err, "reshape requires a shape of length known statically: use ReshapeTo")
	}
	return ReshapeTo(g, x, shapeVar, ndim)
}

// ReshapeTo changes the dimensions of x to a shape of ndim elements.
func ReshapeTo(g *ir.Graph, x, shape any, ndim int) (*ir.Variable, error) {
	if ndim < 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "invalid number of dimensions %d", ndim)
	}
	return ir.Call(g, newReshapeOp(g, ndim), x, shape)
}

// FlattenOp collapses the trailing dimensions of a tensor: the output keeps
// the leading outdim-1 dimensions of the input and its last dimension
// holds the remaining elements.
// The output is a view of the input.
type FlattenOp struct {
	ir.BaseOp
	outdim int
}

var _ ir.Op = (*FlattenOp)(nil)

func flattenKey(outdim int) string {
	return fmt.Sprintf("flatten{%d}", outdim)
}

func newFlattenOp(g *ir.Graph, outdim int) *FlattenOp {
	return g.Memo().Load(flattenKey(outdim), func() ir.Op {
		return &FlattenOp{outdim: outdim}
	}).(*FlattenOp)
}

// Key identifies the Op.
func (op *FlattenOp) Key() string {
	return flattenKey(op.outdim)
}

func (op *FlattenOp) String() string {
	return fmt.Sprintf("Flatten{%d}", op.outdim)
}

// Make builds an application of the Op.
func (op *FlattenOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 1 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 1 argument, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	if op.outdim < 1 || (x.Rank() > 0 && op.outdim > x.Rank()) {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: invalid number of output dimensions for %s of rank %d", op, x, x.Rank())
	}
	tp, err := ir.TensorOf(x.Kind(), make(ir.BroadcastPattern, op.outdim))
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x}, tp)
}

func (op *FlattenOp) outDims(dims []int) []int {
	out := make([]int, op.outdim)
	copy(out, dims)
	last := 1
	for _, d := range dims[min(op.outdim-1, len(dims)):] {
		last *= d
	}
	out[op.outdim-1] = last
	return out
}

// Perform flattens a concrete value.
func (op *FlattenOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	out, err := ins[0].Reshape(op.outDims(ins[0].Dims())...)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad reshapes the gradient of the output to the shape of the tensor.
func (op *FlattenOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x := app.Input(0)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil}, nil
	}
	gx, err := reshapeLike(app.Graph(), outGrads[0], x)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

// InferShape returns the leading dimensions and the product of the others.
func (op *FlattenOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	x := shapes[0]
	if op.outdim <= len(x) && !x[op.outdim-1:].Known() {
		out := ir.Shape(op.outDims(x))
		out[op.outdim-1] = ir.UnknownDim
		return []ir.Shape{out}, nil
	}
	return []ir.Shape{op.outDims(x)}, nil
}

// Aliasing declares the output as a view of the input.
func (*FlattenOp) Aliasing() ir.Aliasing {
	return ir.Aliasing{View: map[int][]int{0: {0}}}
}

// ConstantSource returns the input.
func (*FlattenOp) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	return app.Input(0), true
}

// Flatten collapses the trailing dimensions of x to get a tensor of rank outdim.
func Flatten(g *ir.Graph, x any, outdim int) (*ir.Variable, error) {
	return ir.Call(g, newFlattenOp(g, outdim), x)
}
