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
	"github.com/gx-org/tensorir/golang/backend/kernels"
)

// NewAxis in a DimShuffle order inserts a broadcastable dimension.
const NewAxis = -1

// DimShuffleOp reorders the dimensions of a tensor. The order lists, for each
// output dimension, the input dimension it comes from or NewAxis.
// Input dimensions absent from the order are dropped and must be broadcastable.
// The output is a view of the input.
type DimShuffleOp struct {
	ir.BaseOp
	inPattern ir.BroadcastPattern
	order     []int
}

var _ ir.Op = (*DimShuffleOp)(nil)

func dimShuffleKey(inPattern ir.BroadcastPattern, order []int) string {
	return fmt.Sprintf("dimshuffle{%s->%v}", inPattern, order)
}

func newDimShuffle(g *ir.Graph, inPattern ir.BroadcastPattern, order []int) (*DimShuffleOp, error) {
	seen := make([]bool, len(inPattern))
	for _, axis := range order {
		if axis == NewAxis {
			continue
		}
		if axis < 0 || axis >= len(inPattern) {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "dimshuffle: axis %d out of range for an input of rank %d", axis, len(inPattern))
		}
		if seen[axis] {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "dimshuffle: axis %d appears twice in %v", axis, order)
		}
		seen[axis] = true
	}
	for axis, kept := range seen {
		if !kept && !inPattern[axis] {
			return nil, fmterr.Errorf(fmterr.ShapeMismatch, "dimshuffle: cannot drop axis %d of pattern %s: the axis is not broadcastable", axis, inPattern)
		}
	}
	op := g.Memo().Load(dimShuffleKey(inPattern, order), func() ir.Op {
		return &DimShuffleOp{inPattern: inPattern.Clone(), order: slices.Clone(order)}
	})
	return op.(*DimShuffleOp), nil
}

// Key identifies the Op.
func (op *DimShuffleOp) Key() string {
	return dimShuffleKey(op.inPattern, op.order)
}

func (op *DimShuffleOp) String() string {
	return fmt.Sprintf("dimshuffle%v", op.order)
}

// Order returns the order of the dimensions.
func (op *DimShuffleOp) Order() []int {
	return slices.Clone(op.order)
}

// Make checks the input and builds an application of the Op.
func (op *DimShuffleOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 1 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 1 argument, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	if !x.Pattern().Equal(op.inPattern) {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s expects an input of pattern %s, got %s", op, op.inPattern, x.Pattern())
	}
	pattern := make(ir.BroadcastPattern, len(op.order))
	for i, axis := range op.order {
		pattern[i] = axis == NewAxis || op.inPattern[axis]
	}
	tp, err := ir.TensorOf(x.Kind(), pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, []*ir.Variable{x}, tp)
}

// Perform reorders the dimensions of a concrete value.
func (op *DimShuffleOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	out, err := kernels.DimShuffle(ins[0], op.order)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad applies the inverse shuffle to the gradient.
func (op *DimShuffleOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x := app.Input(0)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil}, nil
	}
	g := app.Graph()
	gz := outGrads[0]
	// Dimensions inserted by the shuffle are dropped by the inverse shuffle.
	// They must be broadcastable in the gradient.
	if pattern := gz.Pattern(); !pattern.Equal(app.Output(0).Pattern()) {
		var err error
		if gz, err = ReduceLike(g, gz, app.Output(0)); err != nil {
			return nil, err
		}
	}
	inverse := make([]int, len(op.inPattern))
	for i := range inverse {
		inverse[i] = NewAxis
	}
	for pos, axis := range op.order {
		if axis != NewAxis {
			inverse[axis] = pos
		}
	}
	gx, err := DimShuffle(g, gz, inverse...)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

// InferShape returns the shape of the output.
func (op *DimShuffleOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := make(ir.Shape, len(op.order))
	for i, axis := range op.order {
		if axis == NewAxis {
			out[i] = 1
			continue
		}
		out[i] = shapes[0][axis]
	}
	return []ir.Shape{out}, nil
}

// Aliasing declares the output as a view of the input.
func (op *DimShuffleOp) Aliasing() ir.Aliasing {
	return ir.Aliasing{View: map[int][]int{0: {0}}}
}

// ConstantSource returns the input.
func (op *DimShuffleOp) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	return app.Input(0), true
}

// VectorLength returns 1 when a vector is built from a scalar.
func (op *DimShuffleOp) VectorLength(app *ir.Apply) (int, bool) {
	if len(op.order) == 1 && op.order[0] == NewAxis {
		return 1, true
	}
	return 0, false
}

// DimShuffle reorders the dimensions of x. NewAxis in the order inserts a
// broadcastable dimension.
func DimShuffle(g *ir.Graph, x any, order ...int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if isIdentityOrder(xv.Rank(), order) {
		return xv, nil
	}
	op, err := newDimShuffle(g, xv.Pattern(), order)
	if err != nil {
		return nil, err
	}
	return ir.Call(g, op, xv)
}

func isIdentityOrder(rank int, order []int) bool {
	if len(order) != rank {
		return false
	}
	for i, axis := range order {
		if axis != i {
			return false
		}
	}
	return true
}

// Transpose permutes the dimensions of x. Without axes, the dimensions are reversed.
func Transpose(g *ir.Graph, x any, axes ...int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		axes = make([]int, xv.Rank())
		for i := range axes {
			axes[i] = xv.Rank() - 1 - i
		}
	}
	if len(axes) != xv.Rank() {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "transpose: %d axes for an input of rank %d", len(axes), xv.Rank())
	}
	return DimShuffle(g, xv, axes...)
}

// PadLeft adds broadcastable dimensions on the left of x up to a given rank.
func PadLeft(g *ir.Graph, x any, rank int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if xv.Rank() > rank {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot pad %s of rank %d to rank %d", xv, xv.Rank(), rank)
	}
	order := make([]int, rank)
	offset := rank - xv.Rank()
	for i := range order {
		order[i] = i - offset
		if i < offset {
			order[i] = NewAxis
		}
	}
	return DimShuffle(g, xv, order...)
}

// PadRight adds broadcastable dimensions on the right of x up to a given rank.
func PadRight(g *ir.Graph, x any, rank int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if xv.Rank() > rank {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "cannot pad %s of rank %d to rank %d", xv, xv.Rank(), rank)
	}
	order := make([]int, rank)
	for i := range order {
		order[i] = i
		if i >= xv.Rank() {
			order[i] = NewAxis
		}
	}
	return DimShuffle(g, xv, order...)
}
