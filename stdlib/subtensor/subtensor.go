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

// Package subtensor reads and writes regions of tensors selected by index lists.
//
// An index list holds, for each leading dimension of a tensor, either a
// position (dropping the dimension) or a slice (keeping it). Positions and
// slice bounds are literal integers or integer scalar variables. Dimensions
// without an entry are kept whole.
//
// Indexing with integer tensors (advanced indexing) is supported for a few
// forms only:
//
//	x[ivec]          x of rank >= 1
//	x[ivec, jvec]    x a matrix
//
// Other forms return an Unsupported error.
package subtensor

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

// Op reads the region of a tensor selected by an index list.
// The output is a view of the input.
type Op struct {
	ir.BaseOp
	list indexList
}

var _ ir.Op = (*Op)(nil)

func newOp(g *ir.Graph, list indexList) *Op {
	return g.Memo().Load(listKey("subtensor", list), func() ir.Op {
		return &Op{list: list}
	}).(*Op)
}

// Key identifies the Op.
func (op *Op) Key() string {
	return listKey("subtensor", op.list)
}

func (op *Op) String() string {
	return "Subtensor{" + op.list.String() + "}"
}

// Make checks the arguments (the tensor followed by the symbolic indices)
// and builds an application of the Op.
func (op *Op) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires a tensor", op)
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	x := ins[0]
	if len(op.list) > x.Rank() {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: index list is longer than the rank %d of %s", op, x.Rank(), x)
	}
	if err := op.list.checkSymbolics(ins[1:]); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	tp, err := ir.TensorOf(x.Kind(), op.list.pattern(x.Pattern()))
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, tp)
}

// Perform reads the region of a concrete value.
func (op *Op) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	sels, err := op.list.selections(ins[1:])
	if err != nil {
		return nil, err
	}
	x := ins[0]
	dims, idx, err := kernels.Select(x.Dims(), sels)
	if err != nil {
		return nil, err
	}
	out, err := x.Take(dims, idx)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad increments a tensor of zeros at the region by the gradient of the output.
// Indices have no gradient.
func (op *Op) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	ins := app.Inputs()
	grads := make([]*ir.Variable, len(ins))
	x := ins[0]
	if !x.Kind().IsContinuous() {
		return grads, nil
	}
	g := app.Graph()
	zeros, err := elemwise.ZerosLike(g, x)
	if err != nil {
		return nil, err
	}
	args := append([]any{zeros, outGrads[0]}, asArgs(ins[1:])...)
	if grads[0], err = ir.Call(g, newIncOp(g, op.list, false, false), args...); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the shape of the region.
func (op *Op) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{op.list.inferShape(shapes[0])}, nil
}

// Aliasing declares the output as a view of the tensor.
func (op *Op) Aliasing() ir.Aliasing {
	return ir.Aliasing{View: map[int][]int{0: {0}}}
}

// IncOp writes a value into the region of a tensor selected by an index list,
// either replacing the elements of the region or adding to them.
// The value is broadcast to the shape of the region.
type IncOp struct {
	ir.BaseOp
	list    indexList
	set     bool
	inplace bool
}

var _ ir.Op = (*IncOp)(nil)

func incName(set, inplace bool) string {
	name := "IncSubtensor"
	if set {
		name = "SetSubtensor"
	}
	if inplace {
		name = "Inplace" + name
	}
	return name
}

func newIncOp(g *ir.Graph, list indexList, set, inplace bool) *IncOp {
	return g.Memo().Load(listKey(incName(set, inplace), list), func() ir.Op {
		return &IncOp{list: list, set: set, inplace: inplace}
	}).(*IncOp)
}

// Key identifies the Op.
func (op *IncOp) Key() string {
	return listKey(incName(op.set, op.inplace), op.list)
}

func (op *IncOp) String() string {
	return incName(op.set, op.inplace) + "{" + op.list.String() + "}"
}

// checkValue checks that a value can be written into a tensor.
func checkValue(x, y *ir.Variable, regionRank int) error {
	if y.Rank() > regionRank {
		return fmterr.Errorf(fmterr.ShapeMismatch, "cannot write %s of rank %d into a region of rank %d", y, y.Rank(), regionRank)
	}
	if y.Kind() != x.Kind() && !irkind.CanRepresent(y.Kind(), x.Kind()) {
		return fmterr.Errorf(fmterr.TypeMismatch, "cannot write %s elements into %s without loss of information", y.Kind(), x)
	}
	return nil
}

// Make checks the arguments (the tensor, the value, then the symbolic
// indices) and builds an application of the Op.
func (op *IncOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) < 2 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires a tensor and a value", op)
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	x, y := ins[0], ins[1]
	if len(op.list) > x.Rank() {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: index list is longer than the rank %d of %s", op, x.Rank(), x)
	}
	if err := op.list.checkSymbolics(ins[2:]); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	if err := checkValue(x, y, len(op.list.pattern(x.Pattern()))); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	return g.NewApply(op, ins, x.Type())
}

// write replaces or increments the elements of x at flat indices by y,
// broadcast to dims.
func write(x, y *values.Array, dims, idx []int, set bool) error {
	y, err := y.Cast(x.Kind())
	if err != nil {
		return err
	}
	if y, err = kernels.Broadcast(y, dims); err != nil {
		return err
	}
	return x.Put(idx, y, !set)
}

// Perform writes into a copy of the tensor, or into the tensor itself if the Op
// is inplace.
func (op *IncOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	x, y := ins[0], ins[1]
	if !op.inplace {
		x = x.Clone()
	}
	sels, err := op.list.selections(ins[2:])
	if err != nil {
		return nil, err
	}
	dims, idx, err := kernels.Select(x.Dims(), sels)
	if err != nil {
		return nil, err
	}
	if err := write(x, y, dims, idx, op.set); err != nil {
		return nil, err
	}
	return []*values.Array{x}, nil
}

// Grad returns, for the tensor, the gradient of the output with zeros at the
// region if the region is replaced and, for the value, the region of the
// gradient of the output.
func (op *IncOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	ins := app.Inputs()
	grads := make([]*ir.Variable, len(ins))
	x, y := ins[0], ins[1]
	if !x.Kind().IsContinuous() {
		return grads, nil
	}
	g := app.Graph()
	gz := outGrads[0]
	syms := asArgs(ins[2:])
	grads[0] = gz
	if op.set {
		zero, err := g.ConstantOf(0, gz.Kind())
		if err != nil {
			return nil, err
		}
		args := append([]any{gz, zero}, syms...)
		if grads[0], err = ir.Call(g, newIncOp(g, op.list, true, false), args...); err != nil {
			return nil, err
		}
	}
	if !y.Kind().IsContinuous() {
		return grads, nil
	}
	region, err := ir.Call(g, newOp(g, op.list), append([]any{gz}, syms...)...)
	if err != nil {
		return nil, err
	}
	if grads[1], err = elemwise.ReduceLike(g, region, y); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the shape of the tensor.
func (op *IncOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{shapes[0]}, nil
}

// Aliasing declares the tensor as destroyed if the Op is inplace.
func (op *IncOp) Aliasing() ir.Aliasing {
	if !op.inplace {
		return ir.Aliasing{}
	}
	return ir.Aliasing{Destroy: map[int][]int{0: {0}}}
}

func asArgs(vs []*ir.Variable) []any {
	args := make([]any, len(vs))
	for i, v := range vs {
		args[i] = v
	}
	return args
}
