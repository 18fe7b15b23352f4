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

package subtensor

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

func checkIndexVector(v *ir.Variable) error {
	if !v.Kind().IsInteger() {
		return fmterr.Errorf(fmterr.TypeMismatch, "index %s must be an integer vector", v)
	}
	if v.Rank() != 1 {
		return fmterr.Errorf(fmterr.TypeMismatch, "index %s must be a vector, got a tensor of rank %d", v, v.Rank())
	}
	return nil
}

// Advanced1Op reads the rows x[ivec] of a tensor, ivec being an integer vector.
type Advanced1Op struct {
	ir.BaseOp
}

var _ ir.Op = (*Advanced1Op)(nil)

const advanced1Key = "advanced_subtensor1"

func newAdvanced1Op(g *ir.Graph) *Advanced1Op {
	return g.Memo().Load(advanced1Key, func() ir.Op {
		return &Advanced1Op{}
	}).(*Advanced1Op)
}

// Key identifies the Op.
func (op *Advanced1Op) Key() string { return advanced1Key }

func (op *Advanced1Op) String() string { return "AdvancedSubtensor1" }

// Make checks the arguments and builds an application of the Op.
func (op *Advanced1Op) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 2 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 2 arguments, got %d", op, len(args))
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	x, ivec := ins[0], ins[1]
	if err := checkIndexVector(ivec); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	if x.Rank() == 0 {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: cannot index into scalar %s", op, x)
	}
	pattern := x.Pattern()
	if pattern[0] {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: cannot index into the broadcastable dimension of %s", op, x)
	}
	tp, err := ir.TensorOf(x.Kind(), pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, tp)
}

// Perform gathers the rows of a concrete value.
func (op *Advanced1Op) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	rows, err := ins[1].Int64s()
	if err != nil {
		return nil, err
	}
	dims, idx, err := kernels.Rows(ins[0].Dims(), rows)
	if err != nil {
		return nil, err
	}
	out, err := ins[0].Take(dims, idx)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad increments the rows of a tensor of zeros by the gradient of the output.
func (op *Advanced1Op) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x, ivec := app.Input(0), app.Input(1)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil, nil}, nil
	}
	g := app.Graph()
	zeros, err := elemwise.ZerosLike(g, x)
	if err != nil {
		return nil, err
	}
	gx, err := ir.Call(g, newAdvancedInc1Op(g, false, false), zeros, outGrads[0], ivec)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx, nil}, nil
}

// InferShape returns the number of indices followed by the trailing dimensions of the tensor.
func (op *Advanced1Op) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := append(ir.Shape{shapes[1][0]}, shapes[0][1:]...)
	return []ir.Shape{out}, nil
}

// AdvancedInc1Op writes a value into the rows x[ivec] of a tensor.
// When adding, a row listed several times is incremented several times.
type AdvancedInc1Op struct {
	ir.BaseOp
	set     bool
	inplace bool
}

var _ ir.Op = (*AdvancedInc1Op)(nil)

func newAdvancedInc1Op(g *ir.Graph, set, inplace bool) *AdvancedInc1Op {
	return g.Memo().Load("advanced_"+incName(set, inplace)+"1", func() ir.Op {
		return &AdvancedInc1Op{set: set, inplace: inplace}
	}).(*AdvancedInc1Op)
}

// Key identifies the Op.
func (op *AdvancedInc1Op) Key() string {
	return "advanced_" + incName(op.set, op.inplace) + "1"
}

func (op *AdvancedInc1Op) String() string {
	return "Advanced" + incName(op.set, op.inplace) + "1"
}

// Make checks the arguments (the tensor, the value and the row indices) and
// builds an application of the Op.
func (op *AdvancedInc1Op) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 3 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 3 arguments, got %d", op, len(args))
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	x, y, ivec := ins[0], ins[1], ins[2]
	if err := checkIndexVector(ivec); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	if x.Rank() == 0 {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: cannot index into scalar %s", op, x)
	}
	if x.Pattern()[0] {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: cannot index into the broadcastable dimension of %s", op, x)
	}
	if err := checkValue(x, y, x.Rank()); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	return g.NewApply(op, ins, x.Type())
}

// Perform writes into the rows of a copy of the tensor, or of the tensor
// itself if the Op is inplace.
func (op *AdvancedInc1Op) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	x := ins[0]
	if !op.inplace {
		x = x.Clone()
	}
	rows, err := ins[2].Int64s()
	if err != nil {
		return nil, err
	}
	dims, idx, err := kernels.Rows(x.Dims(), rows)
	if err != nil {
		return nil, err
	}
	if err := write(x, ins[1], dims, idx, op.set); err != nil {
		return nil, err
	}
	return []*values.Array{x}, nil
}

// Grad returns the gradient of the output, with zeros at the rows if they are
// replaced, for the tensor and the rows of the gradient for the value.
func (op *AdvancedInc1Op) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x, y, ivec := app.Input(0), app.Input(1), app.Input(2)
	grads := []*ir.Variable{outGrads[0], nil, nil}
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil, nil, nil}, nil
	}
	g := app.Graph()
	gz := outGrads[0]
	if op.set {
		zero, err := g.ConstantOf(0, gz.Kind())
		if err != nil {
			return nil, err
		}
		if grads[0], err = ir.Call(g, newAdvancedInc1Op(g, true, false), gz, zero, ivec); err != nil {
			return nil, err
		}
	}
	if !y.Kind().IsContinuous() {
		return grads, nil
	}
	rows, err := ir.Call(g, newAdvanced1Op(g), gz, ivec)
	if err != nil {
		return nil, err
	}
	if grads[1], err = elemwise.ReduceLike(g, rows, y); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the shape of the tensor.
func (op *AdvancedInc1Op) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{shapes[0]}, nil
}

// Aliasing declares the tensor as destroyed if the Op is inplace.
func (op *AdvancedInc1Op) Aliasing() ir.Aliasing {
	if !op.inplace {
		return ir.Aliasing{}
	}
	return ir.Aliasing{Destroy: map[int][]int{0: {0}}}
}

// AdvancedOp reads the elements x[ivec[i], jvec[i]] of a matrix.
type AdvancedOp struct {
	ir.BaseOp
}

var _ ir.Op = (*AdvancedOp)(nil)

const advancedKey = "advanced_subtensor"

func newAdvancedOp(g *ir.Graph) *AdvancedOp {
	return g.Memo().Load(advancedKey, func() ir.Op {
		return &AdvancedOp{}
	}).(*AdvancedOp)
}

// Key identifies the Op.
func (op *AdvancedOp) Key() string { return advancedKey }

func (op *AdvancedOp) String() string { return "AdvancedSubtensor" }

func checkMatrixIndices(op ir.Op, x *ir.Variable, ivec, jvec *ir.Variable) error {
	if x.Rank() != 2 {
		return fmterr.Errorf(fmterr.Unsupported, "%s: advanced indexing of %s of rank %d with 2 index vectors is not supported", op, x, x.Rank())
	}
	for _, v := range []*ir.Variable{ivec, jvec} {
		if err := checkIndexVector(v); err != nil {
			return fmterr.PrefixWith("%s: ", op)(err)
		}
	}
	return nil
}

// Make checks the arguments (the matrix, the row indices and the column
// indices) and builds an application of the Op.
func (op *AdvancedOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 3 {
		return nil, fmterr.Errorf(fmterr.Unsupported, "%s: advanced indexing with %d arguments is not supported", op, len(args)-1)
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	if err := checkMatrixIndices(op, ins[0], ins[1], ins[2]); err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, ir.Vector(ins[0].Kind()))
}

// Perform gathers the elements of a concrete matrix.
func (op *AdvancedOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	idx, err := points(ins[0], ins[1], ins[2])
	if err != nil {
		return nil, err
	}
	out, err := ins[0].Take([]int{len(idx)}, idx)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

func points(x, ivec, jvec *values.Array) ([]int, error) {
	rows, err := ivec.Int64s()
	if err != nil {
		return nil, err
	}
	cols, err := jvec.Int64s()
	if err != nil {
		return nil, err
	}
	return kernels.Points(x.Dims(), rows, cols)
}

// Grad increments the elements of a matrix of zeros by the gradient of the output.
func (op *AdvancedOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x := app.Input(0)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil, nil, nil}, nil
	}
	g := app.Graph()
	zeros, err := elemwise.ZerosLike(g, x)
	if err != nil {
		return nil, err
	}
	gx, err := ir.Call(g, newAdvancedIncOp(g, false, false), zeros, outGrads[0], app.Input(1), app.Input(2))
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx, nil, nil}, nil
}

// InferShape returns the length of the index vectors.
func (op *AdvancedOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	n := shapes[1][0]
	if n == 1 || n == ir.UnknownDim {
		n = shapes[2][0]
	}
	return []ir.Shape{{n}}, nil
}

// AdvancedIncOp writes a vector into the elements x[ivec[i], jvec[i]] of a matrix.
type AdvancedIncOp struct {
	ir.BaseOp
	set     bool
	inplace bool
}

var _ ir.Op = (*AdvancedIncOp)(nil)

func newAdvancedIncOp(g *ir.Graph, set, inplace bool) *AdvancedIncOp {
	return g.Memo().Load("advanced_"+incName(set, inplace), func() ir.Op {
		return &AdvancedIncOp{set: set, inplace: inplace}
	}).(*AdvancedIncOp)
}

// Key identifies the Op.
func (op *AdvancedIncOp) Key() string {
	return "advanced_" + incName(op.set, op.inplace)
}

func (op *AdvancedIncOp) String() string {
	return "Advanced" + incName(op.set, op.inplace)
}

// Make checks the arguments (the matrix, the value, the row indices and the
// column indices) and builds an application of the Op.
func (op *AdvancedIncOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 4 {
		return nil, fmterr.Errorf(fmterr.Unsupported, "%s: advanced indexing with %d arguments is not supported", op, len(args)-2)
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	x, y := ins[0], ins[1]
	if err := checkMatrixIndices(op, x, ins[2], ins[3]); err != nil {
		return nil, err
	}
	if y.Rank() > 1 {
		return nil, fmterr.Errorf(fmterr.Unsupported, "%s: writing %s of rank %d is not supported", op, y, y.Rank())
	}
	if err := checkValue(x, y, 1); err != nil {
		return nil, fmterr.PrefixWith("%s: ", op)(err)
	}
	return g.NewApply(op, ins, x.Type())
}

// Perform writes into a copy of the matrix, or into the matrix itself if the
// Op is inplace.
func (op *AdvancedIncOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	x := ins[0]
	if !op.inplace {
		x = x.Clone()
	}
	idx, err := points(x, ins[2], ins[3])
	if err != nil {
		return nil, err
	}
	if err := write(x, ins[1], []int{len(idx)}, idx, op.set); err != nil {
		return nil, err
	}
	return []*values.Array{x}, nil
}

// Grad returns the gradient of the output, with zeros at the elements if they
// are replaced, for the matrix and the elements of the gradient for the value.
func (op *AdvancedIncOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x, y, ivec, jvec := app.Input(0), app.Input(1), app.Input(2), app.Input(3)
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil, nil, nil, nil}, nil
	}
	grads := []*ir.Variable{outGrads[0], nil, nil, nil}
	g := app.Graph()
	gz := outGrads[0]
	if op.set {
		zero, err := g.ConstantOf(0, gz.Kind())
		if err != nil {
			return nil, err
		}
		if grads[0], err = ir.Call(g, newAdvancedIncOp(g, true, false), gz, zero, ivec, jvec); err != nil {
			return nil, err
		}
	}
	if !y.Kind().IsContinuous() {
		return grads, nil
	}
	elems, err := ir.Call(g, newAdvancedOp(g), gz, ivec, jvec)
	if err != nil {
		return nil, err
	}
	if grads[1], err = elemwise.ReduceLike(g, elems, y); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the shape of the matrix.
func (op *AdvancedIncOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{shapes[0]}, nil
}

// Aliasing declares the matrix as destroyed if the Op is inplace.
func (op *AdvancedIncOp) Aliasing() ir.Aliasing {
	if !op.inplace {
		return ir.Aliasing{}
	}
	return ir.Aliasing{Destroy: map[int][]int{0: {0}}}
}
