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
	"slices"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

// SplitOp cuts a tensor along an axis into a fixed number of parts.
// The inputs are the tensor, the axis and the vector of the sizes of the parts.
type SplitOp struct {
	ir.BaseOp
	n int
}

var _ ir.Op = (*SplitOp)(nil)

func splitKey(n int) string {
	return fmt.Sprintf("split{%d}", n)
}

func newSplitOp(g *ir.Graph, n int) *SplitOp {
	return g.Memo().Load(splitKey(n), func() ir.Op {
		return &SplitOp{n: n}
	}).(*SplitOp)
}

// Key identifies the Op.
func (op *SplitOp) Key() string {
	return splitKey(op.n)
}

func (op *SplitOp) String() string {
	return fmt.Sprintf("Split{%d}", op.n)
}

// constantSizes returns the sizes of the parts if they are constants.
func constantSizes(sizes *ir.Variable) ([]int, bool) {
	if !sizes.IsConstant() {
		return nil, false
	}
	ints, err := vectorInts(sizes.Value())
	return ints, err == nil
}

func checkSizes(sizes []int, n int) error {
	if len(sizes) != n {
		return fmterr.Errorf(fmterr.ShapeMismatch, "%d sizes %v for %d parts", len(sizes), sizes, n)
	}
	for _, s := range sizes {
		if s <= 0 {
			return fmterr.Errorf(fmterr.ShapeMismatch, "invalid size %d in %v: sizes must be positive", s, sizes)
		}
	}
	return nil
}

// Make checks the arguments and builds an application of the Op.
// Every part has the type of the tensor.
func (op *SplitOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 3 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 3 arguments, got %d", op, len(args))
	}
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	if x.Rank() == 0 {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: cannot split scalar %s", op, x)
	}
	axis, err := intScalar(g, args[1])
	if err != nil {
		return nil, fmterr.PrefixWith("%s: axis: ", op)(err)
	}
	sizes, err := intVector(g, args[2])
	if err != nil {
		return nil, fmterr.PrefixWith("%s: sizes: ", op)(err)
	}
	if n, err := ir.GetVectorLength(sizes); err == nil && n != op.n {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "%s: got %d sizes", op, n)
	}
	if ints, ok := constantSizes(sizes); ok {
		if err := checkSizes(ints, op.n); err != nil {
			return nil, fmterr.PrefixWith("%s: ", op)(err)
		}
	}
	if at, err := ir.GetConstantInt(axis); err == nil {
		if _, err := wrapAxis(at, x.Rank()); err != nil {
			return nil, fmterr.PrefixWith("%s: ", op)(err)
		}
	}
	outs := make([]ir.Type, op.n)
	for i := range outs {
		outs[i] = x.Type()
	}
	return g.NewApply(op, []*ir.Variable{x, axis, sizes}, outs...)
}

// Perform cuts a concrete value.
func (op *SplitOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	x := ins[0]
	axis, err := scalarInt(ins[1])
	if err != nil {
		return nil, err
	}
	if axis, err = wrapAxis(axis, x.Rank()); err != nil {
		return nil, err
	}
	sizes, err := vectorInts(ins[2])
	if err != nil {
		return nil, err
	}
	if err := checkSizes(sizes, op.n); err != nil {
		return nil, err
	}
	return kernels.Split(x, axis, sizes)
}

// Grad joins the gradients of the parts along the axis.
// Parts without gradient contribute zeros.
func (op *SplitOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	x, axis := app.Input(0), app.Input(1)
	grads := make([]*ir.Variable, 3)
	if !x.Kind().IsContinuous() {
		return grads, nil
	}
	g := app.Graph()
	parts := make([]any, op.n)
	for i, gz := range outGrads {
		if gz == nil {
			var err error
			if gz, err = elemwise.ZerosLike(g, app.Output(i)); err != nil {
				return nil, err
			}
		}
		parts[i] = gz
	}
	var err error
	if grads[0], err = Join(g, axis, parts...); err != nil {
		return nil, err
	}
	return grads, nil
}

// InferShape returns the shape of the parts when the axis and the sizes are constants.
func (op *SplitOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	x := shapes[0]
	outs := make([]ir.Shape, op.n)
	at, err := ir.GetConstantInt(app.Input(1))
	if err == nil {
		at, err = wrapAxis(at, len(x))
	}
	sizes, known := constantSizes(app.Input(2))
	for i := range outs {
		if err != nil {
			outs[i] = ir.UnknownShape(len(x))
			continue
		}
		outs[i] = slices.Clone(x)
		outs[i][at] = ir.UnknownDim
		if known {
			outs[i][at] = sizes[i]
		}
	}
	return outs, nil
}

// Split cuts x along an axis into parts of the given sizes.
// The sizes are a slice of ints or an integer vector variable of statically
// known length. The axis is an int or an integer scalar variable.
func Split(g *ir.Graph, x, sizes, axis any) ([]*ir.Variable, error) {
	sizesVar, err := intVector(g, sizes)
	if err != nil {
		return nil, fmterr.PrefixWith("split sizes: ")(err)
	}
	n, err := ir.GetVectorLength(sizesVar)
	if err != nil {
		return nil, fmterr.Wrapf(fmterr.ValueUnavailable, err, "split requires a number of parts known statically")
	}
	if n == 0 {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "split requires at least one part")
	}
	app, err := newSplitOp(g, n).Make(g, x, axis, sizesVar)
	if err != nil {
		return nil, err
	}
	return app.Outputs(), nil
}
