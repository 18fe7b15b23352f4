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

package num

import (
	"fmt"
	"math"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
)

// realScalars coerces arguments into real scalars.
func realScalars(g *ir.Graph, op ir.Op, args []any, integer bool) ([]*ir.Variable, error) {
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	for i, in := range ins {
		if in.Rank() != 0 {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: argument %d: %s is not a scalar", op, i, in)
		}
		if in.Kind().IsComplex() || (integer && !in.Kind().IsInteger()) {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: argument %d: invalid kind %s", op, i, in.Kind())
		}
	}
	return ins, nil
}

func scalarFloats(ins []*values.Array) ([]float64, error) {
	vals := make([]float64, len(ins))
	for i, in := range ins {
		fs, err := in.Float64s()
		if err != nil {
			return nil, err
		}
		vals[i] = fs[0]
	}
	return vals, nil
}

// constantFloats returns the values of constant scalars.
func constantFloats(vs []*ir.Variable) ([]float64, bool) {
	vals := make([]float64, len(vs))
	for i, v := range vs {
		c, err := ir.GetConstantValue(v)
		if err != nil {
			return nil, false
		}
		fs, err := c.Float64s()
		if err != nil {
			return nil, false
		}
		vals[i] = fs[0]
	}
	return vals, true
}

func arangeLength(start, stop, step float64) (int, bool) {
	if step == 0 {
		return 0, false
	}
	return max(0, int(math.Ceil((stop-start)/step))), true
}

// ARangeOp returns the vector [start, start+step, ...] of the values lower than
// stop (greater than stop if step is negative).
type ARangeOp struct {
	ir.BaseOp
	kind irkind.Kind
}

var _ ir.Op = (*ARangeOp)(nil)

func arangeKey(kind irkind.Kind) string {
	return fmt.Sprintf("arange{%s}", kind)
}

func newARangeOp(g *ir.Graph, kind irkind.Kind) *ARangeOp {
	return g.Memo().Load(arangeKey(kind), func() ir.Op {
		return &ARangeOp{kind: kind}
	}).(*ARangeOp)
}

// Key identifies the Op.
func (op *ARangeOp) Key() string {
	return arangeKey(op.kind)
}

func (op *ARangeOp) String() string {
	return fmt.Sprintf("ARange{%s}", op.kind)
}

// Make checks that start, stop and step are real scalars and builds an
// application of the Op.
func (op *ARangeOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 3 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires start, stop and step, got %d arguments", op, len(args))
	}
	ins, err := realScalars(g, op, args, false)
	if err != nil {
		return nil, err
	}
	if vals, ok := constantFloats(ins[2:]); ok && vals[0] == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s: step cannot be zero", op)
	}
	return g.NewApply(op, ins, ir.Vector(op.kind))
}

// Perform computes the range.
func (op *ARangeOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	vals, err := scalarFloats(ins)
	if err != nil {
		return nil, err
	}
	out, err := kernels.ARange(op.kind, vals[0], vals[1], vals[2])
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad returns no gradient.
func (*ARangeOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	return make([]*ir.Variable, 3), nil
}

// InferShape returns the length of the range if the bounds are constants.
func (op *ARangeOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	n, ok := op.VectorLength(app)
	if !ok {
		n = ir.UnknownDim
	}
	return []ir.Shape{{n}}, nil
}

// VectorLength returns the length of the range if the bounds are constants.
func (*ARangeOp) VectorLength(app *ir.Apply) (int, bool) {
	vals, ok := constantFloats(app.Inputs())
	if !ok {
		return 0, false
	}
	return arangeLength(vals[0], vals[1], vals[2])
}

// ARange returns the vector [start, start+step, ...] of the values lower than
// stop. The elements have the given kind.
func ARange(g *ir.Graph, start, stop, step any, kind irkind.Kind) (*ir.Variable, error) {
	if !kind.IsValid() || kind.IsComplex() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "invalid range kind %s", kind)
	}
	return ir.Call(g, newARangeOp(g, kind), start, stop, step)
}

// EyeOp returns a n x m matrix with ones on the k-th diagonal and zeros elsewhere.
type EyeOp struct {
	ir.BaseOp
	kind irkind.Kind
}

var _ ir.Op = (*EyeOp)(nil)

func eyeKey(kind irkind.Kind) string {
	return fmt.Sprintf("eye{%s}", kind)
}

func newEyeOp(g *ir.Graph, kind irkind.Kind) *EyeOp {
	return g.Memo().Load(eyeKey(kind), func() ir.Op {
		return &EyeOp{kind: kind}
	}).(*EyeOp)
}

// Key identifies the Op.
func (op *EyeOp) Key() string {
	return eyeKey(op.kind)
}

func (op *EyeOp) String() string {
	return fmt.Sprintf("Eye{%s}", op.kind)
}

// Make checks that n, m and k are integer scalars and builds an application
// of the Op.
func (op *EyeOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 3 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires n, m and k, got %d arguments", op, len(args))
	}
	ins, err := realScalars(g, op, args, true)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, ir.Matrix(op.kind))
}

// Perform builds the matrix.
func (op *EyeOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	vals, err := scalarFloats(ins)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Eye(op.kind, int(vals[0]), int(vals[1]), int(vals[2]))
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad returns no gradient.
func (*EyeOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	return make([]*ir.Variable, 3), nil
}

// InferShape returns the constant dimensions.
func (*EyeOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	out := ir.Shape{ir.UnknownDim, ir.UnknownDim}
	for i := range out {
		if n, err := ir.GetConstantInt(app.Input(i)); err == nil {
			out[i] = n
		}
	}
	return []ir.Shape{out}, nil
}

// Eye returns a n x m matrix of a given kind with ones on the k-th diagonal
// and zeros elsewhere. k is 0 for the main diagonal, positive above it and
// negative below it.
func Eye(g *ir.Graph, n, m, k any, kind irkind.Kind) (*ir.Variable, error) {
	if !kind.IsValid() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "invalid kind %s", kind)
	}
	return ir.Call(g, newEyeOp(g, kind), n, m, k)
}
