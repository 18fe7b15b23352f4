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

// Package num provides linear algebra and range Ops.
package num

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

// DotOp computes the product of vectors and matrices: the inner product of
// two vectors, a matrix-vector, a vector-matrix or a matrix-matrix product.
type DotOp struct {
	ir.BaseOp
}

var _ ir.Op = (*DotOp)(nil)

func newDotOp(g *ir.Graph) *DotOp {
	return g.Memo().Load("dot", func() ir.Op {
		return &DotOp{}
	}).(*DotOp)
}

// Key identifies the Op.
func (*DotOp) Key() string {
	return "dot"
}

func (*DotOp) String() string {
	return "Dot"
}

// Make checks the ranks of the operands and builds an application of the Op.
// The output kind is the promotion of the kinds of the operands.
func (op *DotOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	if len(args) != 2 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s requires 2 arguments, got %d", op, len(args))
	}
	ins, err := g.AsVariables(args...)
	if err != nil {
		return nil, err
	}
	x, y := ins[0], ins[1]
	for _, v := range ins {
		if v.Rank() < 1 || v.Rank() > 2 {
			return nil, fmterr.Errorf(fmterr.Unsupported, "%s of %s and %s: only vectors and matrices are supported", op, x.Type(), y.Type())
		}
	}
	kind, err := irkind.Promote(x.Kind(), y.Kind())
	if err != nil {
		return nil, err
	}
	var pattern ir.BroadcastPattern
	if x.Rank() == 2 {
		pattern = append(pattern, x.Pattern()[0])
	}
	if y.Rank() == 2 {
		pattern = append(pattern, y.Pattern()[1])
	}
	tp, err := ir.TensorOf(kind, pattern)
	if err != nil {
		return nil, err
	}
	return g.NewApply(op, ins, tp)
}

// Perform multiplies concrete values.
func (*DotOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	kind := app.Output(0).Kind()
	x, err := ins[0].Cast(kind)
	if err != nil {
		return nil, err
	}
	y, err := ins[1].Cast(kind)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Dot(x, y)
	if err != nil {
		return nil, err
	}
	return []*values.Array{out}, nil
}

// Grad returns the gradients of the product with respect to both operands.
func (*DotOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	g := app.Graph()
	x, y := app.Input(0), app.Input(1)
	gz := outGrads[0]
	var gx, gy *ir.Variable
	var err error
	switch {
	case x.Rank() == 1 && y.Rank() == 1:
		if gx, err = elemwise.Mul(g, gz, y); err != nil {
			return nil, err
		}
		if gy, err = elemwise.Mul(g, gz, x); err != nil {
			return nil, err
		}
	case x.Rank() == 2 && y.Rank() == 1:
		if gx, err = Outer(g, gz, y); err != nil {
			return nil, err
		}
		if gy, err = Dot(g, gz, x); err != nil {
			return nil, err
		}
	case x.Rank() == 1 && y.Rank() == 2:
		if gx, err = Dot(g, y, gz); err != nil {
			return nil, err
		}
		if gy, err = Outer(g, x, gz); err != nil {
			return nil, err
		}
	default:
		yT, err := elemwise.Transpose(g, y)
		if err != nil {
			return nil, err
		}
		if gx, err = Dot(g, gz, yT); err != nil {
			return nil, err
		}
		xT, err := elemwise.Transpose(g, x)
		if err != nil {
			return nil, err
		}
		if gy, err = Dot(g, xT, gz); err != nil {
			return nil, err
		}
	}
	grads := make([]*ir.Variable, 2)
	for i, pair := range [][2]*ir.Variable{{x, gx}, {y, gy}} {
		if !pair[0].Kind().IsContinuous() {
			continue
		}
		if grads[i], err = elemwise.ReduceLike(g, pair[1], pair[0]); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

// InferShape returns the shape of the product.
func (*DotOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	x, y := shapes[0], shapes[1]
	var out ir.Shape
	if len(x) == 2 {
		out = append(out, x[0])
	}
	if len(y) == 2 {
		out = append(out, y[1])
	}
	return []ir.Shape{out}, nil
}

// Dot computes the product of vectors and matrices.
func Dot(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return ir.Call(g, newDotOp(g), x, y)
}

// Outer computes the outer product of two vectors.
func Outer(g *ir.Graph, x, y any) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	yv, err := g.AsVariable(y)
	if err != nil {
		return nil, err
	}
	if xv.Rank() != 1 || yv.Rank() != 1 {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "outer product of %s and %s: operands must be vectors", xv.Type(), yv.Type())
	}
	col, err := elemwise.PadRight(g, xv, 2)
	if err != nil {
		return nil, err
	}
	row, err := elemwise.PadLeft(g, yv, 2)
	if err != nil {
		return nil, err
	}
	return Dot(g, col, row)
}
