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

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
)

type (
	// ScalarOp is the operation computed on every element by an Elemwise Op.
	ScalarOp interface {
		// Name of the operation. Two scalar operations with the same name
		// compute the same thing.
		Name() string

		// Arity returns the number of inputs, or 0 for variadic operations
		// taking at least two inputs.
		Arity() int

		// OutKind returns the kind of the output given the kinds of the inputs.
		OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error)

		// Perform computes the output given the inputs.
		// Inputs have the same rank and broadcastable dimensions.
		Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error)

		// Grad returns the gradients of the inputs before broadcast
		// dimensions are reduced.
		Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error)

		// view returns true if the output is a view of the first input.
		view() bool

		// constantInput returns the input with the same value than the
		// output, or -1.
		constantInput() int
	}

	// ScalarBase provides default behaviours to scalar operations.
	// It must be embedded by scalar operations defined outside of this package.
	ScalarBase struct{}
)

func (ScalarBase) view() bool { return false }

func (ScalarBase) constantInput() int { return -1 }

// Catalog of scalar operations.
var (
	ScalarAdd      ScalarOp = addOp{}
	ScalarSub      ScalarOp = subOp{}
	ScalarMul      ScalarOp = mulOp{}
	ScalarTrueDiv  ScalarOp = trueDivOp{}
	ScalarIntDiv   ScalarOp = intDivOp{}
	ScalarNeg      ScalarOp = negOp{}
	ScalarExp      ScalarOp = expOp{}
	ScalarLog      ScalarOp = logOp{}
	ScalarSqr      ScalarOp = sqrOp{}
	ScalarIdentity ScalarOp = identityOp{}
	ScalarView     ScalarOp = viewOp{}
	ScalarSecond   ScalarOp = secondOp{}
)

// ScalarConvert returns the scalar operation converting elements to a kind.
func ScalarConvert(kind irkind.Kind) ScalarOp {
	return convertOp{kind: kind}
}

func castAll(ins []*values.Array, kind irkind.Kind) ([]*values.Array, error) {
	out := make([]*values.Array, len(ins))
	for i, in := range ins {
		if in.Kind() == kind {
			out[i] = in
			continue
		}
		var err error
		if out[i], err = in.Cast(kind); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func fold(ins []*values.Array, kind irkind.Kind, op kernels.BinaryOp) (*values.Array, error) {
	ins, err := castAll(ins, kind)
	if err != nil {
		return nil, err
	}
	acc := ins[0]
	for _, in := range ins[1:] {
		if acc, err = kernels.Apply2(op, acc, in); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func unary(ins []*values.Array, kind irkind.Kind, op kernels.UnaryOp) (*values.Array, error) {
	x, err := castAll(ins, kind)
	if err != nil {
		return nil, err
	}
	return kernels.Apply1(op, x[0])
}

// promoted is the output kind of arithmetic operations.
func promoted(_ *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return irkind.Promote(kinds...)
}

// continuous is the output kind of operations returning real numbers even for
// integer inputs. Integers are converted to the float precision of the graph.
func continuous(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	kind, err := irkind.Promote(kinds...)
	if err != nil {
		return irkind.Invalid, err
	}
	if kind.IsInteger() {
		return g.FloatX(), nil
	}
	return kind, nil
}

type addOp struct{ ScalarBase }

func (addOp) Name() string { return "add" }

func (addOp) Arity() int { return 0 }

func (addOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return promoted(g, kinds)
}

func (addOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return fold(ins, kind, kernels.Add)
}

func (addOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	grads := make([]*ir.Variable, len(ins))
	for i := range grads {
		grads[i] = gz
	}
	return grads, nil
}

type subOp struct{ ScalarBase }

func (subOp) Name() string { return "sub" }

func (subOp) Arity() int { return 2 }

func (subOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return promoted(g, kinds)
}

func (subOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return fold(ins, kind, kernels.Sub)
}

func (subOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	neg, err := Neg(g, gz)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gz, neg}, nil
}

type mulOp struct{ ScalarBase }

func (mulOp) Name() string { return "mul" }

func (mulOp) Arity() int { return 0 }

func (mulOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return promoted(g, kinds)
}

func (mulOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return fold(ins, kind, kernels.Mul)
}

// Grad of x_i is gz times the product of all the other inputs.
func (mulOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	grads := make([]*ir.Variable, len(ins))
	for i := range ins {
		factors := []any{gz}
		for j, in := range ins {
			if j != i {
				factors = append(factors, in)
			}
		}
		var err error
		if grads[i], err = Mul(g, factors...); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

type trueDivOp struct{ ScalarBase }

func (trueDivOp) Name() string { return "true_div" }

func (trueDivOp) Arity() int { return 2 }

func (trueDivOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return continuous(g, kinds)
}

func (trueDivOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return fold(ins, kind, kernels.TrueDiv)
}

// Grad of x/y: gz/y and -gz*x/y^2.
func (trueDivOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	x, y := ins[0], ins[1]
	gx, err := TrueDiv(g, gz, y)
	if err != nil {
		return nil, err
	}
	num, err := Mul(g, gz, x)
	if err != nil {
		return nil, err
	}
	den, err := Sqr(g, y)
	if err != nil {
		return nil, err
	}
	q, err := TrueDiv(g, num, den)
	if err != nil {
		return nil, err
	}
	gy, err := Neg(g, q)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx, gy}, nil
}

type intDivOp struct{ ScalarBase }

func (intDivOp) Name() string { return "int_div" }

func (intDivOp) Arity() int { return 2 }

func (intDivOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	kind, err := promoted(g, kinds)
	if err != nil {
		return irkind.Invalid, err
	}
	if kind.IsComplex() {
		return irkind.Invalid, fmterr.Errorf(fmterr.TypeMismatch, "integer division not defined for %s", kind)
	}
	return kind, nil
}

func (intDivOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return fold(ins, kind, kernels.IntDiv)
}

// Grad of a floor division is zero almost everywhere.
func (intDivOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	grads := make([]*ir.Variable, len(ins))
	for i, in := range ins {
		if !in.Kind().IsContinuous() {
			continue
		}
		var err error
		if grads[i], err = ZerosLike(g, in); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

type negOp struct{ ScalarBase }

func (negOp) Name() string { return "neg" }

func (negOp) Arity() int { return 1 }

func (negOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return promoted(g, kinds)
}

func (negOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return unary(ins, kind, kernels.Neg)
}

func (negOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	gx, err := Neg(g, gz)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

type expOp struct{ ScalarBase }

func (expOp) Name() string { return "exp" }

func (expOp) Arity() int { return 1 }

func (expOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return continuous(g, kinds)
}

func (expOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return unary(ins, kind, kernels.Exp)
}

func (expOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	gx, err := Mul(g, gz, out)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

type logOp struct{ ScalarBase }

func (logOp) Name() string { return "log" }

func (logOp) Arity() int { return 1 }

func (logOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return continuous(g, kinds)
}

func (logOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return unary(ins, kind, kernels.Log)
}

func (logOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	gx, err := TrueDiv(g, gz, ins[0])
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

type sqrOp struct{ ScalarBase }

func (sqrOp) Name() string { return "sqr" }

func (sqrOp) Arity() int { return 1 }

func (sqrOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return promoted(g, kinds)
}

func (sqrOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return unary(ins, kind, kernels.Sqr)
}

func (sqrOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	two, err := g.ConstantOf(2, gz.Kind())
	if err != nil {
		return nil, err
	}
	gx, err := Mul(g, gz, ins[0], two)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

type identityOp struct{ ScalarBase }

func (identityOp) Name() string { return "identity" }

func (identityOp) Arity() int { return 1 }

func (identityOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return kinds[0], nil
}

func (identityOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return ins[0].Clone(), nil
}

func (identityOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	return []*ir.Variable{gz}, nil
}

func (identityOp) constantInput() int { return 0 }

// viewOp is the identity returning a view of its input.
type viewOp struct{ identityOp }

func (viewOp) Name() string { return "view" }

func (viewOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return ins[0], nil
}

func (viewOp) view() bool { return true }

// secondOp returns its second input broadcast to the shape of the first.
type secondOp struct{ ScalarBase }

func (secondOp) Name() string { return "second" }

func (secondOp) Arity() int { return 2 }

func (secondOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return kinds[1], nil
}

func (secondOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return ins[1].Clone(), nil
}

// Grad: the values of the first input do not change the output.
func (secondOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	return []*ir.Variable{nil, gz}, nil
}

func (secondOp) constantInput() int { return 1 }

type convertOp struct {
	ScalarBase
	kind irkind.Kind
}

func (op convertOp) Name() string { return fmt.Sprintf("convert{%s}", op.kind) }

func (convertOp) Arity() int { return 1 }

func (op convertOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	if kinds[0].IsComplex() && !op.kind.IsComplex() {
		return irkind.Invalid, fmterr.Errorf(fmterr.TypeMismatch, "cannot convert %s to %s: use real or imag to drop the imaginary part", kinds[0], op.kind)
	}
	return op.kind, nil
}

func (op convertOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return ins[0].Cast(op.kind)
}

func (op convertOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	x := ins[0]
	if !x.Kind().IsContinuous() {
		return []*ir.Variable{nil}, nil
	}
	if gz.Kind().IsComplex() && !x.Kind().IsComplex() {
		return nil, fmterr.Errorf(fmterr.Unsupported, "gradient of a conversion from %s to %s", x.Kind(), op.kind)
	}
	gx, err := Cast(g, gz, x.Kind())
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

func (convertOp) constantInput() int { return 0 }
