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

// Package math provides elementwise math functions on tensors.
// Math functions do not interact with shapes: they are scalar operations
// applied by elemwise.Elemwise.
package math

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

func perform1(ins []*values.Array, kind irkind.Kind, op kernels.UnaryOp) (*values.Array, error) {
	x, err := ins[0].Cast(kind)
	if err != nil {
		return nil, err
	}
	return kernels.Apply1(op, x)
}

func perform2(ins []*values.Array, kind irkind.Kind, op kernels.BinaryOp) (*values.Array, error) {
	x, err := ins[0].Cast(kind)
	if err != nil {
		return nil, err
	}
	y, err := ins[1].Cast(kind)
	if err != nil {
		return nil, err
	}
	return kernels.Apply2(op, x, y)
}

// floatKind promotes the kinds and converts integers to the float precision
// of the graph.
func floatKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	kind, err := irkind.Promote(kinds...)
	if err != nil {
		return irkind.Invalid, err
	}
	if kind.IsInteger() {
		return g.FloatX(), nil
	}
	return kind, nil
}

// realKind promotes the kinds of operations without complex counterparts.
func realKind(name string, kinds []irkind.Kind) (irkind.Kind, error) {
	kind, err := irkind.Promote(kinds...)
	if err != nil {
		return irkind.Invalid, err
	}
	if kind.IsComplex() {
		return irkind.Invalid, fmterr.Errorf(fmterr.TypeMismatch, "%s not defined for %s", name, kind)
	}
	return kind, nil
}

type sqrtOp struct{ elemwise.ScalarBase }

func (sqrtOp) Name() string { return "sqrt" }

func (sqrtOp) Arity() int { return 1 }

func (sqrtOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return floatKind(g, kinds)
}

func (sqrtOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return perform1(ins, kind, kernels.Sqrt)
}

// Grad of sqrt(x) is gz / (2*sqrt(x)).
func (sqrtOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	two, err := g.ConstantOf(2, out.Kind())
	if err != nil {
		return nil, err
	}
	den, err := elemwise.Mul(g, out, two)
	if err != nil {
		return nil, err
	}
	gx, err := elemwise.TrueDiv(g, gz, den)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

type absOp struct{ elemwise.ScalarBase }

func (absOp) Name() string { return "abs" }

func (absOp) Arity() int { return 1 }

func (op absOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return realKind(op.Name(), kinds)
}

func (absOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return perform1(ins, kind, kernels.Abs)
}

func (absOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	sgn, err := Sgn(g, ins[0])
	if err != nil {
		return nil, err
	}
	gx, err := elemwise.Mul(g, gz, sgn)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx}, nil
}

type sgnOp struct{ elemwise.ScalarBase }

func (sgnOp) Name() string { return "sgn" }

func (sgnOp) Arity() int { return 1 }

func (op sgnOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return realKind(op.Name(), kinds)
}

func (sgnOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return perform1(ins, kind, kernels.Sign)
}

// Grad is zero almost everywhere.
func (sgnOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	return []*ir.Variable{nil}, nil
}

// Sqrt returns the square root of x. The square root of integers is a float.
func Sqrt(g *ir.Graph, x any) (*ir.Variable, error) {
	return elemwise.Apply(g, sqrtOp{}, x)
}

// Abs returns the absolute value of x.
func Abs(g *ir.Graph, x any) (*ir.Variable, error) {
	return elemwise.Apply(g, absOp{}, x)
}

// Sgn returns -1, 0 or 1 depending on the sign of x.
func Sgn(g *ir.Graph, x any) (*ir.Variable, error) {
	return elemwise.Apply(g, sgnOp{}, x)
}
