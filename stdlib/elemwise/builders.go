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
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// Add returns the sum of its arguments.
func Add(g *ir.Graph, xs ...any) (*ir.Variable, error) {
	return Apply(g, ScalarAdd, xs...)
}

// Sub returns x - y.
func Sub(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return Apply(g, ScalarSub, x, y)
}

// Mul returns the product of its arguments.
func Mul(g *ir.Graph, xs ...any) (*ir.Variable, error) {
	return Apply(g, ScalarMul, xs...)
}

// TrueDiv returns x / y. The quotient of integers is a float.
func TrueDiv(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return Apply(g, ScalarTrueDiv, x, y)
}

// IntDiv returns x / y rounded towards negative infinity.
func IntDiv(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return Apply(g, ScalarIntDiv, x, y)
}

// Neg returns -x.
func Neg(g *ir.Graph, x any) (*ir.Variable, error) {
	return Apply(g, ScalarNeg, x)
}

// Exp returns e^x.
func Exp(g *ir.Graph, x any) (*ir.Variable, error) {
	return Apply(g, ScalarExp, x)
}

// Log returns the natural logarithm of x.
func Log(g *ir.Graph, x any) (*ir.Variable, error) {
	return Apply(g, ScalarLog, x)
}

// Sqr returns x*x.
func Sqr(g *ir.Graph, x any) (*ir.Variable, error) {
	return Apply(g, ScalarSqr, x)
}

// TensorCopy returns a copy of x.
func TensorCopy(g *ir.Graph, x any) (*ir.Variable, error) {
	return Apply(g, ScalarIdentity, x)
}

// View returns a view of x.
func View(g *ir.Graph, x any) (*ir.Variable, error) {
	return Apply(g, ScalarView, x)
}

// Fill returns a tensor broadcasting value to the shape of model.
func Fill(g *ir.Graph, model, value any) (*ir.Variable, error) {
	return Apply(g, ScalarSecond, model, value)
}

// Cast converts the elements of x to a kind.
// x is returned if it already has the kind.
func Cast(g *ir.Graph, x any, kind irkind.Kind) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	if xv.Kind() == kind {
		return xv, nil
	}
	return Apply(g, ScalarConvert(kind), xv)
}

func fillLike(g *ir.Graph, x any, value int) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	c, err := g.ConstantOf(value, xv.Kind())
	if err != nil {
		return nil, err
	}
	return Fill(g, xv, c)
}

// OnesLike returns a tensor of ones with the type of x.
func OnesLike(g *ir.Graph, x any) (*ir.Variable, error) {
	return fillLike(g, x, 1)
}

// ZerosLike returns a tensor of zeros with the type of x.
func ZerosLike(g *ir.Graph, x any) (*ir.Variable, error) {
	return fillLike(g, x, 0)
}
