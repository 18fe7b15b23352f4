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

package math

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

type powOp struct{ elemwise.ScalarBase }

func (powOp) Name() string { return "pow" }

func (powOp) Arity() int { return 2 }

func (powOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return floatKind(g, kinds)
}

func (powOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return perform2(ins, kind, kernels.Pow)
}

// Grad of x^y: gz*y*x^(y-1) and gz*log(x)*x^y.
func (powOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	x, y := ins[0], ins[1]
	one, err := g.ConstantOf(1, y.Kind())
	if err != nil {
		return nil, err
	}
	ym1, err := elemwise.Sub(g, y, one)
	if err != nil {
		return nil, err
	}
	xpow, err := Pow(g, x, ym1)
	if err != nil {
		return nil, err
	}
	gx, err := elemwise.Mul(g, gz, y, xpow)
	if err != nil {
		return nil, err
	}
	logx, err := elemwise.Log(g, x)
	if err != nil {
		return nil, err
	}
	gy, err := elemwise.Mul(g, gz, logx, out)
	if err != nil {
		return nil, err
	}
	return []*ir.Variable{gx, gy}, nil
}

// Pow returns x to the power y. Powers of integers are floats.
func Pow(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return elemwise.Apply(g, powOp{}, x, y)
}
