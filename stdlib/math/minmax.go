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

// extremumOp selects the maximum or the minimum of two elements.
type extremumOp struct {
	elemwise.ScalarBase
	name string
	op   kernels.BinaryOp
}

var (
	maximumOp = extremumOp{name: "maximum", op: kernels.Maximum}
	minimumOp = extremumOp{name: "minimum", op: kernels.Minimum}
)

func (op extremumOp) Name() string { return op.name }

func (extremumOp) Arity() int { return 2 }

func (op extremumOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return realKind(op.name, kinds)
}

func (op extremumOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return perform2(ins, kind, op.op)
}

// Grad routes gz to the input selected by the operation.
// Both inputs receive gz when they are equal.
func (extremumOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	grads := make([]*ir.Variable, len(ins))
	for i, in := range ins {
		mask, err := Eq(g, out, in)
		if err != nil {
			return nil, err
		}
		if grads[i], err = elemwise.Mul(g, gz, mask); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

type eqOp struct{ elemwise.ScalarBase }

func (eqOp) Name() string { return "eq" }

func (eqOp) Arity() int { return 2 }

func (eqOp) OutKind(g *ir.Graph, kinds []irkind.Kind) (irkind.Kind, error) {
	return irkind.Promote(kinds...)
}

func (eqOp) Perform(ins []*values.Array, kind irkind.Kind) (*values.Array, error) {
	return perform2(ins, kind, kernels.Equal)
}

func (eqOp) Grad(g *ir.Graph, ins []*ir.Variable, out, gz *ir.Variable) ([]*ir.Variable, error) {
	return make([]*ir.Variable, 2), nil
}

// Maximum returns the elementwise maximum of x and y.
func Maximum(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return elemwise.Apply(g, maximumOp, x, y)
}

// Minimum returns the elementwise minimum of x and y.
func Minimum(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return elemwise.Apply(g, minimumOp, x, y)
}

// Eq returns 1 where x equals y and 0 elsewhere.
// The output kind is the promotion of the kinds of x and y.
func Eq(g *ir.Graph, x, y any) (*ir.Variable, error) {
	return elemwise.Apply(g, eqOp{}, x, y)
}
