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

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/stdlib/elemwise"
	"github.com/gx-org/tensorir/stdlib/subtensor"
)

// MakeVectorOp assembles scalars into a vector of a given kind.
type MakeVectorOp struct {
	ir.BaseOp
	kind irkind.Kind
}

var _ ir.Op = (*MakeVectorOp)(nil)

func makeVectorKey(kind irkind.Kind) string {
	return fmt.Sprintf("make_vector{%s}", kind)
}

func newMakeVectorOp(g *ir.Graph, kind irkind.Kind) *MakeVectorOp {
	return g.Memo().Load(makeVectorKey(kind), func() ir.Op {
		return &MakeVectorOp{kind: kind}
	}).(*MakeVectorOp)
}

// Key identifies the Op.
func (op *MakeVectorOp) Key() string {
	return makeVectorKey(op.kind)
}

func (op *MakeVectorOp) String() string {
	return fmt.Sprintf("MakeVector{%s}", op.kind)
}

// Make checks that every argument is a scalar of a kind the vector can
// represent and builds an application of the Op.
func (op *MakeVectorOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	ins := make([]*ir.Variable, len(args))
	for i, arg := range args {
		var err error
		if ins[i], err = g.AsVariable(arg); err != nil {
			return nil, err
		}
		x := ins[i]
		if x.Rank() != 0 {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: element %d: %s is not a scalar", op, i, x)
		}
		if x.Kind() != op.kind && !irkind.CanRepresent(x.Kind(), op.kind) {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: element %d: cannot store %s in a vector of %s", op, i, x, op.kind)
		}
	}
	return g.NewApply(op, ins, ir.Vector(op.kind))
}

// Perform assembles concrete scalars.
func (op *MakeVectorOp) Perform(app *ir.Apply, ins []*values.Array) ([]*values.Array, error) {
	out, err := values.Zeros(op.kind, len(ins))
	if err != nil {
		return nil, err
	}
	idx := make([]int, 1)
	for i, in := range ins {
		elem, err := in.Cast(op.kind)
		if err != nil {
			return nil, err
		}
		idx[0] = i
		if err := out.Put(idx, elem, false); err != nil {
			return nil, err
		}
	}
	return []*values.Array{out}, nil
}

// Grad returns the elements of the gradient of the output.
func (op *MakeVectorOp) Grad(app *ir.Apply, outGrads []*ir.Variable) ([]*ir.Variable, error) {
	ins := app.Inputs()
	grads := make([]*ir.Variable, len(ins))
	if !op.kind.IsContinuous() {
		return grads, nil
	}
	g := app.Graph()
	for i, x := range ins {
		if !x.Kind().IsContinuous() {
			continue
		}
		elem, err := subtensor.Get(g, outGrads[0], i)
		if err != nil {
			return nil, err
		}
		if grads[i], err = elemwise.Cast(g, elem, x.Kind()); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

// InferShape returns the number of elements.
func (*MakeVectorOp) InferShape(app *ir.Apply, shapes []ir.Shape) ([]ir.Shape, error) {
	return []ir.Shape{{len(shapes)}}, nil
}

// VectorLength returns the number of elements.
func (*MakeVectorOp) VectorLength(app *ir.Apply) (int, bool) {
	return len(app.Inputs()), true
}

// MakeVector assembles scalars into a vector of a given kind.
// Go integers are converted to the kind of the vector.
func MakeVector(g *ir.Graph, kind irkind.Kind, xs ...any) (*ir.Variable, error) {
	if !kind.IsValid() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "invalid kind %s", kind)
	}
	args := make([]any, len(xs))
	for i, x := range xs {
		args[i] = x
		n, ok := goInt(x)
		if !ok {
			continue
		}
		var err error
		if args[i], err = g.ConstantOf(n, kind); err != nil {
			return nil, err
		}
	}
	return ir.Call(g, newMakeVectorOp(g, kind), args...)
}
