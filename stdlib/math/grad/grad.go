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

// Package grad builds graphs computing the gradient of a cost with respect to
// variables, using the local gradient rules of the operations.
package grad

import (
	"github.com/gx-org/tensorir/base/uname"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/stdlib/elemwise"
)

type (
	// Option configures the computation of a gradient.
	Option func(*config)

	config struct {
		seed     *ir.Variable
		constant map[ir.VarID]bool
	}
)

// Seed sets the gradient of the cost. The default is a tensor of ones
// with the type of the cost.
func Seed(v *ir.Variable) Option {
	return func(cfg *config) {
		cfg.seed = v
	}
}

// ConsiderConstant excludes variables from the differentiation: gradients do
// not flow through them.
func ConsiderConstant(vs ...*ir.Variable) Option {
	return func(cfg *config) {
		for _, v := range vs {
			cfg.constant[v.ID()] = true
		}
	}
}

// accumulator collects the gradient contributions of variables.
type accumulator struct {
	g     *ir.Graph
	terms map[ir.VarID][]*ir.Variable
}

func (acc *accumulator) add(v, grad *ir.Variable) {
	acc.terms[v.ID()] = append(acc.terms[v.ID()], grad)
}

// total returns the sum of the contributions to the gradient of v,
// or nil if v has not received any.
func (acc *accumulator) total(v *ir.Variable) (*ir.Variable, error) {
	terms := acc.terms[v.ID()]
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return terms[0], nil
	}
	args := make([]any, len(terms))
	for i, term := range terms {
		args[i] = term
	}
	sum, err := elemwise.Add(acc.g, args...)
	if err != nil {
		return nil, err
	}
	acc.terms[v.ID()] = []*ir.Variable{sum}
	return sum, nil
}

type gradder struct {
	cfg    config
	g      *ir.Graph
	cost   *ir.Variable
	acc    accumulator
	unames *uname.Unique
	// Variables with a smaller ID existed before the gradient was built.
	start ir.VarID
}

func (gr *gradder) isConstant(v *ir.Variable) bool {
	return v.IsConstant() || gr.cfg.constant[v.ID()]
}

func (gr *gradder) seed() (*ir.Variable, error) {
	if gr.cfg.seed == nil {
		return elemwise.OnesLike(gr.g, gr.cost)
	}
	seed := gr.cfg.seed
	if seed.Graph() != gr.g {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "seed %s belongs to another graph", seed)
	}
	if seed.Rank() != gr.cost.Rank() {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "seed %s of rank %d does not match cost %s of rank %d", seed, seed.Rank(), gr.cost, gr.cost.Rank())
	}
	return seed, nil
}

// outGrads returns the gradients of the outputs of an application.
// Outputs without gradient get zeros if another output has a gradient.
func (gr *gradder) outGrads(app *ir.Apply) ([]*ir.Variable, bool, error) {
	outs := app.Outputs()
	grads := make([]*ir.Variable, len(outs))
	found := false
	for i, out := range outs {
		var err error
		if grads[i], err = gr.acc.total(out); err != nil {
			return nil, false, err
		}
		found = found || grads[i] != nil
	}
	if !found {
		return nil, false, nil
	}
	for i, out := range outs {
		if grads[i] != nil {
			continue
		}
		var err error
		if grads[i], err = elemwise.ZerosLike(gr.g, out); err != nil {
			return nil, false, err
		}
	}
	return grads, true, nil
}

func (gr *gradder) backward(app *ir.Apply) error {
	outGrads, ok, err := gr.outGrads(app)
	if err != nil || !ok {
		return err
	}
	gr.g.Logger().Debug("gradient", "apply", app.String())
	inGrads, err := app.Op().Grad(app, outGrads)
	if err != nil {
		return fmterr.PrefixWith("gradient of %s: ", app)(err)
	}
	ins := app.Inputs()
	if len(inGrads) != len(ins) {
		return fmterr.Internalf("gradient of %s: %d gradients returned for %d inputs", app, len(inGrads), len(ins))
	}
	for i, in := range ins {
		inGrad := inGrads[i]
		if inGrad == nil || gr.isConstant(in) {
			continue
		}
		if inGrad.Rank() != in.Rank() {
			return fmterr.Errorf(fmterr.ShapeMismatch, "gradient of %s: gradient %s of input %d has rank %d but the input %s has rank %d", app, inGrad, i, inGrad.Rank(), in, in.Rank())
		}
		if inGrad.Kind() != in.Kind() {
			gr.g.Logger().Warn("gradient kind differs from its input kind",
				"apply", app.String(),
				"input", i,
				"input kind", in.Kind().String(),
				"gradient kind", inGrad.Kind().String())
		}
		gr.acc.add(in, inGrad)
	}
	return nil
}

// fit converts a gradient to the exact type of the variable.
func (gr *gradder) fit(grad, wrt *ir.Variable) (*ir.Variable, error) {
	if grad == nil {
		return elemwise.ZerosLike(gr.g, wrt)
	}
	if grad.Type().Equal(wrt.Type()) {
		return grad, nil
	}
	return elemwise.ReduceLike(gr.g, grad, wrt)
}

// name names the gradients built by Grad after the variables they are the
// gradient of. Gradients shared by several variables stay anonymous.
func (gr *gradder) name(grads, wrt []*ir.Variable) {
	count := make(map[ir.VarID]int)
	for _, grad := range grads {
		count[grad.ID()]++
	}
	for i, grad := range grads {
		if count[grad.ID()] > 1 {
			continue
		}
		gr.nameOne(grad, wrt[i])
	}
}

func (gr *gradder) nameOne(grad, wrt *ir.Variable) {
	if grad.ID() < gr.start || grad.Name() != "" || wrt.Name() == "" || grad.Owner() == nil {
		return
	}
	costName := gr.cost.Name()
	if costName == "" {
		costName = "cost"
	}
	grad.SetName(gr.unames.Name("d" + costName + "/d" + wrt.Name()))
}

// Grad returns the gradients of a cost with respect to variables.
// The gradient of a variable has the type of the variable. Variables on which
// the cost does not depend get a gradient of zeros.
//
// Gradients of a cost which is not a scalar are the gradients of the sum of
// the cost elements weighted by the seed.
func Grad(cost *ir.Variable, wrt []*ir.Variable, opts ...Option) ([]*ir.Variable, error) {
	g := cost.Graph()
	gr := &gradder{
		cfg:    config{constant: make(map[ir.VarID]bool)},
		g:      g,
		cost:   cost,
		acc:    accumulator{g: g, terms: make(map[ir.VarID][]*ir.Variable)},
		unames: uname.New(),
		start:  ir.VarID(g.NumVariables()),
	}
	for _, opt := range opts {
		opt(&gr.cfg)
	}
	for _, w := range wrt {
		if w.Graph() != g {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "cannot differentiate with respect to %s: variable from another graph", w)
		}
		gr.unames.Register(w.Name())
	}
	if !cost.Kind().IsContinuous() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot differentiate cost %s of kind %s", cost, cost.Kind())
	}
	if cost.Rank() != 0 {
		g.Logger().Warn("gradient of a non-scalar cost: the gradient is the one of the sum of the cost elements weighted by the seed",
			"cost", cost.String(),
			"rank", cost.Rank())
	}
	seed, err := gr.seed()
	if err != nil {
		return nil, err
	}
	if !gr.cfg.constant[cost.ID()] {
		gr.acc.add(cost, seed)
	}
	apps := ir.Applies([]*ir.Variable{cost}, gr.isConstant)
	for i := len(apps) - 1; i >= 0; i-- {
		if err := gr.backward(apps[i]); err != nil {
			return nil, err
		}
	}
	grads := make([]*ir.Variable, len(wrt))
	for i, w := range wrt {
		var total *ir.Variable
		if !gr.cfg.constant[w.ID()] {
			if total, err = gr.acc.total(w); err != nil {
				return nil, err
			}
		}
		if grads[i], err = gr.fit(total, w); err != nil {
			return nil, fmterr.PrefixWith("gradient with respect to %s: ", w)(err)
		}
	}
	gr.name(grads, wrt)
	return grads, nil
}
