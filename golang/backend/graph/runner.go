// Copyright 2024 Google LLC
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

// Package graph executes graphs on the host by calling the Perform method of
// every application in topological order.
package graph

import (
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
)

type (
	// Runner evaluates outputs of a graph given values for its inputs.
	Runner struct {
		graph   *ir.Graph
		outputs []*ir.Variable
		inputs  []*ir.Variable
		order   []*ir.Apply
		// lastUse maps a variable to the position in order of the last
		// application reading it.
		lastUse map[ir.VarID]int
		// pinned variables are never destroyed: outputs of the runner and
		// variables sharing storage through a view.
		pinned map[ir.VarID]bool
	}

	executor struct {
		runner *Runner
		vals   map[ir.VarID]*values.Array
	}
)

// Compile returns a runner computing the given outputs.
// The graph is not supposed to be modified once it has been compiled.
func Compile(outputs ...*ir.Variable) (*Runner, error) {
	if len(outputs) == 0 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "no output to compute")
	}
	g := outputs[0].Graph()
	for _, out := range outputs {
		if out.Graph() != g {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "output %s belongs to another graph", out)
		}
	}
	r := &Runner{
		graph:   g,
		outputs: outputs,
		inputs:  ir.Inputs(outputs),
		order:   ir.Applies(outputs, nil),
		lastUse: make(map[ir.VarID]int),
		pinned:  make(map[ir.VarID]bool),
	}
	for pos, app := range r.order {
		for _, in := range app.Inputs() {
			r.lastUse[in.ID()] = pos
		}
		for out, ins := range app.Op().Aliasing().View {
			r.pinned[app.Output(out).ID()] = true
			for _, in := range ins {
				r.pinned[app.Input(in).ID()] = true
			}
		}
	}
	for _, out := range outputs {
		r.pinned[out.ID()] = true
	}
	return r, nil
}

// Inputs returns the variables which need to be fed to run the graph.
func (r *Runner) Inputs() []*ir.Variable {
	return r.inputs
}

// Run computes the outputs of the runner given values for the inputs.
// Values are validated against the types of the inputs they are bound to.
func (r *Runner) Run(feeds map[*ir.Variable]any) ([]*values.Array, error) {
	exec := &executor{
		runner: r,
		vals:   make(map[ir.VarID]*values.Array),
	}
	mode := r.graph.ValidateMode()
	for _, in := range r.inputs {
		raw, ok := feeds[in]
		if !ok {
			return nil, fmterr.Errorf(fmterr.ValueUnavailable, "missing value for input %s", in)
		}
		val, err := in.Type().Validate(raw, mode)
		if err != nil {
			return nil, fmterr.PrefixWith("input %s: ", in)(err)
		}
		exec.vals[in.ID()] = val
	}
	for pos, app := range r.order {
		if err := exec.perform(pos, app); err != nil {
			return nil, err
		}
	}
	outs := make([]*values.Array, len(r.outputs))
	for i, out := range r.outputs {
		val, err := exec.value(out)
		if err != nil {
			return nil, err
		}
		outs[i] = val.Clone()
	}
	return outs, nil
}

func (e *executor) value(v *ir.Variable) (*values.Array, error) {
	if v.IsConstant() {
		return v.Value(), nil
	}
	val, ok := e.vals[v.ID()]
	if !ok {
		return nil, fmterr.Internalf("no value computed for %s", v)
	}
	return val, nil
}

// canDestroy returns true if the value of a variable is not read after the
// application at position pos.
func (e *executor) canDestroy(v *ir.Variable, pos int) bool {
	if v.IsConstant() || v.OwnerID() == ir.NoOwner || e.runner.pinned[v.ID()] {
		return false
	}
	return e.runner.lastUse[v.ID()] == pos
}

func (e *executor) perform(pos int, app *ir.Apply) error {
	aliasing := app.Op().Aliasing()
	ins := make([]*values.Array, len(app.Inputs()))
	for i, in := range app.Inputs() {
		val, err := e.value(in)
		if err != nil {
			return err
		}
		if aliasing.Destroyed(i) && !e.canDestroy(in, pos) {
			val = val.Clone()
		}
		ins[i] = val
	}
	e.runner.graph.Logger().Debug("perform", "apply", app.String())
	outs, err := app.Op().Perform(app, ins)
	if err != nil {
		return fmterr.PrefixWith("%s: ", app)(err)
	}
	if len(outs) != len(app.Outputs()) {
		return fmterr.Internalf("%s computed %d values for %d outputs", app, len(outs), len(app.Outputs()))
	}
	for i, out := range app.Outputs() {
		val, err := out.Type().Validate(outs[i], ir.Strict)
		if err != nil {
			return fmterr.ToInternal(fmterr.PrefixWith("%s: output %d: ", app, i)(err))
		}
		e.vals[out.ID()] = val
	}
	return nil
}

// Eval compiles and runs a graph computing a single output.
func Eval(out *ir.Variable, feeds map[*ir.Variable]any) (*values.Array, error) {
	r, err := Compile(out)
	if err != nil {
		return nil, err
	}
	vals, err := r.Run(feeds)
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}
