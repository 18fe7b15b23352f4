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

// Package ir defines the graph of typed tensor variables and operations:
// types, variables, applications of operations, and the graph arena owning them.
package ir

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

type (
	// VarID identifies a variable in its graph.
	VarID int

	// ApplyID identifies an application in its graph.
	ApplyID int
)

// NoOwner is the owner of variables not computed by an application:
// graph inputs and constants.
const NoOwner ApplyID = -1

type (
	// Graph owns all the variables and applications built during a
	// construction session. It also carries the autocast policy used to
	// convert literals and the memoization table of Ops.
	//
	// A graph is not safe for concurrent use.
	Graph struct {
		vars        []*Variable
		apps        []*Apply
		memo        *Memo
		logger      *slog.Logger
		checkFinite bool
		policies    []Policy
	}

	// Option configures a graph.
	Option func(*Graph)

	// Variable is a typed node of a graph.
	// A variable is either an input of the graph, a constant,
	// or the output of exactly one application.
	Variable struct {
		graph *Graph
		id    VarID
		typ   Type
		name  string
		owner ApplyID
		index int
		value *values.Array
	}

	// Apply is the application of an Op to input variables.
	// The application owns its output variables.
	Apply struct {
		graph   *Graph
		id      ApplyID
		op      Op
		inputs  []*Variable
		outputs []*Variable
	}
)

// WithLogger sets the logger of the graph.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithFloatX sets the global float precision used by the autocast policy.
func WithFloatX(kind irkind.Kind) Option {
	return func(g *Graph) {
		g.policies[0].FloatX = kind
	}
}

// WithAutocastInts sets the kinds, in order of preference, of integer literals.
func WithAutocastInts(kinds ...irkind.Kind) Option {
	return func(g *Graph) {
		g.policies[0].Ints = append([]irkind.Kind{}, kinds...)
	}
}

// WithAutocastFloats sets the kinds, in order of preference, of float literals.
func WithAutocastFloats(kinds ...irkind.Kind) Option {
	return func(g *Graph) {
		g.policies[0].Floats = append([]irkind.Kind{}, kinds...)
	}
}

// WithCheckFinite rejects non-finite values when values are validated
// against the types of the graph variables.
func WithCheckFinite(check bool) Option {
	return func(g *Graph) {
		g.checkFinite = check
	}
}

// NewGraph returns a new empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		memo:     newMemo(),
		logger:   slog.Default(),
		policies: []Policy{DefaultPolicy()},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Logger used by the graph.
func (g *Graph) Logger() *slog.Logger {
	return g.logger
}

// Memo returns the memoization table of Ops of the graph.
func (g *Graph) Memo() *Memo {
	return g.memo
}

// ValidateMode returns the mode used to validate values fed to the graph.
func (g *Graph) ValidateMode() ValidateMode {
	if g.checkFinite {
		return CheckFinite
	}
	return Cast
}

func (g *Graph) newVariable(tp Type, name string, owner ApplyID, index int, value *values.Array) *Variable {
	v := &Variable{
		graph: g,
		id:    VarID(len(g.vars)),
		typ:   tp,
		name:  name,
		owner: owner,
		index: index,
		value: value,
	}
	g.vars = append(g.vars, v)
	return v
}

// NewInput returns a new input variable of the graph.
func (g *Graph) NewInput(tp Type, name string) *Variable {
	return g.newVariable(tp, name, NoOwner, 0, nil)
}

// NewConstant returns a new constant given a type and a value.
// The value is validated against the type.
func (g *Graph) NewConstant(tp Type, value any) (*Variable, error) {
	arr, err := tp.Validate(value, Cast)
	if err != nil {
		return nil, err
	}
	return g.newVariable(tp, "", NoOwner, 0, arr), nil
}

// NewApply builds an application of an Op to inputs.
// A new output variable is created for every output type.
// NewApply is called by the Make method of Ops.
func (g *Graph) NewApply(op Op, inputs []*Variable, outputs ...Type) (*Apply, error) {
	for i, in := range inputs {
		if in == nil {
			return nil, fmterr.Internalf("%s: input %d is nil", op, i)
		}
		if in.graph != g {
			return nil, fmterr.Errorf(fmterr.InvalidValue, "%s: input %d (%s) belongs to another graph", op, i, in)
		}
	}
	app := &Apply{
		graph:  g,
		id:     ApplyID(len(g.apps)),
		op:     op,
		inputs: append([]*Variable{}, inputs...),
	}
	for i, tp := range outputs {
		if tp == nil {
			return nil, fmterr.Internalf("%s: output type %d is nil", op, i)
		}
		app.outputs = append(app.outputs, g.newVariable(tp, "", app.id, i, nil))
	}
	g.apps = append(g.apps, app)
	return app, nil
}

// Variable returns a variable given its ID.
func (g *Graph) Variable(id VarID) *Variable {
	return g.vars[id]
}

// Apply returns an application given its ID.
func (g *Graph) Apply(id ApplyID) *Apply {
	return g.apps[id]
}

// NumVariables returns the number of variables in the graph.
func (g *Graph) NumVariables() int {
	return len(g.vars)
}

// NumApplies returns the number of applications in the graph.
func (g *Graph) NumApplies() int {
	return len(g.apps)
}

// Check verifies the consistency of the graph: every application owns its
// outputs and every constant is valid for its type.
// All the violations found are returned.
func (g *Graph) Check() error {
	var errs fmterr.Appender
	for id, app := range g.apps {
		if app.id != ApplyID(id) {
			errs.Appendf(fmterr.Internal, "application %s stored at %d has ID %d", app, id, app.id)
		}
		for i, out := range app.outputs {
			if out.owner != app.id || out.index != i {
				errs.Appendf(fmterr.Internal, "output %d of %s claims to be output %d of application %d", i, app, out.index, out.owner)
			}
		}
	}
	for id, v := range g.vars {
		if v.id != VarID(id) {
			errs.Appendf(fmterr.Internal, "variable %s stored at %d has ID %d", v, id, v.id)
		}
		if v.owner == NoOwner {
			if v.value == nil {
				continue
			}
			if _, err := v.typ.Validate(v.value, Strict); err != nil {
				errs.Append(fmterr.PrefixWith("constant %s: ", v)(err))
			}
			continue
		}
		if int(v.owner) >= len(g.apps) {
			errs.Appendf(fmterr.Internal, "variable %s owned by unknown application %d", v, v.owner)
			continue
		}
		outs := g.apps[v.owner].outputs
		if v.index >= len(outs) || outs[v.index] != v {
			errs.Appendf(fmterr.Internal, "variable %s is not output %d of its owner %s", v, v.index, g.apps[v.owner])
		}
		if v.value != nil {
			errs.Appendf(fmterr.Internal, "constant %s has an owner", v)
		}
	}
	return errs.ToError()
}

// ID of the variable in its graph.
func (v *Variable) ID() VarID {
	return v.id
}

// Graph owning the variable.
func (v *Variable) Graph() *Graph {
	return v.graph
}

// Type of the variable.
func (v *Variable) Type() Type {
	return v.typ
}

// Kind of the elements of the variable.
func (v *Variable) Kind() irkind.Kind {
	return v.typ.Kind()
}

// Rank of the variable.
func (v *Variable) Rank() int {
	return v.typ.Rank()
}

// Pattern returns the broadcast pattern of the variable.
func (v *Variable) Pattern() BroadcastPattern {
	return v.typ.Pattern()
}

// Name of the variable. Can be empty.
func (v *Variable) Name() string {
	return v.name
}

// SetName sets the display name of the variable.
func (v *Variable) SetName(name string) {
	v.name = name
}

// Owner returns the application computing the variable,
// or nil if the variable is an input or a constant.
func (v *Variable) Owner() *Apply {
	if v.owner == NoOwner {
		return nil
	}
	return v.graph.apps[v.owner]
}

// OwnerID returns the ID of the application computing the variable, or NoOwner.
func (v *Variable) OwnerID() ApplyID {
	return v.owner
}

// Index of the variable in the outputs of its owner.
func (v *Variable) Index() int {
	return v.index
}

// IsConstant returns true if the variable holds a literal value.
func (v *Variable) IsConstant() bool {
	return v.value != nil
}

// Value returns the literal value of a constant, or nil.
// The value must not be modified.
func (v *Variable) Value() *values.Array {
	return v.value
}

func (v *Variable) String() string {
	switch {
	case v.name != "":
		return v.name
	case v.value != nil && v.value.Size() <= 8:
		return v.value.String()
	case v.value != nil:
		return fmt.Sprintf("constant%d", v.id)
	case v.owner != NoOwner:
		app := v.graph.apps[v.owner]
		if len(app.outputs) == 1 {
			return fmt.Sprintf("%s.out", app.op)
		}
		return fmt.Sprintf("%s.%d", app.op, v.index)
	}
	return fmt.Sprintf("<%s>", v.typ)
}

// ID of the application in its graph.
func (app *Apply) ID() ApplyID {
	return app.id
}

// Graph owning the application.
func (app *Apply) Graph() *Graph {
	return app.graph
}

// Op applied by the application.
func (app *Apply) Op() Op {
	return app.op
}

// Inputs returns the inputs of the application.
// The returned slice must not be modified.
func (app *Apply) Inputs() []*Variable {
	return app.inputs
}

// Input returns the ith input.
func (app *Apply) Input(i int) *Variable {
	return app.inputs[i]
}

// Outputs returns the outputs of the application.
// The returned slice must not be modified.
func (app *Apply) Outputs() []*Variable {
	return app.outputs
}

// Output returns the ith output.
func (app *Apply) Output(i int) *Variable {
	return app.outputs[i]
}

func (app *Apply) String() string {
	ins := make([]string, len(app.inputs))
	for i, in := range app.inputs {
		ins[i] = in.String()
	}
	return fmt.Sprintf("%s(%s)", app.op, strings.Join(ins, ", "))
}
