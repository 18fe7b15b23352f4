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

package subtensor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/kernels"
)

// Slice selects a strided range of a dimension.
// Each bound is nil, an int or an integer scalar variable.
type Slice struct {
	Start, Stop, Step any
}

// All selects a whole dimension.
var All = Slice{}

// Range returns the slice [start:stop].
func Range(start, stop any) Slice {
	return Slice{Start: start, Stop: stop}
}

type boundKind int

const (
	absent boundKind = iota
	literal
	symbolic
)

// bound is a component of an index list: an index or a slice bound.
// The value of a symbolic bound is an input of the application.
type bound struct {
	kind  boundKind
	value int
	// sym is the kind of the integer scalar of a symbolic bound.
	sym irkind.Kind
}

func (b bound) String() string {
	switch b.kind {
	case literal:
		return strconv.Itoa(b.value)
	case symbolic:
		return b.sym.String()
	}
	return ""
}

// entry of an index list: a single position or a slice.
type entry struct {
	slice             bool
	at                bound
	start, stop, step bound
}

func (e entry) String() string {
	if !e.slice {
		return e.at.String()
	}
	s := e.start.String() + ":" + e.stop.String()
	if e.step.kind != absent {
		s += ":" + e.step.String()
	}
	return s
}

func (e entry) isFull() bool {
	return e.slice && e.start.kind == absent && e.stop.kind == absent && e.step.kind == absent
}

// indexList is a normalized index list: trailing full slices are removed.
type indexList []entry

func (l indexList) String() string {
	ss := make([]string, len(l))
	for i, e := range l {
		ss[i] = e.String()
	}
	return strings.Join(ss, ", ")
}

// symbolics returns the kinds of the symbolic bounds, depth-first from left
// to right.
func (l indexList) symbolics() []irkind.Kind {
	var kinds []irkind.Kind
	add := func(b bound) {
		if b.kind == symbolic {
			kinds = append(kinds, b.sym)
		}
	}
	for _, e := range l {
		if !e.slice {
			add(e.at)
			continue
		}
		add(e.start)
		add(e.stop)
		add(e.step)
	}
	return kinds
}

// pattern returns the broadcast pattern of the region of a tensor selected by the list.
func (l indexList) pattern(x ir.BroadcastPattern) ir.BroadcastPattern {
	var out ir.BroadcastPattern
	for axis, bc := range x {
		if axis < len(l) && !l[axis].slice {
			continue
		}
		out = append(out, bc)
	}
	return out
}

// checkSymbolics checks the symbolic inputs of an application against the list.
func (l indexList) checkSymbolics(syms []*ir.Variable) error {
	want := l.symbolics()
	if len(syms) != len(want) {
		return fmterr.Errorf(fmterr.InvalidValue, "index list [%s] requires %d symbolic indices, got %d", l, len(want), len(syms))
	}
	for i, sym := range syms {
		if sym.Rank() != 0 || sym.Kind() != want[i] {
			return fmterr.Errorf(fmterr.TypeMismatch, "symbolic index %d: expected a scalar of kind %s, got %s", i, want[i], sym.Type())
		}
	}
	return nil
}

// selections returns the kernel selections of the list given the values of
// the symbolic bounds.
func (l indexList) selections(syms []*values.Array) ([]kernels.Selection, error) {
	next := 0
	resolve := func(b bound) (int, bool, error) {
		switch b.kind {
		case literal:
			return b.value, true, nil
		case symbolic:
			vals, err := syms[next].Int64s()
			if err != nil {
				return 0, false, err
			}
			next++
			return int(vals[0]), true, nil
		}
		return 0, false, nil
	}
	sels := make([]kernels.Selection, len(l))
	for i, e := range l {
		if !e.slice {
			pos, _, err := resolve(e.at)
			if err != nil {
				return nil, err
			}
			sels[i] = kernels.Selection{Single: true, Pos: pos}
			continue
		}
		var s kernels.Slice
		var err error
		if s.Start, s.HasStart, err = resolve(e.start); err != nil {
			return nil, err
		}
		if s.Stop, s.HasStop, err = resolve(e.stop); err != nil {
			return nil, err
		}
		step, hasStep, err := resolve(e.step)
		if err != nil {
			return nil, err
		}
		s.Step = 1
		if hasStep {
			s.Step = step
		}
		sels[i] = kernels.Selection{Slice: s}
	}
	return sels, nil
}

// inferShape returns the shape of the region selected by the list in a tensor
// of a given shape.
func (l indexList) inferShape(x ir.Shape) ir.Shape {
	var out ir.Shape
	for axis, d := range x {
		if axis >= len(l) {
			out = append(out, d)
			continue
		}
		e := l[axis]
		if !e.slice {
			continue
		}
		if e.isFull() {
			out = append(out, d)
			continue
		}
		if d == ir.UnknownDim || e.start.kind == symbolic || e.stop.kind == symbolic || e.step.kind == symbolic {
			out = append(out, ir.UnknownDim)
			continue
		}
		s := kernels.Slice{
			Start: e.start.value, HasStart: e.start.kind == literal,
			Stop: e.stop.value, HasStop: e.stop.kind == literal,
			Step: 1,
		}
		if e.step.kind == literal {
			s.Step = e.step.value
		}
		_, _, count, err := s.Indices(d)
		if err != nil {
			out = append(out, ir.UnknownDim)
			continue
		}
		out = append(out, count)
	}
	return out
}

// parsed is the result of parsing the arguments of an indexing expression.
type parsed struct {
	list indexList
	// syms are the symbolic bounds, in the order of list.symbolics.
	syms []*ir.Variable
	// advanced are the integer tensors of an advanced index, if any.
	advanced []*ir.Variable
	// basic counts the entries of the expression which are not integer tensors.
	basic int
}

func literalInt(v any) (int, bool) {
	switch vT := v.(type) {
	case int:
		return vT, true
	case int8:
		return int(vT), true
	case int16:
		return int(vT), true
	case int32:
		return int(vT), true
	case int64:
		return int(vT), true
	}
	return 0, false
}

func parseBound(g *ir.Graph, v any, p *parsed) (bound, error) {
	if v == nil {
		return bound{}, nil
	}
	if i, ok := literalInt(v); ok {
		return bound{kind: literal, value: i}, nil
	}
	sym, err := g.AsVariable(v)
	if err != nil {
		return bound{}, err
	}
	if sym.Rank() != 0 || !sym.Kind().IsInteger() {
		return bound{}, fmterr.Errorf(fmterr.TypeMismatch, "slice bound %s is not an integer scalar", sym)
	}
	p.syms = append(p.syms, sym)
	return bound{kind: symbolic, sym: sym.Kind()}, nil
}

func parseSlice(g *ir.Graph, s Slice, p *parsed) (entry, error) {
	e := entry{slice: true}
	var err error
	if e.start, err = parseBound(g, s.Start, p); err != nil {
		return e, err
	}
	if e.stop, err = parseBound(g, s.Stop, p); err != nil {
		return e, err
	}
	if e.step, err = parseBound(g, s.Step, p); err != nil {
		return e, err
	}
	if e.step.kind == literal && e.step.value == 0 {
		return e, fmterr.Errorf(fmterr.InvalidValue, "slice step cannot be zero")
	}
	return e, nil
}

func parseEntry(g *ir.Graph, arg any, p *parsed) error {
	if i, ok := literalInt(arg); ok {
		p.list = append(p.list, entry{at: bound{kind: literal, value: i}})
		p.basic++
		return nil
	}
	switch argT := arg.(type) {
	case Slice:
		e, err := parseSlice(g, argT, p)
		if err != nil {
			return err
		}
		p.list = append(p.list, e)
		p.basic++
		return nil
	case *Slice:
		e, err := parseSlice(g, *argT, p)
		if err != nil {
			return err
		}
		p.list = append(p.list, e)
		p.basic++
		return nil
	}
	v, err := g.AsVariable(arg)
	if err != nil {
		return err
	}
	if !v.Kind().IsInteger() {
		return fmterr.Errorf(fmterr.TypeMismatch, "index %s is not an integer", v)
	}
	if v.Rank() > 0 {
		p.advanced = append(p.advanced, v)
		return nil
	}
	p.syms = append(p.syms, v)
	p.list = append(p.list, entry{at: bound{kind: symbolic, sym: v.Kind()}})
	p.basic++
	return nil
}

// parse normalizes the arguments of an indexing expression on a tensor of
// a given rank. All the invalid entries are reported.
func parse(g *ir.Graph, rank int, args []any) (*parsed, error) {
	p := &parsed{}
	var errs fmterr.Appender
	for i, arg := range args {
		errs.Push(fmterr.PrefixWith("index %d: ", i))
		errs.Append(parseEntry(g, arg, p))
		errs.Pop()
	}
	if err := errs.ToError(); err != nil {
		return nil, err
	}
	if len(p.advanced) > 0 {
		return p, nil
	}
	if len(p.list) > rank {
		return nil, fmterr.Errorf(fmterr.ShapeMismatch, "index list [%s] is longer than the rank %d of the tensor", p.list, rank)
	}
	for len(p.list) > 0 && p.list[len(p.list)-1].isFull() {
		p.list = p.list[:len(p.list)-1]
	}
	return p, nil
}

func listKey(name string, list indexList) string {
	return fmt.Sprintf("%s{%s}", name, list)
}
