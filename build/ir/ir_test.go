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

package ir_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// copyOp copies its input to one or more outputs.
type copyOp struct {
	ir.BaseOp
	numOutputs int
}

func (op copyOp) Key() string {
	return fmt.Sprintf("copy%d", op.numOutputs)
}

func (op copyOp) String() string {
	return op.Key()
}

func (op copyOp) Make(g *ir.Graph, args ...any) (*ir.Apply, error) {
	x, err := g.AsVariable(args[0])
	if err != nil {
		return nil, err
	}
	outs := make([]ir.Type, op.numOutputs)
	for i := range outs {
		outs[i] = x.Type()
	}
	return g.NewApply(op, []*ir.Variable{x}, outs...)
}

func (op copyOp) Perform(app *ir.Apply, inputs []*values.Array) ([]*values.Array, error) {
	outs := make([]*values.Array, op.numOutputs)
	for i := range outs {
		outs[i] = inputs[0].Clone()
	}
	return outs, nil
}

func (op copyOp) ConstantSource(app *ir.Apply) (*ir.Variable, bool) {
	return app.Input(0), true
}

func TestTypeEquality(t *testing.T) {
	a := ir.Matrix(irkind.Float32)
	b := ir.MustTensorOf(irkind.Float32, ir.BroadcastPattern{false, false}).WithName("weights")
	if !a.Equal(b) || a.Key() != b.Key() {
		t.Errorf("%s and %s should be equal with the same key", a, b)
	}
	for _, other := range []ir.Type{
		ir.Matrix(irkind.Float64),
		ir.Row(irkind.Float32),
		ir.Tensor3(irkind.Float32),
	} {
		if a.Equal(other) || a.Key() == other.Key() {
			t.Errorf("%s and %s should be different", a, other)
		}
	}
	if got, want := b.String(), "weights"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if got, want := ir.Col(irkind.Int8).String(), "TensorType(int8, (false, true))"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if _, err := ir.TensorOf(irkind.Invalid, nil); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want a type mismatch", err)
	}
}

func TestPatternAnd(t *testing.T) {
	tests := []struct {
		in   []ir.BroadcastPattern
		want ir.BroadcastPattern
	}{
		{
			in:   []ir.BroadcastPattern{ir.Row(irkind.Float32).Pattern(), ir.Col(irkind.Float32).Pattern()},
			want: ir.BroadcastPattern{false, false},
		},
		{
			in:   []ir.BroadcastPattern{{}, {true, true}},
			want: ir.BroadcastPattern{true, true},
		},
		{
			in:   []ir.BroadcastPattern{{false}, {true, true}},
			want: ir.BroadcastPattern{true, false},
		},
	}
	for i, test := range tests {
		if got := ir.And(test.in...); !got.Equal(test.want) {
			t.Errorf("test %d: And(%v) = %v but want %v", i, test.in, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	row := ir.Row(irkind.Float64)
	tests := []struct {
		tp      ir.Type
		raw     any
		mode    ir.ValidateMode
		want    string
		errKind fmterr.Kind
	}{
		{tp: row, raw: [][]float64{{1, 2}}, mode: ir.Strict, want: "[1][2]float64{{1, 2}}"},
		{tp: row, raw: [][]float32{{1, 2}}, mode: ir.Strict, errKind: fmterr.TypeMismatch},
		{tp: row, raw: [][]float32{{1, 2}}, mode: ir.Cast, want: "[1][2]float64{{1, 2}}"},
		{tp: row, raw: []float64{1, 2}, mode: ir.Cast, errKind: fmterr.TypeMismatch},
		{tp: row, raw: [][]float64{{1}, {2}}, mode: ir.Cast, errKind: fmterr.TypeMismatch},
		{tp: ir.Vector(irkind.Int8), raw: []int64{1, 2}, mode: ir.Cast, want: "[2]int8{1, 2}"},
		{tp: ir.Vector(irkind.Int8), raw: []int64{1, 1000}, mode: ir.Cast, want: "[2]int8{1, -24}"},
		{tp: ir.Scalar(irkind.Int32), raw: 1.5, mode: ir.Cast, want: "int32(1)"},
		{tp: ir.Vector(irkind.Float32), raw: []complex64{1}, mode: ir.Cast, errKind: fmterr.TypeMismatch},
		{tp: ir.Vector(irkind.Float32), raw: []float32{1, float32(math.Inf(1))}, mode: ir.Cast | ir.CheckFinite, errKind: fmterr.InvalidValue},
		{tp: ir.Vector(irkind.Float32), raw: []float32{1, float32(math.Inf(1))}, mode: ir.Cast, want: "[2]float32{1, +Inf}"},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("test%d", i), func(t *testing.T) {
			got, err := test.tp.Validate(test.raw, test.mode)
			if test.errKind != fmterr.Unknown {
				if !errors.Is(err, test.errKind) {
					t.Errorf("got error %v but want %v", err, test.errKind)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != test.want {
				t.Errorf("got %s but want %s", got, test.want)
			}
		})
	}
}

func TestValidateCastsToNarrowerKinds(t *testing.T) {
	tp := ir.Vector(irkind.Float32)
	got, err := tp.Validate([]float64{0.1, 0.2}, ir.Cast)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if want := values.FromSlice([]float32{0.1, 0.2}, 2); !got.Equal(want) {
		t.Errorf("got %s but want %s", got, want)
	}
	if _, err := tp.Validate([]float64{0.1, 0.2}, ir.Strict); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want %v", err, fmterr.TypeMismatch)
	}
}

func TestAutocast(t *testing.T) {
	tests := []struct {
		lit  any
		opts []ir.Option
		want irkind.Kind
	}{
		{lit: 3, want: irkind.Int8},
		{lit: 300, want: irkind.Int16},
		{lit: 70000, want: irkind.Int32},
		{lit: []int{1, 2}, want: irkind.Int64},
		{lit: []int{1, 70000}, want: irkind.Int64},
		{lit: [][]int{{1}, {2}}, want: irkind.Int64},
		{lit: []float64{1.5, 2}, want: irkind.Float64},
		{lit: []float64{1.5}, opts: []ir.Option{ir.WithFloatX(irkind.Float32)}, want: irkind.Float64},
		{lit: []float32{1.5}, want: irkind.Float32},
		{lit: 1 << 40, want: irkind.Int64},
		{lit: int32(3), want: irkind.Int32},
		{lit: 1.5, want: irkind.Float32},
		{lit: 1.1, want: irkind.Float64},
		{lit: 1.1, opts: []ir.Option{ir.WithFloatX(irkind.Float32)}, want: irkind.Float32},
		{lit: 1.5, opts: []ir.Option{ir.WithAutocastFloats(irkind.Float64)}, want: irkind.Float64},
		{lit: 3, opts: []ir.Option{ir.WithAutocastInts(irkind.Int32, irkind.Int64)}, want: irkind.Int32},
		{lit: float32(1.1), want: irkind.Float32},
		{lit: complex(1, 2), want: irkind.Complex128},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("test%d", i), func(t *testing.T) {
			g := ir.NewGraph(test.opts...)
			c, err := g.Constant(test.lit)
			if err != nil {
				t.Fatal(err)
			}
			if c.Kind() != test.want {
				t.Errorf("constant %v: got kind %s but want %s", test.lit, c.Kind(), test.want)
			}
		})
	}
}

func TestAutocastScope(t *testing.T) {
	g := ir.NewGraph()
	kindOf := func(lit any) irkind.Kind {
		c, err := g.Constant(lit)
		if err != nil {
			t.Fatal(err)
		}
		return c.Kind()
	}
	err := g.WithAutocastFloat([]irkind.Kind{irkind.Float64}, func() error {
		if got := kindOf(1.5); got != irkind.Float64 {
			t.Errorf("inside the scope: got %s but want float64", got)
		}
		return fmterr.Errorf(fmterr.InvalidValue, "failure inside the scope")
	})
	if !errors.Is(err, fmterr.InvalidValue) {
		t.Errorf("got error %v but want the error returned inside the scope", err)
	}
	if got := kindOf(1.5); got != irkind.Float32 {
		t.Errorf("after a failing scope: got %s but want float32", got)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("panic not propagated")
			}
		}()
		g.WithAutocastFloat([]irkind.Kind{irkind.Float64}, func() error {
			panic("scope panic")
		})
	}()
	if got := kindOf(1.5); got != irkind.Float32 {
		t.Errorf("after a panicking scope: got %s but want float32", got)
	}
	restoreOuter := g.PushAutocastFloat(irkind.Float64)
	restoreInner := g.PushAutocastFloat(irkind.Float32)
	if got := kindOf(1.1); got != irkind.Float32 {
		t.Errorf("inside nested scopes: got %s but want float32", got)
	}
	restoreOuter()
	restoreInner()
	if got := kindOf(1.5); got != irkind.Float32 {
		t.Errorf("after nested scopes: got %s but want float32", got)
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	g := ir.NewGraph()
	for _, lit := range []any{
		7,
		-1.5,
		[][]int{{1, 2, 3}},
		[]float64{0.1, 0.2},
		[]uint16{1, 2},
	} {
		first, err := g.Constant(lit)
		if err != nil {
			t.Fatal(err)
		}
		second, err := g.Constant(first.Value())
		if err != nil {
			t.Fatal(err)
		}
		if !first.Value().Equal(second.Value()) || !first.Type().Equal(second.Type()) {
			t.Errorf("%v: round trip changed %s:%s into %s:%s", lit, first.Value(), first.Type(), second.Value(), second.Type())
		}
		got, err := first.Type().Validate(first.Value(), ir.Strict)
		if err != nil {
			t.Errorf("%v: cannot validate the value of the constant: %v", lit, err)
			continue
		}
		if got.Kind() != first.Kind() || got.Rank() != first.Rank() {
			t.Errorf("%v: validated value %s does not match type %s", lit, got, first.Type())
		}
	}
}

func TestConstantPattern(t *testing.T) {
	g := ir.NewGraph()
	c, err := g.Constant([][]float32{{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if want := (ir.BroadcastPattern{true, false}); !c.Pattern().Equal(want) {
		t.Errorf("got pattern %v but want %v", c.Pattern(), want)
	}
	if c.Owner() != nil || c.OwnerID() != ir.NoOwner {
		t.Errorf("constant %s has an owner", c)
	}
}

func TestAsVariable(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Vector(irkind.Float32), "x")
	single, err := copyOp{numOutputs: 1}.Make(g, x)
	if err != nil {
		t.Fatal(err)
	}
	got, err := g.AsVariable(single)
	if err != nil {
		t.Fatal(err)
	}
	if got != single.Output(0) {
		t.Errorf("got %s but want the output of %s", got, single)
	}
	double, err := copyOp{numOutputs: 2}.Make(g, x)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.AsVariable(double); !errors.Is(err, fmterr.InvalidValue) {
		t.Errorf("got error %v but want an invalid value", err)
	}
	other := ir.NewGraph().NewInput(ir.Scalar(irkind.Float32), "y")
	if _, err := g.AsVariable(other); !errors.Is(err, fmterr.InvalidValue) {
		t.Errorf("got error %v but want an invalid value", err)
	}
	if _, err := g.AsVariable("x"); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want a type mismatch", err)
	}
}

func TestOwnership(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Float64), "x")
	app, err := copyOp{numOutputs: 3}.Make(g, x)
	if err != nil {
		t.Fatal(err)
	}
	for i, out := range app.Outputs() {
		if out.Owner() != app || out.Index() != i {
			t.Errorf("output %d: got owner %v index %d", i, out.Owner(), out.Index())
		}
		if !out.Type().Equal(x.Type()) {
			t.Errorf("output %d: got type %s but want %s", i, out.Type(), x.Type())
		}
	}
	if x.Owner() != nil {
		t.Errorf("input %s has an owner", x)
	}
	if err := g.Check(); err != nil {
		t.Errorf("invalid graph: %+v", err)
	}
	if got, want := g.NumApplies(), 1; got != want {
		t.Errorf("got %d applications but want %d", got, want)
	}
	if got, want := g.NumVariables(), 4; got != want {
		t.Errorf("got %d variables but want %d", got, want)
	}
}

func TestGetConstantValue(t *testing.T) {
	g := ir.NewGraph()
	c, err := g.Constant([]int32{4})
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := ir.Call(g, copyOp{numOutputs: 1}, c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ir.GetConstantInt(wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Errorf("got %d but want 4", got)
	}
	x := g.NewInput(ir.Scalar(irkind.Int32), "x")
	for _, v := range []*ir.Variable{x, mustCall(t, g, copyOp{numOutputs: 1}, x)} {
		if _, err := ir.GetConstantValue(v); !errors.Is(err, fmterr.ValueUnavailable) {
			t.Errorf("%s: got error %v but want a value unavailable", v, err)
		}
	}
	vec, err := g.Constant([]float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ir.GetConstantValue(vec); !errors.Is(err, fmterr.ValueUnavailable) {
		t.Errorf("got error %v but want a value unavailable", err)
	}
}

func mustCall(t *testing.T, g *ir.Graph, op ir.Op, args ...any) *ir.Variable {
	t.Helper()
	v, err := ir.Call(g, op, args...)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestGetVectorLength(t *testing.T) {
	g := ir.NewGraph()
	c, err := g.Constant([]int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if n, err := ir.GetVectorLength(c); err != nil || n != 3 {
		t.Errorf("got %d, %v but want 3", n, err)
	}
	x := g.NewInput(ir.Vector(irkind.Int64), "x")
	if _, err := ir.GetVectorLength(x); !errors.Is(err, fmterr.ValueUnavailable) {
		t.Errorf("got error %v but want a value unavailable", err)
	}
	m := g.NewInput(ir.Matrix(irkind.Int64), "m")
	if _, err := ir.GetVectorLength(m); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want a type mismatch", err)
	}
}

func TestMemo(t *testing.T) {
	g := ir.NewGraph()
	builds := 0
	build := func() ir.Op {
		builds++
		return copyOp{numOutputs: 1}
	}
	a := g.Memo().Load("copy1", build)
	b := g.Memo().Load("copy1", build)
	if !ir.SameOp(a, b) || builds != 1 {
		t.Errorf("memo built the op %d times", builds)
	}
	g.Memo().Load("copy2", func() ir.Op { return copyOp{numOutputs: 2} })
	var keys []string
	for k := range g.Memo().All() {
		keys = append(keys, k)
	}
	if want := []string{"copy1", "copy2"}; !cmp.Equal(keys, want) {
		t.Errorf("got keys %v but want %v", keys, want)
	}
}

func TestAliasing(t *testing.T) {
	a := ir.Aliasing{Destroy: map[int][]int{0: {0}}, View: map[int][]int{1: {2}}}
	if !a.Destroyed(0) || a.Destroyed(2) {
		t.Errorf("%v: wrong destroyed inputs", a)
	}
	if got, want := a.String(), "view={1:[2]} destroy={0:[0]}"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if !(ir.Aliasing{}).Empty() {
		t.Errorf("empty aliasing not empty")
	}
}
