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

package num_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/graph"
	"github.com/gx-org/tensorir/stdlib/math/grad/testgrad"
	"github.com/gx-org/tensorir/stdlib/num"
)

func eval(t *testing.T, out *ir.Variable, feeds map[*ir.Variable]any) *values.Array {
	t.Helper()
	val, err := graph.Eval(out, feeds)
	if err != nil {
		t.Fatalf("cannot evaluate %s: %+v", out, err)
	}
	return val
}

func TestDot(t *testing.T) {
	g := ir.NewGraph()
	v := g.NewInput(ir.Vector(irkind.Float64), "v")
	w := g.NewInput(ir.Vector(irkind.Float64), "w")
	m := g.NewInput(ir.Matrix(irkind.Float64), "m")
	ints := g.NewInput(ir.Vector(irkind.Int32), "ints")
	feeds := map[*ir.Variable]any{
		v:    []float64{1, 2},
		w:    []float64{3, 4},
		m:    [][]float64{{1, 2}, {3, 4}},
		ints: []int32{1, -1},
	}
	tests := []struct {
		name string
		x, y *ir.Variable
		want *values.Array
	}{
		{name: "vector vector", x: v, y: w, want: values.Scalar(11.0)},
		{name: "matrix vector", x: m, y: v, want: values.FromSlice([]float64{5, 11}, 2)},
		{name: "vector matrix", x: v, y: m, want: values.FromSlice([]float64{7, 10}, 2)},
		{name: "matrix matrix", x: m, y: m, want: values.FromSlice([]float64{7, 10, 15, 22}, 2, 2)},
		{name: "mixed kinds", x: ints, y: w, want: values.Scalar(-1.0)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := num.Dot(g, test.x, test.y)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if got := eval(t, out, feeds); !got.Equal(test.want) {
				t.Errorf("got %s but want %s", got, test.want)
			}
		})
	}

	s := g.NewInput(ir.Scalar(irkind.Float64), "s")
	t3 := g.NewInput(ir.Tensor3(irkind.Float64), "t3")
	for _, y := range []*ir.Variable{s, t3} {
		if _, err := num.Dot(g, m, y); !errors.Is(err, fmterr.Unsupported) {
			t.Errorf("dot of %s and %s: got error %v but want %v", m.Type(), y.Type(), err, fmterr.Unsupported)
		}
	}
}

func TestDotPattern(t *testing.T) {
	g := ir.NewGraph()
	row := g.NewInput(ir.Row(irkind.Float32), "row")
	col := g.NewInput(ir.Col(irkind.Float32), "col")
	out, err := num.Dot(g, col, row)
	if err != nil {
		t.Fatal(err)
	}
	if want := (ir.BroadcastPattern{false, false}); !out.Pattern().Equal(want) {
		t.Errorf("got pattern %s but want %s", out.Pattern(), want)
	}
	out, err = num.Dot(g, row, col)
	if err != nil {
		t.Fatal(err)
	}
	if want := (ir.BroadcastPattern{true, true}); !out.Pattern().Equal(want) {
		t.Errorf("got pattern %s but want %s", out.Pattern(), want)
	}
	app := out.Owner()
	shape, err := app.Op().InferShape(app, []ir.Shape{{1, 4}, {4, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ir.Shape{1, 1}, shape[0]); diff != "" {
		t.Errorf("unexpected shape (-want +got):\n%s", diff)
	}
}

func TestOuter(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Vector(irkind.Int64), "x")
	y := g.NewInput(ir.Vector(irkind.Int64), "y")
	out, err := num.Outer(g, x, y)
	if err != nil {
		t.Fatal(err)
	}
	got := eval(t, out, map[*ir.Variable]any{
		x: []int64{1, 2},
		y: []int64{3, 4, 5},
	})
	want := values.FromSlice([]int64{3, 4, 5, 6, 8, 10}, 2, 3)
	if !got.Equal(want) {
		t.Errorf("got %s but want %s", got, want)
	}
	if _, err := num.Outer(g, out, y); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want %v", err, fmterr.TypeMismatch)
	}
}

func TestARange(t *testing.T) {
	g := ir.NewGraph()
	tests := []struct {
		start, stop, step any
		kind              irkind.Kind
		want              *values.Array
	}{
		{start: 0, stop: 5, step: 1, kind: irkind.Int64, want: values.FromSlice([]int64{0, 1, 2, 3, 4}, 5)},
		{start: 5, stop: 0, step: -2, kind: irkind.Int32, want: values.FromSlice([]int32{5, 3, 1}, 3)},
		{start: 0, stop: 1, step: 0.25, kind: irkind.Float32, want: values.FromSlice([]float32{0, 0.25, 0.5, 0.75}, 4)},
		{start: 3, stop: 1, step: 1, kind: irkind.Float64, want: values.FromSlice([]float64{}, 0)},
	}
	for i, test := range tests {
		out, err := num.ARange(g, test.start, test.stop, test.step, test.kind)
		if err != nil {
			t.Fatalf("test %d: %+v", i, err)
		}
		n, err := ir.GetVectorLength(out)
		if err != nil {
			t.Fatalf("test %d: %+v", i, err)
		}
		if n != test.want.Size() {
			t.Errorf("test %d: got static length %d but want %d", i, n, test.want.Size())
		}
		if got := eval(t, out, nil); !got.Equal(test.want) {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
	}

	a, err := num.ARange(g, 0, 10, 2, irkind.Int16)
	if err != nil {
		t.Fatal(err)
	}
	b, err := num.ARange(g, 1, 3, 1, irkind.Int16)
	if err != nil {
		t.Fatal(err)
	}
	c, err := num.ARange(g, 1, 3, 1, irkind.Uint8)
	if err != nil {
		t.Fatal(err)
	}
	if a.Owner().Op() != b.Owner().Op() {
		t.Errorf("ranges of the same kind should share an op: got %s and %s", a.Owner().Op(), b.Owner().Op())
	}
	if a.Owner().Op() == c.Owner().Op() {
		t.Errorf("ranges of different kinds should not share an op")
	}

	stop := g.NewInput(ir.Scalar(irkind.Int64), "stop")
	sym, err := num.ARange(g, 0, stop, 1, irkind.Int64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ir.GetVectorLength(sym); !errors.Is(err, fmterr.ValueUnavailable) {
		t.Errorf("got error %v but want %v", err, fmterr.ValueUnavailable)
	}
	if got := eval(t, sym, map[*ir.Variable]any{stop: int64(3)}); !got.Equal(values.FromSlice([]int64{0, 1, 2}, 3)) {
		t.Errorf("got %s but want [0 1 2]", got)
	}

	if _, err := num.ARange(g, 0, 1, 0, irkind.Float64); !errors.Is(err, fmterr.InvalidValue) {
		t.Errorf("got error %v but want %v", err, fmterr.InvalidValue)
	}
	if _, err := num.ARange(g, 0, 1, 1, irkind.Complex64); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want %v", err, fmterr.TypeMismatch)
	}
}

func TestEye(t *testing.T) {
	g := ir.NewGraph()
	tests := []struct {
		n, m, k int
		want    *values.Array
	}{
		{n: 2, m: 2, k: 0, want: values.FromSlice([]float32{1, 0, 0, 1}, 2, 2)},
		{n: 2, m: 3, k: 1, want: values.FromSlice([]float32{0, 1, 0, 0, 0, 1}, 2, 3)},
		{n: 3, m: 2, k: -1, want: values.FromSlice([]float32{0, 0, 1, 0, 0, 1}, 3, 2)},
	}
	for i, test := range tests {
		out, err := num.Eye(g, test.n, test.m, test.k, irkind.Float32)
		if err != nil {
			t.Fatalf("test %d: %+v", i, err)
		}
		if got := eval(t, out, nil); !got.Equal(test.want) {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
		app := out.Owner()
		shape, err := app.Op().InferShape(app, []ir.Shape{{}, {}, {}})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(ir.Shape{test.n, test.m}, shape[0]); diff != "" {
			t.Errorf("test %d: unexpected shape (-want +got):\n%s", i, diff)
		}
	}
	if _, err := num.Eye(g, 2.5, 2, 0, irkind.Float32); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want %v", err, fmterr.TypeMismatch)
	}
}

func TestGrad(t *testing.T) {
	vec := func(vals ...float64) *values.Array {
		return values.FromSlice(vals, len(vals))
	}
	mat := values.FromSlice([]float64{1, -2, 0.5, 3, 1.5, -1}, 2, 3)
	matT := values.FromSlice([]float64{1, -2, 0.5, 3, 1.5, -1}, 3, 2)
	tests := []struct {
		name   string
		points []*values.Array
	}{
		{name: "vector vector", points: []*values.Array{vec(1, 2, 3), vec(-1, 0.5, 2)}},
		{name: "matrix vector", points: []*values.Array{mat, vec(-1, 0.5, 2)}},
		{name: "vector matrix", points: []*values.Array{vec(0.5, -1), mat}},
		{name: "matrix matrix", points: []*values.Array{mat, matT}},
	}
	dot := func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
		return num.Dot(g, ins[0], ins[1])
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := testgrad.VerifyGrad(dot, test.points); err != nil {
				t.Errorf("%+v", err)
			}
		})
	}
	outer := func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
		return num.Outer(g, ins[0], ins[1])
	}
	if err := testgrad.VerifyGrad(outer, []*values.Array{vec(1, 2), vec(3, -1, 0.5)}); err != nil {
		t.Errorf("outer: %+v", err)
	}
}
