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

package subtensor_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/graph"
	"github.com/gx-org/tensorir/stdlib/elemwise"
	"github.com/gx-org/tensorir/stdlib/math/grad/testgrad"
	"github.com/gx-org/tensorir/stdlib/subtensor"
	"go.uber.org/multierr"
)

func eval(t *testing.T, out *ir.Variable, feeds map[*ir.Variable]any) *values.Array {
	t.Helper()
	val, err := graph.Eval(out, feeds)
	if err != nil {
		t.Fatalf("cannot evaluate %s: %+v", out, err)
	}
	return val
}

func TestReadWriteDuality(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Vector(irkind.Float64), "x")
	y := g.NewInput(ir.Scalar(irkind.Float64), "y")
	read, err := subtensor.Get(g, x, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !read.Type().Equal(y.Type()) {
		t.Errorf("got type %s but want %s", read.Type(), y.Type())
	}
	written, err := subtensor.Set(g, x, y, 3)
	if err != nil {
		t.Fatal(err)
	}
	reread, err := subtensor.Get(g, written, 3)
	if err != nil {
		t.Fatal(err)
	}
	feeds := map[*ir.Variable]any{
		x: []float64{0, 1, 2, 3, 4, 5, 6},
		y: 42.0,
	}
	if got := eval(t, reread, feeds); !got.Equal(values.Scalar(42.0)) {
		t.Errorf("x[3] after writing: got %s but want 42", got)
	}
	want := values.FromSlice([]float64{0, 1, 2, 42, 4, 5, 6}, 7)
	if got := eval(t, written, feeds); !got.Equal(want) {
		t.Errorf("got %s but want %s", got, want)
	}
}

func TestSymbolicIndices(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Float32), "x")
	i := g.NewInput(ir.Scalar(irkind.Int64), "i")
	j := g.NewInput(ir.Scalar(irkind.Int32), "j")
	out, err := subtensor.Get(g, x, i, subtensor.Slice{Start: j, Step: 2})
	if err != nil {
		t.Fatal(err)
	}
	app := out.Owner()
	if diff := cmp.Diff([]ir.VarID{x.ID(), i.ID(), j.ID()}, []ir.VarID{app.Input(0).ID(), app.Input(1).ID(), app.Input(2).ID()}); diff != "" {
		t.Errorf("unexpected inputs: %s", diff)
	}
	if got, want := app.Op().String(), "Subtensor{int64, int32::2}"; got != want {
		t.Errorf("got op %s but want %s", got, want)
	}
	got := eval(t, out, map[*ir.Variable]any{
		x: [][]float32{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}},
		i: int64(-1),
		j: int32(1),
	})
	want := values.FromSlice([]float32{6, 8}, 2)
	if !got.Equal(want) {
		t.Errorf("got %s but want %s", got, want)
	}
	// The same index list with other symbolic kinds is another Op.
	k := g.NewInput(ir.Scalar(irkind.Int64), "k")
	other, err := subtensor.Get(g, x, i, subtensor.Slice{Start: k, Step: 2})
	if err != nil {
		t.Fatal(err)
	}
	if ir.SameOp(app.Op(), other.Owner().Op()) {
		t.Errorf("%s and %s should be different ops", app.Op(), other.Owner().Op())
	}
}

func TestPattern(t *testing.T) {
	g := ir.NewGraph()
	tests := []struct {
		tp   ir.Type
		idx  []any
		want ir.BroadcastPattern
	}{
		{tp: ir.Matrix(irkind.Int32), idx: []any{1}, want: ir.BroadcastPattern{false}},
		{tp: ir.Matrix(irkind.Int32), idx: []any{subtensor.Range(1, 3)}, want: ir.BroadcastPattern{false, false}},
		{tp: ir.Row(irkind.Int32), idx: []any{subtensor.All, 0}, want: ir.BroadcastPattern{true}},
		{tp: ir.Col(irkind.Int32), idx: []any{0}, want: ir.BroadcastPattern{true}},
		{tp: ir.Tensor3(irkind.Int32), idx: []any{subtensor.All, 2}, want: ir.BroadcastPattern{false, false}},
		{tp: ir.Vector(irkind.Int32), idx: nil, want: ir.BroadcastPattern{false}},
	}
	for i, test := range tests {
		x := g.NewInput(test.tp, "x")
		out, err := subtensor.Get(g, x, test.idx...)
		if err != nil {
			t.Errorf("test %d: %+v", i, err)
			continue
		}
		if !out.Pattern().Equal(test.want) {
			t.Errorf("test %d: got pattern %s but want %s", i, out.Pattern(), test.want)
		}
		if out.Kind() != irkind.Int32 {
			t.Errorf("test %d: got kind %s but want int32", i, out.Kind())
		}
	}
}

func TestNormalization(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Tensor3(irkind.Float64), "x")
	a, err := subtensor.Get(g, x, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := subtensor.Get(g, x, 1, subtensor.All, subtensor.Slice{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Owner().Op() != b.Owner().Op() {
		t.Errorf("trailing full slices should not change the op: got %s and %s", a.Owner().Op(), b.Owner().Op())
	}
	c, err := subtensor.Get(g, x, 1, subtensor.Range(nil, 2))
	if err != nil {
		t.Fatal(err)
	}
	if ir.SameOp(a.Owner().Op(), c.Owner().Op()) {
		t.Errorf("%s and %s should be different ops", a.Owner().Op(), c.Owner().Op())
	}
}

func TestErrors(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Float64), "x")
	f := g.NewInput(ir.Scalar(irkind.Float64), "f")
	t3 := g.NewInput(ir.Tensor3(irkind.Float64), "t3")
	ivec := g.NewInput(ir.Vector(irkind.Int64), "ivec")
	tests := []struct {
		name string
		x    *ir.Variable
		idx  []any
		want fmterr.Kind
	}{
		{name: "too long", x: x, idx: []any{1, 2, 3}, want: fmterr.ShapeMismatch},
		{name: "float index", x: x, idx: []any{f}, want: fmterr.TypeMismatch},
		{name: "float bound", x: x, idx: []any{subtensor.Slice{Stop: f}}, want: fmterr.TypeMismatch},
		{name: "zero step", x: x, idx: []any{subtensor.Slice{Step: 0}, subtensor.Slice{Step: 0}}, want: fmterr.InvalidValue},
		{name: "mixed advanced", x: x, idx: []any{ivec, 1}, want: fmterr.Unsupported},
		{name: "three vectors", x: t3, idx: []any{ivec, ivec, ivec}, want: fmterr.Unsupported},
		{name: "two vectors in a tensor3", x: t3, idx: []any{ivec, ivec}, want: fmterr.Unsupported},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := subtensor.Get(g, test.x, test.idx...)
			if !errors.Is(err, test.want) {
				t.Errorf("got error %v but want %v", err, test.want)
			}
		})
	}
}

func TestAllBadEntriesReported(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Float64), "x")
	f := g.NewInput(ir.Scalar(irkind.Float64), "f")
	_, err := subtensor.Get(g, x, f, subtensor.Slice{Step: 0})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := len(multierr.Errors(errors.Unwrap(err))); got != 2 {
		t.Errorf("got %d errors but want 2: %v", got, err)
	}
	if !errors.Is(err, fmterr.TypeMismatch) || !errors.Is(err, fmterr.InvalidValue) {
		t.Errorf("error %v should report a type mismatch and an invalid value", err)
	}
}

func TestPerform(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Int64), "x")
	feeds := map[*ir.Variable]any{
		x: [][]int64{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}},
	}
	tests := []struct {
		idx  []any
		want *values.Array
	}{
		{idx: []any{1}, want: values.FromSlice([]int64{3, 4, 5}, 3)},
		{idx: []any{-1, 0}, want: values.Scalar[int64](6)},
		{idx: []any{subtensor.All, 2}, want: values.FromSlice([]int64{2, 5, 8}, 3)},
		{idx: []any{subtensor.Slice{Step: -1}}, want: values.FromSlice([]int64{6, 7, 8, 3, 4, 5, 0, 1, 2}, 3, 3)},
		{idx: []any{subtensor.Range(1, nil), subtensor.Range(nil, 2)}, want: values.FromSlice([]int64{3, 4, 6, 7}, 2, 2)},
		{idx: []any{subtensor.Range(5, 10)}, want: values.FromSlice([]int64{}, 0, 3)},
		{idx: []any{[]int{2, 0, 2}}, want: values.FromSlice([]int64{6, 7, 8, 0, 1, 2, 6, 7, 8}, 3, 3)},
		{idx: []any{[]int{0, 2}, []int{1, 0}}, want: values.FromSlice([]int64{1, 6}, 2)},
	}
	for i, test := range tests {
		out, err := subtensor.Get(g, x, test.idx...)
		if err != nil {
			t.Errorf("test %d: %+v", i, err)
			continue
		}
		if got := eval(t, out, feeds); !got.Equal(test.want) {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
	}
}

func TestWrite(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Float64), "x")
	feeds := map[*ir.Variable]any{
		x: [][]float64{{0, 1, 2}, {3, 4, 5}},
	}
	tests := []struct {
		name string
		f    func() (*ir.Variable, error)
		want *values.Array
	}{
		{
			name: "inc row with scalar",
			f: func() (*ir.Variable, error) {
				return subtensor.Inc(g, x, 10, 1)
			},
			want: values.FromSlice([]float64{0, 1, 2, 13, 14, 15}, 2, 3),
		},
		{
			name: "set column",
			f: func() (*ir.Variable, error) {
				return subtensor.Set(g, x, []float64{-1, -2}, subtensor.All, 1)
			},
			want: values.FromSlice([]float64{0, -1, 2, 3, -2, 5}, 2, 3),
		},
		{
			name: "inc element",
			f: func() (*ir.Variable, error) {
				return subtensor.Inc(g, x, 0.5, 0, -1)
			},
			want: values.FromSlice([]float64{0, 1, 2.5, 3, 4, 5}, 2, 3),
		},
		{
			name: "inc repeated rows",
			f: func() (*ir.Variable, error) {
				return subtensor.Inc(g, x, 1, []int{1, 1, 0})
			},
			want: values.FromSlice([]float64{1, 2, 3, 5, 6, 7}, 2, 3),
		},
		{
			name: "set points",
			f: func() (*ir.Variable, error) {
				return subtensor.Set(g, x, []float64{7, 8}, []int{0, 1}, []int{2, 0})
			},
			want: values.FromSlice([]float64{0, 1, 7, 8, 4, 5}, 2, 3),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := test.f()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !out.Type().Equal(x.Type()) {
				t.Errorf("got type %s but want %s", out.Type(), x.Type())
			}
			if got := eval(t, out, feeds); !got.Equal(test.want) {
				t.Errorf("got %s but want %s", got, test.want)
			}
		})
	}
}

func TestWriteErrors(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Matrix(irkind.Int32), "x")
	if _, err := subtensor.Set(g, x, g.NewInput(ir.Matrix(irkind.Int32), "y"), 0); !errors.Is(err, fmterr.ShapeMismatch) {
		t.Errorf("got error %v but want %v", err, fmterr.ShapeMismatch)
	}
	if _, err := subtensor.Inc(g, x, g.NewInput(ir.Scalar(irkind.Float64), "y"), 0); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want %v", err, fmterr.TypeMismatch)
	}
}

func TestInplace(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Vector(irkind.Float64), "x")
	y, err := elemwise.Mul(g, x, 2)
	if err != nil {
		t.Fatal(err)
	}
	written, err := subtensor.SetInplace(g, y, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if aliasing := written.Owner().Op().Aliasing(); !aliasing.Destroyed(0) {
		t.Errorf("%s should destroy its first input: got aliasing %s", written.Owner().Op(), aliasing)
	}
	// y is read after being overwritten: the runner works on a copy.
	sum, err := elemwise.Add(g, y, written)
	if err != nil {
		t.Fatal(err)
	}
	got := eval(t, sum, map[*ir.Variable]any{x: []float64{1, 2, 3}})
	want := values.FromSlice([]float64{2, 8, 12}, 3)
	if !got.Equal(want) {
		t.Errorf("got %s but want %s", got, want)
	}
	read, err := subtensor.Get(g, x, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := read.Owner().Op().Aliasing().String(), "view={0:[0]} destroy={}"; got != want {
		t.Errorf("got aliasing %s but want %s", got, want)
	}
}

func TestInferShape(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Tensor3(irkind.Float64), "x")
	i := g.NewInput(ir.Scalar(irkind.Int64), "i")
	tests := []struct {
		idx  []any
		want ir.Shape
	}{
		{idx: []any{1}, want: ir.Shape{4, 5}},
		{idx: []any{subtensor.Range(1, nil)}, want: ir.Shape{2, 4, 5}},
		{idx: []any{subtensor.All, subtensor.Slice{Step: 2}}, want: ir.Shape{3, 2, 5}},
		{idx: []any{subtensor.Range(i, nil), 0}, want: ir.Shape{ir.UnknownDim, 5}},
		{idx: []any{[]int{0, 0, 1, 2}}, want: ir.Shape{4, 4, 5}},
	}
	for n, test := range tests {
		out, err := subtensor.Get(g, x, test.idx...)
		if err != nil {
			t.Fatal(err)
		}
		app := out.Owner()
		shapes := []ir.Shape{{3, 4, 5}}
		for _, in := range app.Inputs()[1:] {
			shapes = append(shapes, ir.ShapeOfType(in.Type()))
			if in.IsConstant() {
				shapes[len(shapes)-1] = ir.Shape(in.Value().Dims())
			}
		}
		got, err := app.Op().InferShape(app, shapes)
		if err != nil {
			t.Fatalf("test %d: %+v", n, err)
		}
		if diff := cmp.Diff(test.want, got[0]); diff != "" {
			t.Errorf("test %d: unexpected shape (-want +got):\n%s", n, diff)
		}
	}
}

func TestGrad(t *testing.T) {
	tests := []struct {
		name   string
		f      testgrad.BuildFunc
		points []*values.Array
	}{
		{
			name: "read row",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return subtensor.Get(g, ins[0], 1)
			},
			points: []*values.Array{values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2)},
		},
		{
			name: "read strided slice",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return subtensor.Get(g, ins[0], subtensor.Slice{Step: -2}, 0)
			},
			points: []*values.Array{values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2)},
		},
		{
			name: "inc",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				out, err := subtensor.Inc(g, ins[0], ins[1], subtensor.Range(1, nil))
				if err != nil {
					return nil, err
				}
				return elemwise.Sqr(g, out)
			},
			points: []*values.Array{
				values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
				values.FromSlice([]float64{0.5, -0.5}, 2),
			},
		},
		{
			name: "set",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				out, err := subtensor.Set(g, ins[0], ins[1], 0)
				if err != nil {
					return nil, err
				}
				return elemwise.Sqr(g, out)
			},
			points: []*values.Array{
				values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
				values.FromSlice([]float64{0.5, -0.5}, 2),
			},
		},
		{
			name: "advanced rows",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return subtensor.Get(g, ins[0], ins[1])
			},
			points: []*values.Array{
				values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
				values.FromSlice([]int64{2, 0, 2}, 3),
			},
		},
		{
			name: "advanced points",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return subtensor.Get(g, ins[0], ins[1], ins[2])
			},
			points: []*values.Array{
				values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
				values.FromSlice([]int64{2, 0}, 2),
				values.FromSlice([]int64{1, 1}, 2),
			},
		},
		{
			name: "advanced inc rows",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				out, err := subtensor.Inc(g, ins[0], ins[1], []int{1, 1})
				if err != nil {
					return nil, err
				}
				return elemwise.Sqr(g, out)
			},
			points: []*values.Array{
				values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
				values.FromSlice([]float64{0.5, -0.5}, 2),
			},
		},
		{
			name: "advanced set points",
			f: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				out, err := subtensor.Set(g, ins[0], ins[1], []int{0, 2}, []int{1, 0})
				if err != nil {
					return nil, err
				}
				return elemwise.Sqr(g, out)
			},
			points: []*values.Array{
				values.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
				values.FromSlice([]float64{0.5, -0.5}, 2),
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := testgrad.VerifyGrad(test.f, test.points); err != nil {
				t.Errorf("%+v", err)
			}
		})
	}
}
