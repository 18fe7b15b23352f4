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

package math_test

import (
	"errors"
	"testing"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/graph"
	"github.com/gx-org/tensorir/stdlib/math"
	"github.com/gx-org/tensorir/stdlib/math/grad/testgrad"
)

func TestPerform(t *testing.T) {
	g := ir.NewGraph()
	ints := g.NewInput(ir.Vector(irkind.Int32), "ints")
	signed := g.NewInput(ir.Vector(irkind.Int8), "signed")
	floats := g.NewInput(ir.Vector(irkind.Float64), "floats")
	exps := g.NewInput(ir.Vector(irkind.Float64), "exps")
	feeds := map[*ir.Variable]any{
		ints:   []int32{4, 9},
		signed: []int8{-3, 0, 3},
		floats: []float64{-1.5, 2},
		exps:   []float64{2, 0.5},
	}
	tests := []struct {
		name  string
		build func() (*ir.Variable, error)
		want  *values.Array
	}{
		{
			name:  "sqrt of integers",
			build: func() (*ir.Variable, error) { return math.Sqrt(g, ints) },
			want:  values.FromSlice([]float64{2, 3}, 2),
		},
		{
			name:  "abs",
			build: func() (*ir.Variable, error) { return math.Abs(g, floats) },
			want:  values.FromSlice([]float64{1.5, 2}, 2),
		},
		{
			name:  "abs of integers",
			build: func() (*ir.Variable, error) { return math.Abs(g, signed) },
			want:  values.FromSlice([]int8{3, 0, 3}, 3),
		},
		{
			name:  "sgn",
			build: func() (*ir.Variable, error) { return math.Sgn(g, signed) },
			want:  values.FromSlice([]int8{-1, 0, 1}, 3),
		},
		{
			name:  "pow",
			build: func() (*ir.Variable, error) { return math.Pow(g, ints, exps) },
			want:  values.FromSlice([]float64{16, 3}, 2),
		},
		{
			name:  "maximum",
			build: func() (*ir.Variable, error) { return math.Maximum(g, floats, exps) },
			want:  values.FromSlice([]float64{2, 2}, 2),
		},
		{
			name:  "minimum",
			build: func() (*ir.Variable, error) { return math.Minimum(g, ints, exps) },
			want:  values.FromSlice([]float64{2, 0.5}, 2),
		},
		{
			name:  "eq",
			build: func() (*ir.Variable, error) { return math.Eq(g, floats, exps) },
			want:  values.FromSlice([]float64{0, 0}, 2),
		},
		{
			name:  "eq broadcast",
			build: func() (*ir.Variable, error) { return math.Eq(g, signed, 0) },
			want:  values.FromSlice([]int8{0, 1, 0}, 3),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := test.build()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			got, err := graph.Eval(out, feeds)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !got.Equal(test.want) {
				t.Errorf("got %s but want %s", got, test.want)
			}
		})
	}
}

func TestOutKind(t *testing.T) {
	g := ir.NewGraph(ir.WithFloatX(irkind.Float32))
	x := g.NewInput(ir.Matrix(irkind.Uint16), "x")
	out, err := math.Sqrt(g, x)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := out.Kind(), irkind.Float32; got != want {
		t.Errorf("got kind %s but want %s", got, want)
	}
	if got, want := out.Rank(), 2; got != want {
		t.Errorf("got rank %d but want %d", got, want)
	}

	c := g.NewInput(ir.Vector(irkind.Complex64), "c")
	for _, build := range []func() (*ir.Variable, error){
		func() (*ir.Variable, error) { return math.Abs(g, c) },
		func() (*ir.Variable, error) { return math.Sgn(g, c) },
		func() (*ir.Variable, error) { return math.Maximum(g, c, x) },
		func() (*ir.Variable, error) { return math.Minimum(g, x, c) },
	} {
		if _, err := build(); !errors.Is(err, fmterr.TypeMismatch) {
			t.Errorf("got error %v but want %v", err, fmterr.TypeMismatch)
		}
	}
	if _, err := math.Eq(g, c, c); err != nil {
		t.Errorf("complex equality: %+v", err)
	}
}

func TestMemo(t *testing.T) {
	g := ir.NewGraph()
	x := g.NewInput(ir.Vector(irkind.Float64), "x")
	y := g.NewInput(ir.Vector(irkind.Float64), "y")
	a, err := math.Maximum(g, x, y)
	if err != nil {
		t.Fatal(err)
	}
	b, err := math.Maximum(g, y, x)
	if err != nil {
		t.Fatal(err)
	}
	c, err := math.Minimum(g, x, y)
	if err != nil {
		t.Fatal(err)
	}
	if a.Owner().Op() != b.Owner().Op() {
		t.Errorf("maximum should be built by a single op")
	}
	if a.Owner().Op() == c.Owner().Op() {
		t.Errorf("maximum and minimum should be different ops")
	}
}

func TestGrad(t *testing.T) {
	vec := func(vals ...float64) *values.Array {
		return values.FromSlice(vals, len(vals))
	}
	tests := []struct {
		name   string
		build  testgrad.BuildFunc
		points []*values.Array
	}{
		{
			name: "sqrt",
			build: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return math.Sqrt(g, ins[0])
			},
			points: []*values.Array{vec(0.5, 2, 9)},
		},
		{
			name: "abs",
			build: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return math.Abs(g, ins[0])
			},
			points: []*values.Array{vec(-1.5, 2, -0.25)},
		},
		{
			name: "pow",
			build: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return math.Pow(g, ins[0], ins[1])
			},
			points: []*values.Array{vec(0.5, 1.5, 2), vec(2, -1, 0.5)},
		},
		{
			name: "maximum",
			build: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return math.Maximum(g, ins[0], ins[1])
			},
			points: []*values.Array{vec(1, -2, 3), vec(0, 1, 4)},
		},
		{
			name: "minimum with broadcast",
			build: func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error) {
				return math.Minimum(g, ins[0], ins[1])
			},
			points: []*values.Array{values.FromSlice([]float64{1, -2, 3, 0.5, 2, -1}, 2, 3), vec(0, 1, 4)},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := testgrad.VerifyGrad(test.build, test.points); err != nil {
				t.Errorf("%+v", err)
			}
		})
	}
}
