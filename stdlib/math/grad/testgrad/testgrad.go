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

// Package testgrad provides functions to test gradients against finite differences.
package testgrad

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
	"github.com/gx-org/tensorir/build/ir/irkind"
	"github.com/gx-org/tensorir/golang/backend/graph"
	"github.com/gx-org/tensorir/stdlib/elemwise"
	"github.com/gx-org/tensorir/stdlib/math/grad"
)

// BuildFunc builds the graph of a function given its inputs.
type BuildFunc func(g *ir.Graph, ins []*ir.Variable) (*ir.Variable, error)

type (
	// Option configures the verification of a gradient.
	Option func(*config)

	config struct {
		tolerance   float64
		step        float64
		projections int
		seed        uint64
	}
)

// Tolerance sets the absolute and relative tolerance when comparing gradients.
// The default is 1e-4 for float64 and 1e-2 for float32.
func Tolerance(tol float64) Option {
	return func(cfg *config) {
		cfg.tolerance = tol
	}
}

// Step sets the step of finite differences.
// The default is 1e-7 for float64 and 3e-3 for float32.
func Step(eps float64) Option {
	return func(cfg *config) {
		cfg.step = eps
	}
}

// Projections sets the number of random projections of the output.
func Projections(n int) Option {
	return func(cfg *config) {
		cfg.projections = n
	}
}

// RandomSeed sets the seed of the random projections.
func RandomSeed(seed uint64) Option {
	return func(cfg *config) {
		cfg.seed = seed
	}
}

// defaults returns the tolerance and the step for the least precise
// of a set of kinds.
func defaults(kinds []irkind.Kind) (tol, step float64) {
	for _, kind := range kinds {
		if kind == irkind.Float32 {
			return 1e-2, 3e-3
		}
	}
	return 1e-4, 1e-7
}

// NumericGrad returns the gradient of f at x computed with forward finite
// differences of step eps.
func NumericGrad(f func([]float64) float64, x []float64, eps float64) []float64 {
	return fd.Gradient(nil, f, x, &fd.Settings{
		Formula: fd.Forward,
		Step:    eps,
	})
}

func patternOf(dims []int) ir.BroadcastPattern {
	pattern := make(ir.BroadcastPattern, len(dims))
	for i, d := range dims {
		pattern[i] = d == 1
	}
	return pattern
}

func randomArray(rng *rand.Rand, kind irkind.Kind, dims []int) (*values.Array, error) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = rng.Float64()*2 - 1
	}
	return values.FromFloat64s(kind, vals, dims...)
}

type verifier struct {
	cfg    config
	rng    *rand.Rand
	g      *ir.Graph
	points []*values.Array
	ins    []*ir.Variable
	out    *ir.Variable
}

func (v *verifier) feeds(points []*values.Array) map[*ir.Variable]any {
	feeds := make(map[*ir.Variable]any, len(points))
	for i, in := range v.ins {
		feeds[in] = points[i]
	}
	return feeds
}

// project builds the scalar cost: the sum of the output weighted by a random tensor.
func (v *verifier) project(outDims []int) (*ir.Variable, error) {
	proj, err := randomArray(v.rng, v.out.Kind(), outDims)
	if err != nil {
		return nil, err
	}
	tp, err := ir.TensorOf(v.out.Kind(), patternOf(outDims))
	if err != nil {
		return nil, err
	}
	projVar, err := v.g.NewConstant(tp, proj)
	if err != nil {
		return nil, err
	}
	weighted, err := elemwise.Mul(v.g, v.out, projVar)
	if err != nil {
		return nil, err
	}
	return elemwise.Sum(v.g, weighted)
}

func (v *verifier) numeric(cost *ir.Variable, input int) ([]float64, error) {
	runner, err := graph.Compile(cost)
	if err != nil {
		return nil, err
	}
	point := v.points[input]
	x0, err := point.Float64s()
	if err != nil {
		return nil, err
	}
	var evalErr error
	f := func(x []float64) float64 {
		if evalErr != nil {
			return 0
		}
		arr, err := values.FromFloat64s(point.Kind(), x, point.Dims()...)
		if err != nil {
			evalErr = err
			return 0
		}
		points := append([]*values.Array{}, v.points...)
		points[input] = arr
		outs, err := runner.Run(v.feeds(points))
		if err != nil {
			evalErr = err
			return 0
		}
		vals, err := outs[0].Float64s()
		if err != nil {
			evalErr = err
			return 0
		}
		return vals[0]
	}
	num := NumericGrad(f, x0, v.cfg.step)
	return num, evalErr
}

func compare(input int, analytic, numeric []float64, tol float64) error {
	if len(analytic) != len(numeric) {
		return fmterr.Internalf("input %d: analytic gradient has %d elements but numeric gradient has %d", input, len(analytic), len(numeric))
	}
	for i := range analytic {
		if scalar.EqualWithinAbsOrRel(analytic[i], numeric[i], tol, tol) {
			continue
		}
		return errors.Errorf("input %d: analytic gradient %v does not match numeric gradient %v (element %d: %g != %g, L2 distance %g, tolerance %g)",
			input, analytic, numeric, i, analytic[i], numeric[i], floats.Distance(analytic, numeric, 2), tol)
	}
	return nil
}

func (v *verifier) verifyProjection() error {
	outs, err := graph.Eval(v.out, v.feeds(v.points))
	if err != nil {
		return err
	}
	cost, err := v.project(outs.Dims())
	if err != nil {
		return err
	}
	var wrt []*ir.Variable
	var wrtIndex []int
	for i, in := range v.ins {
		if in.Kind().IsContinuous() {
			wrt = append(wrt, in)
			wrtIndex = append(wrtIndex, i)
		}
	}
	if len(wrt) == 0 {
		return nil
	}
	grads, err := grad.Grad(cost, wrt)
	if err != nil {
		return err
	}
	runner, err := graph.Compile(grads...)
	if err != nil {
		return err
	}
	analytic, err := runner.Run(v.feeds(v.points))
	if err != nil {
		return err
	}
	for i, input := range wrtIndex {
		got, err := analytic[i].Float64s()
		if err != nil {
			return err
		}
		want, err := v.numeric(cost, input)
		if err != nil {
			return err
		}
		if err := compare(input, got, want, v.cfg.tolerance); err != nil {
			return err
		}
	}
	return nil
}

// VerifyGrad checks the gradient of a function built by build against finite
// differences at a point. The output of the function is projected on a random
// tensor to get a scalar cost. Inputs of integer kinds are not differentiated.
func VerifyGrad(build BuildFunc, points []*values.Array, opts ...Option) error {
	kinds := make([]irkind.Kind, len(points))
	for i, point := range points {
		if point.Kind().IsComplex() {
			return fmterr.Errorf(fmterr.Unsupported, "cannot verify the gradient at point %d of kind %s", i, point.Kind())
		}
		kinds[i] = point.Kind()
	}
	tol, step := defaults(kinds)
	v := &verifier{
		cfg: config{
			tolerance:   tol,
			step:        step,
			projections: 1,
			seed:        42,
		},
		g:      ir.NewGraph(),
		points: points,
	}
	for _, opt := range opts {
		opt(&v.cfg)
	}
	v.rng = rand.New(rand.NewPCG(v.cfg.seed, v.cfg.seed))
	v.ins = make([]*ir.Variable, len(points))
	for i, point := range points {
		tp, err := ir.TensorOf(point.Kind(), patternOf(point.Dims()))
		if err != nil {
			return err
		}
		v.ins[i] = v.g.NewInput(tp, fmt.Sprintf("x%d", i))
	}
	var err error
	if v.out, err = build(v.g, v.ins); err != nil {
		return err
	}
	if !v.out.Kind().IsContinuous() || v.out.Kind().IsComplex() {
		return fmterr.Errorf(fmterr.Unsupported, "cannot verify the gradient of %s of kind %s", v.out, v.out.Kind())
	}
	for i := 0; i < v.cfg.projections; i++ {
		if err := v.verifyProjection(); err != nil {
			return fmterr.PrefixWith("projection %d: ", i)(err)
		}
	}
	return nil
}
