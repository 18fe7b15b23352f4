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

package ir

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
)

type (
	// Op is an operation: a pure function from input variables to output variables.
	// An Op only holds parameters fixed at construction (for example an axis list).
	// Two Ops representing the same operation have the same key.
	Op interface {
		// Key identifies the operation structurally.
		Key() string

		// Make validates the arguments and builds an application of the Op.
		// Arguments are coerced to variables with Graph.AsVariable.
		Make(g *Graph, args ...any) (*Apply, error)

		// Perform computes the outputs of an application given concrete inputs.
		Perform(app *Apply, inputs []*values.Array) ([]*values.Array, error)

		// Grad returns the gradients of the inputs of an application given the
		// gradients of its outputs. A nil gradient means that the input has no
		// gradient (for example integer indices). Ops which should have a
		// gradient but do not implement it return an Unsupported error.
		Grad(app *Apply, outGrads []*Variable) ([]*Variable, error)

		// InferShape returns the shapes of the outputs given the shapes of the inputs,
		// without executing the operation.
		InferShape(app *Apply, inputs []Shape) ([]Shape, error)

		// Aliasing declares the outputs sharing storage with inputs.
		Aliasing() Aliasing

		// ConstantSource returns the input holding the same scalar value as
		// the output for operations which do not change values (broadcast
		// pattern changes, fills, copies).
		ConstantSource(app *Apply) (*Variable, bool)

		// VectorLength returns the static length of the vector computed by an
		// application, if known.
		VectorLength(app *Apply) (int, bool)

		fmt.Stringer
	}

	// Aliasing maps an output index to the input indices it shares storage with.
	Aliasing struct {
		// View maps outputs to inputs they are a view of.
		// A view must not be modified independently of its source.
		View map[int][]int
		// Destroy maps outputs to inputs they overwrite.
		// A destroyed input must not be read after the application.
		Destroy map[int][]int
	}

	// BaseOp provides default implementations of the optional methods of Op.
	// It is meant to be embedded in Op implementations.
	BaseOp struct{}
)

// Grad returns an Unsupported error.
func (BaseOp) Grad(app *Apply, outGrads []*Variable) ([]*Variable, error) {
	return nil, fmterr.Errorf(fmterr.Unsupported, "%s does not define a gradient", app.Op())
}

// InferShape returns a ValueUnavailable error.
func (BaseOp) InferShape(app *Apply, inputs []Shape) ([]Shape, error) {
	return nil, fmterr.Errorf(fmterr.ValueUnavailable, "%s does not infer shapes", app.Op())
}

// Aliasing returns an empty aliasing declaration.
func (BaseOp) Aliasing() Aliasing {
	return Aliasing{}
}

// ConstantSource returns false.
func (BaseOp) ConstantSource(*Apply) (*Variable, bool) {
	return nil, false
}

// VectorLength returns false.
func (BaseOp) VectorLength(*Apply) (int, bool) {
	return 0, false
}

// SameOp returns true if two Ops represent the same operation.
func SameOp(a, b Op) bool {
	return a.Key() == b.Key()
}

// Empty returns true if no output is aliased.
func (a Aliasing) Empty() bool {
	return len(a.View) == 0 && len(a.Destroy) == 0
}

// Destroyed returns true if an input is destroyed by some output.
func (a Aliasing) Destroyed(input int) bool {
	for _, inputs := range a.Destroy {
		if slices.Contains(inputs, input) {
			return true
		}
	}
	return false
}

func aliasMapString(m map[int][]int) string {
	var s []string
	for _, out := range slices.Sorted(maps.Keys(m)) {
		s = append(s, fmt.Sprintf("%d:%v", out, m[out]))
	}
	return "{" + strings.Join(s, ", ") + "}"
}

func (a Aliasing) String() string {
	return fmt.Sprintf("view=%s destroy=%s", aliasMapString(a.View), aliasMapString(a.Destroy))
}

// UnknownDim is the extent of a dimension that cannot be inferred statically.
const UnknownDim = -1

// Shape lists the extents of the dimensions of a tensor.
// An extent can be UnknownDim.
type Shape []int

// Known returns true if every extent is known.
func (s Shape) Known() bool {
	return !slices.Contains(s, UnknownDim)
}

// Size returns the number of elements, or UnknownDim.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		if d == UnknownDim {
			return UnknownDim
		}
		n *= d
	}
	return n
}

// UnknownShape returns a shape of a given rank where all extents are unknown.
func UnknownShape(rank int) Shape {
	s := make(Shape, rank)
	for i := range s {
		s[i] = UnknownDim
	}
	return s
}

// ShapeOfType returns the shape known from a type: broadcastable dimensions
// have an extent of 1, others are unknown.
func ShapeOfType(tp Type) Shape {
	s := UnknownShape(tp.Rank())
	for i, bc := range tp.Pattern() {
		if bc {
			s[i] = 1
		}
	}
	return s
}

// Output returns the single output of an application.
// It is meant to wrap calls to Op.Make.
func Output(app *Apply, err error) (*Variable, error) {
	if err != nil {
		return nil, err
	}
	if len(app.outputs) != 1 {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s has %d outputs", app, len(app.outputs))
	}
	return app.outputs[0], nil
}

// Call builds an application of an Op and returns its single output.
func Call(g *Graph, op Op, args ...any) (*Variable, error) {
	return Output(op.Make(g, args...))
}
