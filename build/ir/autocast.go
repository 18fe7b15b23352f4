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
	"slices"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// Policy chooses the kind of Go int and float64 literals converted to constants.
type Policy struct {
	// Ints lists the candidate kinds of integer literals in order of preference.
	// The first kind representing every element exactly is chosen.
	Ints []irkind.Kind
	// Floats lists the candidate kinds of float literals in order of preference.
	// The first kind representing every element exactly is chosen,
	// or the last kind if none does.
	Floats []irkind.Kind
	// FloatX is the global float precision. If it is float32 and float32 is a
	// candidate, float literals are always converted to float32.
	FloatX irkind.Kind
}

// DefaultPolicy returns the default autocast policy.
func DefaultPolicy() Policy {
	return Policy{
		Ints:   []irkind.Kind{irkind.Int8, irkind.Int16, irkind.Int32, irkind.Int64},
		Floats: []irkind.Kind{irkind.Float32, irkind.Float64},
		FloatX: irkind.Float64,
	}
}

func (p Policy) clone() Policy {
	return Policy{
		Ints:   slices.Clone(p.Ints),
		Floats: slices.Clone(p.Floats),
		FloatX: p.FloatX,
	}
}

// Autocast converts an array built from a Go literal to the kind chosen by the policy.
// Arrays of other kinds than int64 and float64 are returned unchanged.
func (p Policy) Autocast(arr *values.Array) (*values.Array, error) {
	switch arr.Kind() {
	case irkind.Int64:
		for _, k := range p.Ints {
			if arr.ExactlyRepresentedBy(k) {
				return arr.Cast(k)
			}
		}
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "cannot represent %s exactly with any of %v", arr, p.Ints)
	case irkind.Float64:
		if len(p.Floats) == 0 {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "no kind available to convert %s", arr)
		}
		if p.FloatX == irkind.Float32 && slices.Contains(p.Floats, irkind.Float32) {
			return arr.Cast(irkind.Float32)
		}
		for _, k := range p.Floats {
			if arr.ExactlyRepresentedBy(k) {
				return arr.Cast(k)
			}
		}
		return arr.Cast(p.Floats[len(p.Floats)-1])
	}
	return arr, nil
}

// Policy returns the autocast policy currently active.
func (g *Graph) Policy() Policy {
	return g.policies[len(g.policies)-1].clone()
}

// FloatX returns the global float precision of the graph.
func (g *Graph) FloatX() irkind.Kind {
	return g.policies[len(g.policies)-1].FloatX
}

// PushAutocastFloat installs a policy where float literals are converted to
// the given kinds. The function returned restores the previous policy and
// must be called, typically with defer:
//
//	defer g.PushAutocastFloat(irkind.Float64)()
func (g *Graph) PushAutocastFloat(kinds ...irkind.Kind) (restore func()) {
	depth := len(g.policies)
	policy := g.Policy()
	policy.Floats = slices.Clone(kinds)
	g.policies = append(g.policies, policy)
	return func() {
		if len(g.policies) > depth {
			g.policies = g.policies[:depth]
		}
	}
}

// WithAutocastFloat calls f with float literals converted to the given kinds.
// The previous policy is restored when f returns, fails, or panics.
func (g *Graph) WithAutocastFloat(kinds []irkind.Kind, f func() error) error {
	defer g.PushAutocastFloat(kinds...)()
	return f()
}
