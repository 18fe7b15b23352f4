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
)

// Applies returns the applications on which the outputs depend, in
// topological order. Variables for which stop returns true are treated as
// inputs: their owner is not visited. stop can be nil.
//
// Applications are created after their inputs, so the order of IDs is a
// topological order.
func Applies(outputs []*Variable, stop func(*Variable) bool) []*Apply {
	visited := make(map[ApplyID]bool)
	var apps []*Apply
	stack := slices.Clone(outputs)
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v.owner == NoOwner || visited[v.owner] {
			continue
		}
		if stop != nil && stop(v) {
			continue
		}
		app := v.graph.apps[v.owner]
		visited[app.id] = true
		apps = append(apps, app)
		stack = append(stack, app.inputs...)
	}
	slices.SortFunc(apps, func(a, b *Apply) int {
		return int(a.id - b.id)
	})
	return apps
}

// Inputs returns the graph inputs (variables neither computed nor constant)
// on which the outputs depend, ordered by ID.
func Inputs(outputs []*Variable) []*Variable {
	seen := make(map[VarID]bool)
	var inputs []*Variable
	collect := func(v *Variable) {
		if v.owner != NoOwner || v.value != nil || seen[v.id] {
			return
		}
		seen[v.id] = true
		inputs = append(inputs, v)
	}
	for _, out := range outputs {
		collect(out)
	}
	for _, app := range Applies(outputs, nil) {
		for _, in := range app.inputs {
			collect(in)
		}
	}
	slices.SortFunc(inputs, func(a, b *Variable) int {
		return int(a.id - b.id)
	})
	return inputs
}
