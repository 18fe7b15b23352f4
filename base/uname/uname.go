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

// Package uname provides unique names.
package uname

import "fmt"

// Unique generates unique names.
type Unique struct {
	used map[string]bool
	next map[string]int
}

// New name generator.
func New() *Unique {
	return &Unique{
		used: make(map[string]bool),
		next: make(map[string]int),
	}
}

// Register marks names as already used.
func (n *Unique) Register(names ...string) {
	for _, name := range names {
		n.used[name] = true
	}
}

// Name returns a unique name given a desired base name.
// If the base name is available, it is returned directly.
// Else, the first available suffix _1, _2, ... is appended.
func (n *Unique) Name(root string) string {
	if !n.used[root] {
		n.used[root] = true
		return root
	}
	for {
		n.next[root]++
		name := fmt.Sprintf("%s_%d", root, n.next[root])
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
}
