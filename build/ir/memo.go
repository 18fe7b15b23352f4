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
	"iter"

	"github.com/gx-org/tensorir/base/ordered"
)

// Memo is a deduplication table of Ops keyed by their exact parameters.
// An Op built for a given key is reused for the lifetime of the graph:
// entries are never evicted.
type Memo struct {
	ops *ordered.Map[string, Op]
}

func newMemo() *Memo {
	return &Memo{ops: ordered.NewMap[string, Op]()}
}

// Load returns the Op stored for a key, building it with build if the key is
// not in the table yet.
func (m *Memo) Load(key string, build func() Op) Op {
	op, _ := m.ops.LoadOrStore(key, build)
	return op
}

// Len returns the number of Ops in the table.
func (m *Memo) Len() int {
	return m.ops.Len()
}

// All returns an iterator over the Ops of the table in insertion order.
func (m *Memo) All() iter.Seq2[string, Op] {
	return m.ops.All()
}
