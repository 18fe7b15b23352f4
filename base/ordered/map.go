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

// Package ordered provides data structures iterating in insertion order.
package ordered

import "iter"

// Map is a map iterating over its entries in the order in which the keys
// have been first stored.
type Map[K comparable, V any] struct {
	keys []K
	m    map[K]V
}

// NewMap returns a new ordered map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Store a value for a key.
// Storing a value for an existing key does not change the order of the key.
func (m *Map[K, V]) Store(k K, v V) {
	if _, in := m.m[k]; !in {
		m.keys = append(m.keys, k)
	}
	m.m[k] = v
}

// Load returns the value stored for a key.
func (m *Map[K, V]) Load(k K) (V, bool) {
	v, ok := m.m[k]
	return v, ok
}

// LoadOrStore returns the value stored for a key if present.
// Otherwise, it stores and returns the value computed by f.
// The boolean is true if the value was already present.
func (m *Map[K, V]) LoadOrStore(k K, f func() V) (V, bool) {
	if v, ok := m.m[k]; ok {
		return v, true
	}
	v := f()
	m.Store(k, v)
	return v, false
}

// All returns an iterator over the entries of the map in insertion order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.m[k]) {
				return
			}
		}
	}
}

// Keys returns an iterator over the keys of the map in insertion order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for _, k := range m.keys {
			if !yield(k) {
				return
			}
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return len(m.keys)
}
