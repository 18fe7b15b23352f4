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
	"slices"
	"strings"

	"github.com/gx-org/tensorir/api/values"
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

// BroadcastPattern specifies, for each dimension of a tensor, if the
// dimension is broadcastable, that is if its extent is always 1.
// The length of the pattern is the rank of the tensor.
type BroadcastPattern []bool

// Rank of tensors with this pattern.
func (p BroadcastPattern) Rank() int {
	return len(p)
}

// Equal returns true if both patterns are pointwise equal.
func (p BroadcastPattern) Equal(other BroadcastPattern) bool {
	return slices.Equal(p, other)
}

// Clone returns a copy of the pattern.
func (p BroadcastPattern) Clone() BroadcastPattern {
	return append(BroadcastPattern{}, p...)
}

// PadLeft returns the pattern left-padded with broadcastable dimensions
// up to a given rank.
func (p BroadcastPattern) PadLeft(rank int) BroadcastPattern {
	if len(p) >= rank {
		return p.Clone()
	}
	padded := make(BroadcastPattern, rank-len(p), rank)
	for i := range padded {
		padded[i] = true
	}
	return append(padded, p...)
}

func (p BroadcastPattern) String() string {
	s := make([]string, len(p))
	for i, b := range p {
		s[i] = fmt.Sprint(b)
	}
	return "(" + strings.Join(s, ", ") + ")"
}

// And returns the pattern of an elementwise operation combining tensors of
// the given patterns: shorter patterns are left-padded with broadcastable
// dimensions, then a dimension is broadcastable only if it is broadcastable
// in every pattern.
func And(patterns ...BroadcastPattern) BroadcastPattern {
	rank := 0
	for _, p := range patterns {
		rank = max(rank, p.Rank())
	}
	out := make(BroadcastPattern, rank)
	for i := range out {
		out[i] = true
	}
	for _, p := range patterns {
		padded := p.PadLeft(rank)
		for i, b := range padded {
			out[i] = out[i] && b
		}
	}
	return out
}

// ValidateMode specifies how values are checked against a type.
type ValidateMode int

const (
	// Cast casts values to the kind of the type if the cast does not lose information.
	Cast ValidateMode = 0
	// Strict requires values to have exactly the kind of the type.
	Strict ValidateMode = 1 << iota
	// CheckFinite rejects values containing infinite or NaN elements.
	CheckFinite
)

// Type of a variable in a graph.
type Type interface {
	// Kind of the elements.
	Kind() irkind.Kind
	// Pattern returns a copy of the broadcast pattern.
	Pattern() BroadcastPattern
	// Rank returns the number of dimensions.
	Rank() int
	// Name returns the display name of the type. Can be empty.
	Name() string
	// Equal returns true if the types are structurally equal.
	// The display name is ignored.
	Equal(Type) bool
	// Key returns a string uniquely identifying the type structurally.
	Key() string
	// Validate checks that a raw value can be bound to a variable of this type.
	// It returns the value converted to an array matching the type.
	Validate(raw any, mode ValidateMode) (*values.Array, error)

	String() string
}

// TensorType is the type of tensors: a kind of element and a broadcast pattern.
type TensorType struct {
	kind    irkind.Kind
	pattern BroadcastPattern
	name    string
}

var _ Type = (*TensorType)(nil)

// TensorOf returns the type of tensors given a kind and a broadcast pattern.
func TensorOf(kind irkind.Kind, pattern BroadcastPattern) (*TensorType, error) {
	if !kind.IsValid() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "unsupported element kind %s", kind)
	}
	return &TensorType{kind: kind, pattern: pattern.Clone()}, nil
}

// MustTensorOf returns the type of tensors given a kind and a broadcast pattern.
// It panics if the kind is invalid.
func MustTensorOf(kind irkind.Kind, pattern BroadcastPattern) *TensorType {
	tp, err := TensorOf(kind, pattern)
	if err != nil {
		panic(err)
	}
	return tp
}

// Scalar returns the type of scalars (rank 0).
func Scalar(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{})
}

// Vector returns the type of vectors.
func Vector(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{false})
}

// Row returns the type of matrices with a single row.
func Row(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{true, false})
}

// Col returns the type of matrices with a single column.
func Col(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{false, true})
}

// Matrix returns the type of matrices.
func Matrix(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{false, false})
}

// Tensor3 returns the type of tensors of rank 3.
func Tensor3(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{false, false, false})
}

// Tensor4 returns the type of tensors of rank 4.
func Tensor4(kind irkind.Kind) *TensorType {
	return MustTensorOf(kind, BroadcastPattern{false, false, false, false})
}

// WithName returns a copy of the type with a display name.
func (t *TensorType) WithName(name string) *TensorType {
	return &TensorType{kind: t.kind, pattern: t.pattern, name: name}
}

// WithKind returns a type with the same pattern but another kind.
func (t *TensorType) WithKind(kind irkind.Kind) (*TensorType, error) {
	return TensorOf(kind, t.pattern)
}

// Kind of the elements.
func (t *TensorType) Kind() irkind.Kind {
	return t.kind
}

// Pattern returns a copy of the broadcast pattern.
func (t *TensorType) Pattern() BroadcastPattern {
	return t.pattern.Clone()
}

// Rank returns the number of dimensions.
func (t *TensorType) Rank() int {
	return len(t.pattern)
}

// Name returns the display name of the type.
func (t *TensorType) Name() string {
	return t.name
}

// Equal returns true if other is a tensor type with the same kind and pattern.
func (t *TensorType) Equal(other Type) bool {
	o, ok := other.(*TensorType)
	if !ok || o == nil {
		return false
	}
	return t.kind == o.kind && t.pattern.Equal(o.pattern)
}

// Key returns a string uniquely identifying the type.
func (t *TensorType) Key() string {
	var b strings.Builder
	b.WriteString("tensor[")
	for _, bc := range t.pattern {
		if bc {
			b.WriteByte('1')
		} else {
			b.WriteByte('n')
		}
	}
	b.WriteString("]")
	b.WriteString(t.kind.String())
	return b.String()
}

// String representation of the type.
func (t *TensorType) String() string {
	if t.name != "" {
		return t.name
	}
	return fmt.Sprintf("TensorType(%s, %s)", t.kind, t.pattern)
}

// Validate checks that a raw value can be bound to a variable of this type.
//
// In strict mode, the kind and the rank of the value must match the type.
// Otherwise, the value is cast to the kind of the type, possibly losing
// precision or wrapping around; only complex values cannot be cast to real
// kinds. In both modes, the extent of broadcastable dimensions must be 1.
func (t *TensorType) Validate(raw any, mode ValidateMode) (*values.Array, error) {
	arr, err := values.FromGo(raw)
	if err != nil {
		return nil, err
	}
	if arr.Kind() != t.kind {
		if mode&Strict != 0 {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s expected a %s value but got %s", t, t.kind, arr.Kind())
		}
		if arr, err = arr.Cast(t.kind); err != nil {
			return nil, fmterr.PrefixWith("%s: ", t)(err)
		}
	}
	if arr.Rank() != t.Rank() {
		return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s expected a value of rank %d but got a value of rank %d", t, t.Rank(), arr.Rank())
	}
	dims := arr.Dims()
	for i, bc := range t.pattern {
		if bc && dims[i] != 1 {
			return nil, fmterr.Errorf(fmterr.TypeMismatch, "%s: dimension %d is broadcastable but the value has shape %v", t, i, dims)
		}
	}
	if mode&CheckFinite != 0 && !arr.IsFinite() {
		return nil, fmterr.Errorf(fmterr.InvalidValue, "%s: non-finite elements in %s", t, arr)
	}
	return arr, nil
}
