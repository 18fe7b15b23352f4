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

// Package fmterr provides error kinds raised while building and
// differentiating graphs, and helpers to accumulate and format them.
package fmterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error. A Kind is itself an error so that callers can
// test an error with errors.Is(err, fmterr.TypeMismatch).
type Kind int

const (
	// Unknown is the kind of errors created outside of this package.
	Unknown Kind = iota
	// TypeMismatch is raised when element kinds, ranks or types are incompatible.
	TypeMismatch
	// ShapeMismatch is raised when ranks, extents or broadcast patterns cannot be reconciled.
	ShapeMismatch
	// Unsupported is raised when a combination is recognized but not implemented.
	Unsupported
	// ValueUnavailable is raised when a static query has no answer.
	// Callers treat it as "unknown" and fall back to symbolic handling.
	ValueUnavailable
	// InvalidValue is raised when a value is ill-formed.
	InvalidValue
	// Internal signals a bug.
	Internal
)

var kindNames = map[Kind]string{
	Unknown:          "unknown error",
	TypeMismatch:     "type mismatch",
	ShapeMismatch:    "shape mismatch",
	Unsupported:      "unsupported operation",
	ValueUnavailable: "value unavailable",
	InvalidValue:     "invalid value",
	Internal:         "internal error",
}

// Error returns the name of the kind.
func (k Kind) Error() string {
	s, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return s
}

// String returns the name of the kind.
func (k Kind) String() string {
	return k.Error()
}

type kindError struct {
	kind Kind
	err  error
}

// Errorf returns an error of a given kind. The error records the stack trace
// at the point it was created.
func Errorf(kind Kind, format string, a ...any) error {
	return kindError{kind: kind, err: errors.Errorf(format, a...)}
}

// Wrapf returns an error of a given kind wrapping another error.
func Wrapf(kind Kind, err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return kindError{kind: kind, err: errors.Wrapf(err, format, a...)}
}

// KindOf returns the kind of an error.
// Errors not created by this package have the Unknown kind.
func KindOf(err error) Kind {
	var kErr kindError
	if !errors.As(err, &kErr) {
		return Unknown
	}
	return kErr.kind
}

// ToInternal wraps an error to signal a bug.
func ToInternal(err error) error {
	return kindError{
		kind: Internal,
		err:  errors.Errorf("tensorir internal error. This is a bug. Please report it. Error:\n%+v", err),
	}
}

// Internalf returns an internal error given a format.
func Internalf(format string, a ...any) error {
	return ToInternal(errors.Errorf(format, a...))
}

// PrefixWith returns a function to prefix errors with a formatted string.
// The kind of the error is preserved.
func PrefixWith(s string, o ...any) func(err error) error {
	return func(err error) error {
		return fmt.Errorf("%s%w", fmt.Sprintf(s, o...), err)
	}
}

func (err kindError) Error() string {
	return err.err.Error()
}

func (err kindError) Unwrap() error {
	return err.err
}

// Is returns true if target is the kind of the error.
func (err kindError) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == err.kind
}

func (err kindError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}
