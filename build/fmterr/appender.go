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

package fmterr

import (
	"go.uber.org/multierr"
)

type contextError struct {
	f   func(error) error
	err error
}

// Appender accumulates errors.
// Errors appended while a context is pushed are transformed by the context
// function when the context is popped.
type Appender struct {
	stack []contextError
	err   error
}

// Push a new context in the error stack.
func (app *Appender) Push(f func(error) error) {
	app.stack = append(app.stack, contextError{f: f})
}

// Pop removes the last context from the stack.
func (app *Appender) Pop() {
	last := app.stack[len(app.stack)-1]
	app.stack = app.stack[:len(app.stack)-1]
	if last.err == nil {
		return
	}
	for _, err := range multierr.Errors(last.err) {
		app.Append(last.f(err))
	}
}

// Append an error. Nil errors are ignored.
// Always returns false so that it can be used in a return statement of a checker.
func (app *Appender) Append(err error) bool {
	if err == nil {
		return false
	}
	if len(app.stack) == 0 {
		app.err = multierr.Append(app.err, err)
	} else {
		top := &app.stack[len(app.stack)-1]
		top.err = multierr.Append(top.err, err)
	}
	return false
}

// Appendf appends an error of a given kind.
func (app *Appender) Appendf(kind Kind, format string, a ...any) bool {
	return app.Append(Errorf(kind, format, a...))
}

// Empty returns true if no error has been appended.
func (app *Appender) Empty() bool {
	if app.err != nil {
		return false
	}
	for _, ctx := range app.stack {
		if ctx.err != nil {
			return false
		}
	}
	return true
}

// Errors returns the list of errors appended so far.
func (app *Appender) Errors() []error {
	return multierr.Errors(app.err)
}

// ToError returns all the errors combined in a single error, or nil if no error
// has been appended.
func (app *Appender) ToError() error {
	if len(app.stack) > 0 {
		return Internalf("cannot fetch errors while the context stack is non-empty")
	}
	return app.err
}
