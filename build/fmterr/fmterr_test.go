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

package fmterr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gx-org/tensorir/build/fmterr"
)

func TestKind(t *testing.T) {
	err := fmterr.Errorf(fmterr.ShapeMismatch, "axis %d out of range", 3)
	if !errors.Is(err, fmterr.ShapeMismatch) {
		t.Errorf("error %v is not a shape mismatch", err)
	}
	if errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("error %v should not be a type mismatch", err)
	}
	if got, want := fmterr.KindOf(err), fmterr.ShapeMismatch; got != want {
		t.Errorf("got kind %v but want %v", got, want)
	}
	prefixed := fmterr.PrefixWith("join: ")(err)
	if !errors.Is(prefixed, fmterr.ShapeMismatch) {
		t.Errorf("prefix lost the kind of %v", prefixed)
	}
	if got, want := prefixed.Error(), "join: axis 3 out of range"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if got := fmterr.KindOf(errors.New("plain")); got != fmterr.Unknown {
		t.Errorf("got kind %v but want %v", got, fmterr.Unknown)
	}
}

func TestStackTrace(t *testing.T) {
	err := fmterr.Errorf(fmterr.Unsupported, "no gradient")
	verbose := fmt.Sprintf("%+v", err)
	if !strings.Contains(verbose, "Error generated at:") {
		t.Errorf("verbose error does not contain a stack trace:\n%s", verbose)
	}
	if got, want := fmt.Sprintf("%v", err), "no gradient"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestAppender(t *testing.T) {
	var app fmterr.Appender
	if !app.Empty() {
		t.Fatal("new appender is not empty")
	}
	app.Appendf(fmterr.TypeMismatch, "first")
	app.Push(fmterr.PrefixWith("entry 1: "))
	app.Appendf(fmterr.ShapeMismatch, "second")
	app.Append(nil)
	app.Pop()
	errs := app.Errors()
	if len(errs) != 2 {
		t.Fatalf("got %d errors but want 2: %v", len(errs), errs)
	}
	if got, want := errs[1].Error(), "entry 1: second"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	err := app.ToError()
	if !errors.Is(err, fmterr.TypeMismatch) || !errors.Is(err, fmterr.ShapeMismatch) {
		t.Errorf("combined error %v lost the kinds of its errors", err)
	}
}
