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

package irkind_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir/irkind"
)

func mustPromote(t *testing.T, kinds ...irkind.Kind) irkind.Kind {
	t.Helper()
	k, err := irkind.Promote(kinds...)
	if err != nil {
		t.Fatalf("cannot promote %v: %v", kinds, err)
	}
	return k
}

func TestPromote(t *testing.T) {
	tests := []struct {
		kinds []irkind.Kind
		want  irkind.Kind
	}{
		{kinds: []irkind.Kind{irkind.Int8, irkind.Int8}, want: irkind.Int8},
		{kinds: []irkind.Kind{irkind.Int8, irkind.Uint8}, want: irkind.Int16},
		{kinds: []irkind.Kind{irkind.Int16, irkind.Uint16}, want: irkind.Int32},
		{kinds: []irkind.Kind{irkind.Uint32, irkind.Int8}, want: irkind.Int64},
		{kinds: []irkind.Kind{irkind.Int64, irkind.Uint64}, want: irkind.Float64},
		{kinds: []irkind.Kind{irkind.Int32, irkind.Float32}, want: irkind.Float64},
		{kinds: []irkind.Kind{irkind.Int8, irkind.Float32}, want: irkind.Float32},
		{kinds: []irkind.Kind{irkind.Uint8, irkind.Float32}, want: irkind.Float32},
		{kinds: []irkind.Kind{irkind.Int16, irkind.Float32}, want: irkind.Float32},
		{kinds: []irkind.Kind{irkind.Uint16, irkind.Float32}, want: irkind.Float64},
		{kinds: []irkind.Kind{irkind.Int16, irkind.Uint16, irkind.Float32}, want: irkind.Float64},
		{kinds: []irkind.Kind{irkind.Float32, irkind.Float32}, want: irkind.Float32},
		{kinds: []irkind.Kind{irkind.Float32, irkind.Complex64}, want: irkind.Complex64},
		{kinds: []irkind.Kind{irkind.Float64, irkind.Complex64}, want: irkind.Complex128},
		{kinds: []irkind.Kind{irkind.Int8, irkind.Complex64}, want: irkind.Complex64},
		{kinds: []irkind.Kind{irkind.Int32, irkind.Complex64}, want: irkind.Complex128},
		{kinds: []irkind.Kind{irkind.Uint8, irkind.Uint32, irkind.Uint16}, want: irkind.Uint32},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("test%d", i), func(t *testing.T) {
			got := mustPromote(t, test.kinds...)
			if got != test.want {
				t.Errorf("Promote(%v) = %s but want %s", test.kinds, got, test.want)
			}
		})
	}
}

func TestPromoteErrors(t *testing.T) {
	for _, kinds := range [][]irkind.Kind{
		nil,
		{irkind.Invalid},
		{irkind.Float32, irkind.Max},
	} {
		_, err := irkind.Promote(kinds...)
		if !errors.Is(err, fmterr.TypeMismatch) {
			t.Errorf("Promote(%v): got error %v but want a type mismatch", kinds, err)
		}
	}
}

func TestPromoteAlgebra(t *testing.T) {
	all := irkind.All()
	for _, a := range all {
		for _, b := range all {
			ab := mustPromote(t, a, b)
			if ba := mustPromote(t, b, a); ab != ba {
				t.Errorf("Promote(%s, %s) = %s but Promote(%s, %s) = %s", a, b, ab, b, a, ba)
			}
			if !irkind.CanRepresent(a, ab) || !irkind.CanRepresent(b, ab) {
				t.Errorf("Promote(%s, %s) = %s does not represent its inputs", a, b, ab)
			}
			for _, c := range all {
				abc := mustPromote(t, a, b, c)
				if left := mustPromote(t, ab, c); left != abc {
					t.Errorf("Promote(Promote(%s, %s), %s) = %s but Promote(%s, %s, %s) = %s", a, b, c, left, a, b, c, abc)
				}
				if right := mustPromote(t, a, mustPromote(t, b, c)); right != abc {
					t.Errorf("Promote(%s, Promote(%s, %s)) = %s but Promote(%s, %s, %s) = %s", a, b, c, right, a, b, c, abc)
				}
			}
		}
	}
}

func TestString(t *testing.T) {
	for _, k := range irkind.All() {
		if got := irkind.FromString(k.String()); got != k {
			t.Errorf("FromString(%q) = %s but want %s", k.String(), got, k)
		}
	}
	if got := irkind.FromString("bfloat16"); got != irkind.Invalid {
		t.Errorf("FromString(bfloat16) = %s but want invalid", got)
	}
}

func TestKindOf(t *testing.T) {
	checks := map[irkind.Kind]irkind.Kind{
		irkind.KindOf[int8]():       irkind.Int8,
		irkind.KindOf[uint16]():     irkind.Uint16,
		irkind.KindOf[float32]():    irkind.Float32,
		irkind.KindOf[complex128](): irkind.Complex128,
	}
	for got, want := range checks {
		if got != want {
			t.Errorf("got %s but want %s", got, want)
		}
	}
}

func TestNative(t *testing.T) {
	tags := make(map[string]irkind.Kind)
	for _, k := range irkind.All() {
		native, err := k.Native()
		if err != nil {
			t.Fatalf("no native descriptor for %s: %v", k, err)
		}
		if prev, ok := tags[native.Tag.String()]; ok {
			t.Errorf("kinds %s and %s share the native tag %s", prev, k, native.Tag)
		}
		tags[native.Tag.String()] = k
		if got := irkind.FromDType(native.Tag); got != k {
			t.Errorf("FromDType(%s) = %s but want %s", native.Tag, got, k)
		}
		if native.Host.String() != k.String() {
			t.Errorf("host kind of %s is %s", k, native.Host)
		}
	}
	if _, err := irkind.Invalid.Native(); !errors.Is(err, fmterr.TypeMismatch) {
		t.Errorf("got error %v but want a type mismatch", err)
	}
	if got := irkind.FromGoType(reflect.TypeOf(float32(0))); got != irkind.Float32 {
		t.Errorf("FromGoType(float32) = %s", got)
	}
}
