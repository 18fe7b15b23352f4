// Copyright 2024 Google LLC
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

// Package fmtarray formats host arrays into strings.
package fmtarray

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gx-org/tensorir/build/ir/irkind"
)

const tab = "\t"

type builder[T irkind.Element] struct {
	w       strings.Builder
	data    []T
	dims    []int
	strides []int
	compact bool
}

func newBuilder[T irkind.Element](data []T, dims []int, compact bool) (*builder[T], error) {
	b := &builder[T]{
		data:    data,
		dims:    dims,
		strides: make([]int, len(dims)),
		compact: compact,
	}
	total := 1
	for i := len(dims) - 1; i >= 0; i-- {
		b.strides[i] = total
		total *= dims[i]
	}
	if total != len(data) {
		return b, errors.Errorf("len(data)=%d does not match dimensions %v=%d", len(data), dims, total)
	}
	return b, nil
}

func trimFloat(s string) string {
	if !strings.ContainsRune(s, '.') || strings.ContainsAny(s, "eE") {
		return s
	}
	// Remove trailing zeroes after the decimal point,
	// and the point itself if there are no digits after it.
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}

func formatFloat(f float64, bits int) string {
	return trimFloat(strconv.FormatFloat(f, 'f', -1, bits))
}

func formatComplex(c complex128, bits int) string {
	im := formatFloat(imag(c), bits)
	if !strings.HasPrefix(im, "-") {
		im = "+" + im
	}
	return "(" + formatFloat(real(c), bits) + im + "i)"
}

func formatValue[T irkind.Element](x T) string {
	switch v := any(x).(type) {
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case complex64:
		return formatComplex(complex128(v), 32)
	case complex128:
		return formatComplex(v, 64)
	}
	return fmt.Sprint(x)
}

func (b *builder[T]) printType() {
	for _, d := range b.dims {
		fmt.Fprintf(&b.w, "[%d]", d)
	}
	b.w.WriteString(irkind.KindOf[T]().String())
}

func (b *builder[T]) printAxis(indent string, axis, offset int) {
	if axis == len(b.dims)-1 {
		vals := make([]string, b.dims[axis])
		for i := range vals {
			vals[i] = formatValue(b.data[offset+i*b.strides[axis]])
		}
		b.w.WriteString("{" + strings.Join(vals, ", ") + "}")
		return
	}
	if b.compact {
		b.w.WriteString("{")
		for i := 0; i < b.dims[axis]; i++ {
			if i > 0 {
				b.w.WriteString(", ")
			}
			b.printAxis(indent, axis+1, offset+i*b.strides[axis])
		}
		b.w.WriteString("}")
		return
	}
	b.w.WriteString("{\n")
	for i := 0; i < b.dims[axis]; i++ {
		b.w.WriteString(indent + tab)
		b.printAxis(indent+tab, axis+1, offset+i*b.strides[axis])
		b.w.WriteString(",\n")
	}
	b.w.WriteString(indent + "}")
}

func (b *builder[T]) printData() {
	if len(b.dims) == 0 {
		b.w.WriteString("(" + formatValue(b.data[0]) + ")")
		return
	}
	for _, d := range b.dims {
		if d == 0 {
			b.w.WriteString("{}")
			return
		}
	}
	b.printAxis("", 0, 0)
}

// Sprint returns a string representation of an array.
// Arrays of rank 2 or more are printed with one row per line.
func Sprint[T irkind.Element](data []T, dims []int) string {
	b, err := newBuilder(data, dims, false)
	if err != nil {
		return err.Error()
	}
	b.printType()
	b.printData()
	return b.w.String()
}

// SprintCompact returns a string representation of an array on a single line.
func SprintCompact[T irkind.Element](data []T, dims []int) string {
	b, err := newBuilder(data, dims, true)
	if err != nil {
		return err.Error()
	}
	b.printType()
	b.printData()
	return b.w.String()
}
