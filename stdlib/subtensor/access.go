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

package subtensor

import (
	"github.com/gx-org/tensorir/build/fmterr"
	"github.com/gx-org/tensorir/build/ir"
)

// Get returns the region of x selected by an index list.
// Each index is an int, an integer scalar variable, a Slice or an integer
// vector (advanced indexing).
func Get(g *ir.Graph, x any, idx ...any) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	p, err := parse(g, xv.Rank(), idx)
	if err != nil {
		return nil, fmterr.PrefixWith("indexing %s: ", xv)(err)
	}
	if len(p.advanced) == 0 {
		return ir.Call(g, newOp(g, p.list), append([]any{xv}, asArgs(p.syms)...)...)
	}
	switch {
	case len(p.advanced) == 1 && p.basic == 0:
		return ir.Call(g, newAdvanced1Op(g), xv, p.advanced[0])
	case len(p.advanced) == 2 && p.basic == 0:
		return ir.Call(g, newAdvancedOp(g), xv, p.advanced[0], p.advanced[1])
	}
	return nil, unsupported(xv, idx)
}

func unsupported(x *ir.Variable, idx []any) error {
	return fmterr.Errorf(fmterr.Unsupported, "advanced indexing of %s of rank %d with %d indices is not supported", x, x.Rank(), len(idx))
}

func writeAt(g *ir.Graph, x, y any, idx []any, set, inplace bool) (*ir.Variable, error) {
	xv, err := g.AsVariable(x)
	if err != nil {
		return nil, err
	}
	p, err := parse(g, xv.Rank(), idx)
	if err != nil {
		return nil, fmterr.PrefixWith("indexing %s: ", xv)(err)
	}
	if len(p.advanced) == 0 {
		return ir.Call(g, newIncOp(g, p.list, set, inplace), append([]any{xv, y}, asArgs(p.syms)...)...)
	}
	switch {
	case len(p.advanced) == 1 && p.basic == 0:
		return ir.Call(g, newAdvancedInc1Op(g, set, inplace), xv, y, p.advanced[0])
	case len(p.advanced) == 2 && p.basic == 0:
		return ir.Call(g, newAdvancedIncOp(g, set, inplace), xv, y, p.advanced[0], p.advanced[1])
	}
	return nil, unsupported(xv, idx)
}

// Set returns a copy of x where the region selected by an index list is
// replaced by y. y is broadcast to the shape of the region.
func Set(g *ir.Graph, x, y any, idx ...any) (*ir.Variable, error) {
	return writeAt(g, x, y, idx, true, false)
}

// Inc returns a copy of x where y is added to the region selected by an index list.
// y is broadcast to the shape of the region.
func Inc(g *ir.Graph, x, y any, idx ...any) (*ir.Variable, error) {
	return writeAt(g, x, y, idx, false, false)
}

// SetInplace is like Set but overwrites x. x must not be read after the write.
func SetInplace(g *ir.Graph, x, y any, idx ...any) (*ir.Variable, error) {
	return writeAt(g, x, y, idx, true, true)
}

// IncInplace is like Inc but overwrites x. x must not be read after the write.
func IncInplace(g *ir.Graph, x, y any, idx ...any) (*ir.Variable, error) {
	return writeAt(g, x, y, idx, false, true)
}
