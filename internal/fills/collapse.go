// Package fills prepares router paths for order compilation.
package fills

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// Collapse merges adjacent non-native fills from the same source into one
// fill whose input and output are the sums of the merged fills. The merged
// fills are recorded in SubFills. Native fills are never merged because each
// one consumes a different resting order.
//
// Collapse expects a validated path. It does not modify path, and
// Collapse(Collapse(p)) equals Collapse(p).
func Collapse(path domain.Path) domain.Path {
	out := make(domain.Path, 0, len(path))
	for _, f := range path {
		if n := len(out); n > 0 && !f.Source.IsNative() && out[n-1].Source == f.Source {
			prev := &out[n-1]
			prev.Input = new(big.Int).Add(prev.Input, f.Input)
			prev.Output = new(big.Int).Add(prev.Output, f.Output)
			prev.SubFills = append(prev.SubFills, leaves(f)...)
			continue
		}
		out = append(out, domain.Fill{
			Source:      f.Source,
			Input:       new(big.Int).Set(f.Input),
			Output:      new(big.Int).Set(f.Output),
			NativeOrder: f.NativeOrder,
			SubFills:    leaves(f),
		})
	}
	return out
}

// leaves returns the original fills f stands for.
func leaves(f domain.Fill) []domain.Fill {
	if len(f.SubFills) > 0 {
		return append([]domain.Fill(nil), f.SubFills...)
	}
	leaf := f
	leaf.SubFills = nil
	return []domain.Fill{leaf}
}

// Validate checks every fill of path before compilation.
func Validate(path domain.Path) error {
	if len(path) == 0 {
		return domain.ErrEmptyPath
	}
	for i, f := range path {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("fills: fill %d: %w", i, err)
		}
	}
	return nil
}
