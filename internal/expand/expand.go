// Package expand fans one parsed argument set out into independent argument
// sets, one per position of its multi-value fields.
package expand

import (
	"fmt"
	"iter"
	"maps"
	"sort"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
)

// Multi marks a field whose values are broadcast across invocations.
type Multi []any

// Values wraps vs in a Multi marker.
func Values[T any](vs ...T) Multi {
	out := make(Multi, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// Expand returns a lazy sequence with at least one element. Without multi
// fields the input is yielded unchanged. Multi fields are zipped positionally
// and must all have the same length.
func Expand(args map[string]any) (iter.Seq[map[string]any], error) {
	multi := map[string]Multi{}
	for k, v := range args {
		if m, ok := v.(Multi); ok {
			multi[k] = m
		}
	}
	if len(multi) == 0 {
		return func(yield func(map[string]any) bool) {
			yield(args)
		}, nil
	}

	fields := make([]string, 0, len(multi))
	for k := range multi {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	n := len(multi[fields[0]])
	if n == 0 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("multi-value argument %s has no values", fields[0]))
	}
	for _, f := range fields[1:] {
		if len(multi[f]) != n {
			return nil, clierr.New(clierr.CodeUsage, unequalMessage(fields, multi))
		}
	}

	base := make(map[string]any, len(args)-len(multi))
	for k, v := range args {
		if _, ok := multi[k]; !ok {
			base[k] = v
		}
	}

	return func(yield func(map[string]any) bool) {
		for i := 0; i < n; i++ {
			item := maps.Clone(base)
			for _, f := range fields {
				item[f] = multi[f][i]
			}
			if !yield(item) {
				return
			}
		}
	}, nil
}

// Count reports how many elements Expand would yield.
func Count(args map[string]any) int {
	n := 1
	for _, v := range args {
		if m, ok := v.(Multi); ok {
			n = len(m)
			break
		}
	}
	return n
}

func unequalMessage(fields []string, multi map[string]Multi) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%d", f, len(multi[f])))
	}
	return "multi-value arguments must have the same number of values (" + strings.Join(parts, ", ") + ")"
}
