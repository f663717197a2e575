// Package strings provides string helpers shared by configuration parsing.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trims each element and drops
// empty and repeated elements. Order of first occurrence is preserved. An
// input with no elements returns nil.
func SplitList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
