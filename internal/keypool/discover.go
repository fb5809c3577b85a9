package keypool

import (
	"strconv"
	"strings"
)

// Discover assembles the credential list: explicit keys first, then
// <prefix>1 .. <prefix>max looked up in numeric order. Gaps in the numbering
// are skipped, blank values are ignored and the result is capped at max.
func Discover(explicit []string, prefix string, max int, lookup func(string) (string, bool)) []string {
	if max <= 0 {
		return []string{}
	}
	keys := make([]string, 0, max)
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k != "" && len(keys) < max {
			keys = append(keys, k)
		}
	}

	for _, k := range explicit {
		add(k)
	}
	if lookup == nil || prefix == "" {
		return keys
	}
	for i := 1; i <= max; i++ {
		if v, ok := lookup(prefix + strconv.Itoa(i)); ok {
			add(v)
		}
	}
	return keys
}
