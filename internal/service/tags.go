package service

import "strings"

// NormalizeTagNames trims every name, drops empty ones and exact duplicates,
// and keeps first-seen order. Case is preserved, so "Go" and "go" are distinct.
// The result is never nil.
func NormalizeTagNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
