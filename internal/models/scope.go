package models

import "strings"

const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

var ValidScopes = []string{ScopeRead, ScopeWrite}

// ScopeCovers reports whether every space separated entry of requested is
// present in granted. Nothing is covered by an empty grant.
func ScopeCovers(granted, requested string) bool {
	have := strings.Fields(granted)
	if len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, s := range have {
		set[s] = struct{}{}
	}
	for _, s := range strings.Fields(requested) {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// NormalizeScope drops duplicates and extra whitespace, keeping order.
func NormalizeScope(scope string) string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 2)
	for _, s := range strings.Fields(scope) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

func ValidScope(scope string) bool {
	return scope != "" && ScopeCovers(strings.Join(ValidScopes, " "), scope)
}
