package discovery

import (
	"path/filepath"
	"strings"

	"qad/internal/domain"
)

// Filter filters test cases by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName keeps the test cases whose name matches pattern, ignoring case.
// Supports patterns like "*Login*" or "UserTest::*"; a pattern without
// wildcards matches any name containing it.
func (f *Filter) FilterByName(cases []domain.TestCase, pattern string) []domain.TestCase {
	if pattern == "" {
		return cases
	}
	pattern = strings.ToLower(pattern)
	wildcard := strings.ContainsAny(pattern, "*?")

	var filtered []domain.TestCase
	for _, tc := range cases {
		name := strings.ToLower(tc.Name)

		if !wildcard {
			if strings.Contains(name, pattern) {
				filtered = append(filtered, tc)
			}
			continue
		}

		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			filtered = append(filtered, tc)
			continue
		}

		// filepath.Match stops "*" at a path separator; fall back to
		// matching the literal parts in order.
		if matchParts(name, strings.Split(pattern, "*")) {
			filtered = append(filtered, tc)
		}
	}
	return filtered
}

func matchParts(name string, parts []string) bool {
	hasNonEmptyPart := false
	rest := name
	for i, part := range parts {
		if part == "" || strings.Contains(part, "?") {
			continue
		}
		hasNonEmptyPart = true
		idx := strings.Index(rest, part)
		if idx < 0 || (i == 0 && idx != 0) {
			return false
		}
		rest = rest[idx+len(part):]
	}
	last := parts[len(parts)-1]
	if last != "" && !strings.Contains(last, "?") && !strings.HasSuffix(name, last) {
		return false
	}
	return hasNonEmptyPart
}
