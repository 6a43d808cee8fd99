package discovery

import (
	"path/filepath"
	"strings"
)

// Filter filters test files by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName filters test files by base-name pattern. The pattern follows
// filepath.Match syntax; a pattern without wildcards additionally matches as
// a substring, and a multi-star pattern without "?" falls back to ordered
// literal segments, so "*login*spec*" behaves as expected.
func (f *Filter) FilterByName(files []string, pattern string) []string {
	if pattern == "" {
		return files
	}

	var filtered []string
	for _, file := range files {
		if matchName(filepath.Base(file), pattern) {
			filtered = append(filtered, file)
		}
	}
	return filtered
}

func matchName(name, pattern string) bool {
	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}

	// A "?" pattern follows filepath.Match semantics alone; the segment
	// fallback would treat the "?" as a literal.
	if strings.ContainsRune(pattern, '?') {
		return false
	}
	if !strings.ContainsRune(pattern, '*') {
		return strings.Contains(name, pattern)
	}

	// Patterns like "*login*spec*": every literal segment must appear in
	// order.
	rest := name
	for _, part := range strings.Split(pattern, "*") {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return strings.Trim(pattern, "*") != ""
}
