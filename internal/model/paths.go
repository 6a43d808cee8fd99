package model

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath canonicalizes a path string so location-keyed lookups succeed
// regardless of which subsystem produced the path. On case-insensitive
// filesystems the drive letter is uppercased; everywhere the path is cleaned.
func NormalizePath(p string) string {
	if p == "" {
		return p
	}
	p = filepath.Clean(p)
	if runtime.GOOS == "windows" && len(p) >= 2 && p[1] == ':' {
		p = strings.ToUpper(p[:1]) + p[1:]
	}
	return p
}

// NormalizeID canonicalizes the file portion of a location-shaped id: a bare
// file, file:line, or file:line#ordinal. Ids arriving over the wire go through
// this so they compare equal to ids built from listed entries. The suffix is
// parsed from the right; a colon inside the file part (a Windows drive) is
// left alone.
func NormalizeID(id string) string {
	rest := id
	suffix := ""
	if i := strings.LastIndexByte(rest, '#'); i >= 0 && allDigits(rest[i+1:]) {
		suffix = rest[i:]
		rest = rest[:i]
	}
	if i := strings.LastIndexByte(rest, ':'); i >= 0 && allDigits(rest[i+1:]) {
		suffix = rest[i:] + suffix
		rest = rest[:i]
	}
	if rest == "" {
		return id
	}
	return NormalizePath(rest) + suffix
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Within reports whether path is root itself or lies underneath it.
func Within(root, path string) bool {
	root = NormalizePath(root)
	path = NormalizePath(path)
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
