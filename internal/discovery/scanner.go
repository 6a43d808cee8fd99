// Package discovery locates test files on disk without spawning the runner.
// It seeds the tree with file-level nodes so a workspace shows its test
// files immediately; the runner's list mode later refines them into suites
// and cases.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TestFilePatterns are the file names treated as runner test files.
var TestFilePatterns = []string{"*.spec.*", "*.test.*"}

// Scanner scans for test files in a directory
type Scanner struct {
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner with the given directories to skip
func NewScanner(skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap}
}

// Scan finds all test files in the given root directory, sorted by path
func (s *Scanner) Scan(root string) ([]string, error) {
	var testfiles []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			// Skip hidden directories (starting with .)
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}

			if s.skipDirs[name] {
				return filepath.SkipDir
			}

			return nil
		}

		if IsTestFile(d.Name()) {
			testfiles = append(testfiles, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(testfiles)
	return testfiles, nil
}

// IsTestFile reports whether a file name matches one of TestFilePatterns.
func IsTestFile(name string) bool {
	for _, pattern := range TestFilePatterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
