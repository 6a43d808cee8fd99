package model

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes suites from test cases.
type Kind string

const (
	// KindSuite is a grouping node: a file or a describe-style block.
	KindSuite Kind = "suite"
	// KindTest is a runnable test case.
	KindTest Kind = "test"
)

// Location is a 1-based position in a source file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Entry is a discovered suite or test case. Entries form a tree rooted at a
// project; TitlePath holds the ancestor titles from the file suite down to,
// but not including, the entry itself. ID is stable across listings for an
// unchanged entry (see AssignIDs).
type Entry struct {
	Kind      Kind
	Title     string
	TitlePath []string
	Location
	Tags     []string
	ID       string
	Children []*Entry
}

// wireEntry is the JSON shape entries arrive in on the reporter channel.
type wireEntry struct {
	Kind     Kind         `json:"kind"`
	Title    string       `json:"title"`
	File     string       `json:"file"`
	Line     int          `json:"line"`
	Column   int          `json:"column"`
	Tags     []string     `json:"tags,omitempty"`
	Children []*wireEntry `json:"children,omitempty"`
}

// ParseEntries decodes a nested entry tree from reporter frame params,
// normalizing every file path and filling in title paths. IDs are not
// assigned here; callers run AssignIDs over the complete forest.
func ParseEntries(data []byte) ([]*Entry, error) {
	var payload struct {
		Entries []*wireEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse entries: %w", err)
	}
	return convertEntries(payload.Entries, nil), nil
}

func convertEntries(wire []*wireEntry, titlePath []string) []*Entry {
	entries := make([]*Entry, 0, len(wire))
	for _, w := range wire {
		e := &Entry{
			Kind:  w.Kind,
			Title: w.Title,
			Tags:  w.Tags,
			Location: Location{
				File:   NormalizePath(w.File),
				Line:   w.Line,
				Column: w.Column,
			},
		}
		e.TitlePath = append([]string(nil), titlePath...)
		if len(w.Children) > 0 {
			e.Children = convertEntries(w.Children, append(e.TitlePath, w.Title))
		}
		entries = append(entries, e)
	}
	return entries
}

// AssignIDs derives stable ids for a whole entry forest. The id of an entry
// is its file plus line; a file-level suite (line 0) uses the bare file path.
// When several entries land on the same file and line (identically declared
// parametrized tests), later ones get a #N suffix in first-seen order. That
// ordinal is not guaranteed stable if the source reorders the duplicates.
func AssignIDs(entries []*Entry) {
	seen := make(map[string]int)
	assignIDs(entries, seen)
}

func assignIDs(entries []*Entry, seen map[string]int) {
	for _, e := range entries {
		base := EntryID(e.File, e.Line)
		n := seen[base]
		seen[base] = n + 1
		if n == 0 {
			e.ID = base
		} else {
			e.ID = fmt.Sprintf("%s#%d", base, n)
		}
		assignIDs(e.Children, seen)
	}
}

// EntryID builds the id shared by every subsystem that keys state by
// location: file path for whole files, file:line for positions within one.
func EntryID(file string, line int) string {
	if line <= 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}
