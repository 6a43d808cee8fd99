package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntries(t *testing.T) {
	data := []byte(`{"entries":[
		{"kind":"suite","title":"login.spec.ts","file":"/ws/tests/login.spec.ts","children":[
			{"kind":"suite","title":"auth","file":"/ws/tests/login.spec.ts","line":2,"column":1,"children":[
				{"kind":"test","title":"logs in","file":"/ws/tests/login.spec.ts","line":3,"column":3,"tags":["@smoke"]}
			]}
		]}
	]}`)

	entries, err := ParseEntries(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	file := entries[0]
	assert.Equal(t, KindSuite, file.Kind)
	assert.Empty(t, file.TitlePath)
	require.Len(t, file.Children, 1)

	group := file.Children[0]
	assert.Equal(t, []string{"login.spec.ts"}, group.TitlePath)
	require.Len(t, group.Children, 1)

	test := group.Children[0]
	assert.Equal(t, KindTest, test.Kind)
	assert.Equal(t, "logs in", test.Title)
	assert.Equal(t, []string{"login.spec.ts", "auth"}, test.TitlePath)
	assert.Equal(t, []string{"@smoke"}, test.Tags)
	assert.Equal(t, 3, test.Line)
}

func TestParseEntries_Malformed(t *testing.T) {
	_, err := ParseEntries([]byte(`{"entries":`))
	assert.Error(t, err)
}

func TestAssignIDs(t *testing.T) {
	tests := []struct {
		name     string
		entries  []*Entry
		expected []string
	}{
		{
			name: "file and position ids",
			entries: []*Entry{
				{Kind: KindSuite, Location: Location{File: "/ws/a.spec.ts"}, Children: []*Entry{
					{Kind: KindTest, Location: Location{File: "/ws/a.spec.ts", Line: 3}},
					{Kind: KindTest, Location: Location{File: "/ws/a.spec.ts", Line: 8}},
				}},
			},
			expected: []string{"/ws/a.spec.ts", "/ws/a.spec.ts:3", "/ws/a.spec.ts:8"},
		},
		{
			name: "same-line duplicates get ordinals in first-seen order",
			entries: []*Entry{
				{Kind: KindTest, Location: Location{File: "/ws/a.spec.ts", Line: 5}},
				{Kind: KindTest, Location: Location{File: "/ws/a.spec.ts", Line: 5}},
				{Kind: KindTest, Location: Location{File: "/ws/a.spec.ts", Line: 5}},
			},
			expected: []string{"/ws/a.spec.ts:5", "/ws/a.spec.ts:5#1", "/ws/a.spec.ts:5#2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			AssignIDs(tt.entries)
			var got []string
			var walk func([]*Entry)
			walk = func(entries []*Entry) {
				for _, e := range entries {
					got = append(got, e.ID)
					walk(e.Children)
				}
			}
			walk(tt.entries)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, "/ws/a.spec.ts", EntryID("/ws/a.spec.ts", 0))
	assert.Equal(t, "/ws/a.spec.ts:12", EntryID("/ws/a.spec.ts", 12))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/ws/tests", NormalizePath("/ws/tests/"))
	assert.Equal(t, "/ws/tests/a.spec.ts", NormalizePath("/ws/./tests//a.spec.ts"))
	assert.Equal(t, "", NormalizePath(""))
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"bare file", "/ws/./tests//a.spec.ts", "/ws/tests/a.spec.ts"},
		{"file with line", "/ws/./tests//a.spec.ts:12", "/ws/tests/a.spec.ts:12"},
		{"file with line and ordinal", "/ws/./tests//a.spec.ts:12#1", "/ws/tests/a.spec.ts:12#1"},
		{"already canonical", "/ws/tests/a.spec.ts:3", "/ws/tests/a.spec.ts:3"},
		{"non-numeric suffix stays part of the file", "/ws/a:b/c.spec.ts", "/ws/a:b/c.spec.ts"},
		{"opaque id untouched", "t1", "t1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.id))
		})
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		name string
		root string
		path string
		want bool
	}{
		{"root itself", "/ws", "/ws", true},
		{"direct child", "/ws", "/ws/a.spec.ts", true},
		{"nested", "/ws", "/ws/tests/deep/a.spec.ts", true},
		{"sibling prefix is not containment", "/ws", "/wsother/a.spec.ts", false},
		{"outside", "/ws", "/other/a.spec.ts", false},
		{"parent", "/ws/tests", "/ws", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.root, tt.path))
		})
	}
}

func TestModel_GenerationAndEntries(t *testing.T) {
	m := New()
	assert.Equal(t, 1, m.Generation())

	entries := []*Entry{{Kind: KindTest, Title: "a"}}
	m.SetEntries("/ws/testrunner.yaml", "chromium", entries)
	assert.Equal(t, entries, m.Entries("/ws/testrunner.yaml", "chromium"))
	assert.Nil(t, m.Entries("/ws/testrunner.yaml", "firefox"))

	assert.Equal(t, 2, m.Bump())
	assert.Nil(t, m.Entries("/ws/testrunner.yaml", "chromium"))
}

func TestModel_DropConfig(t *testing.T) {
	m := New()
	m.SetEntries("/ws/a.yaml", "p1", []*Entry{{Title: "x"}})
	m.SetEntries("/ws/a.yaml", "p2", []*Entry{{Title: "y"}})
	m.SetEntries("/ws/b.yaml", "p1", []*Entry{{Title: "z"}})

	m.DropConfig("/ws/a.yaml")
	assert.Nil(t, m.Entries("/ws/a.yaml", "p1"))
	assert.Nil(t, m.Entries("/ws/a.yaml", "p2"))
	assert.NotNil(t, m.Entries("/ws/b.yaml", "p1"))
	assert.Equal(t, []string{"p1"}, m.Projects("/ws/b.yaml"))
}
