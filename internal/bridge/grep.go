package bridge

import "strings"

// grepSpecials are the regexp metacharacters escaped when a test title is
// turned into a --grep filter.
const grepSpecials = `\^$.*+?()[]{}|/`

// GrepForTitle builds the --grep value selecting a single test by its title
// path. Titles are regexp-escaped and joined with spaces, matching how the
// runner concatenates ancestor titles.
func GrepForTitle(titles ...string) string {
	escaped := make([]string, 0, len(titles))
	for _, t := range titles {
		var b strings.Builder
		for _, r := range t {
			if strings.ContainsRune(grepSpecials, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		escaped = append(escaped, b.String())
	}
	return strings.Join(escaped, " ")
}
