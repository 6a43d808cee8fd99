package cli

// Flags holds command-line flags shared across commands.
type Flags struct {
	Workspace string
	Config    string
	Projects  []string
	Grep      string
	Titles    []string
	Filter    string
	Failed    bool
	Debounce  int
}
