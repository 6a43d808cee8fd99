package domain

// TestFailure is a runner-reported failure attached to a test outcome, with
// the structured location a UI needs for inline annotations.
type TestFailure struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}
