package domain

import "time"

// TestOutcome is the recorded result of one executed test, keyed by the
// test's stable entry id.
type TestOutcome struct {
	TestID   string        `json:"test_id"`
	Title    string        `json:"title"`
	File     string        `json:"file"`
	Line     int           `json:"line"`
	Ok       bool          `json:"ok"`
	Duration time.Duration `json:"duration_ns"`
	Failure  *TestFailure  `json:"failure,omitempty"`
}

// RunMeta describes one whole run.
type RunMeta struct {
	Total           int     `json:"total"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
	Interrupted     bool    `json:"interrupted,omitempty"`
}

// RunOutput is the persisted shape of the last run's results.
type RunOutput struct {
	Meta     RunMeta       `json:"meta"`
	Outcomes []TestOutcome `json:"outcomes"`
}

// FailedIDs returns the ids of tests that did not pass.
func (o *RunOutput) FailedIDs() []string {
	var ids []string
	for _, outcome := range o.Outcomes {
		if !outcome.Ok {
			ids = append(ids, outcome.TestID)
		}
	}
	return ids
}
