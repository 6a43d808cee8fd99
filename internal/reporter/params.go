package reporter

import "trb/internal/model"

// Wire shapes of the per-event params. Durations arrive in milliseconds.

type wireLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l *wireLocation) convert() *model.Location {
	if l == nil {
		return nil
	}
	return &model.Location{
		File:   model.NormalizePath(l.File),
		Line:   l.Line,
		Column: l.Column,
	}
}

type wireError struct {
	Message  string        `json:"message"`
	Stack    string        `json:"stack,omitempty"`
	Location *wireLocation `json:"location,omitempty"`
}

func (e *wireError) convert() *TestError {
	if e == nil {
		return nil
	}
	return &TestError{
		Message:  e.Message,
		Stack:    e.Stack,
		Location: e.Location.convert(),
	}
}

type testBeginParams struct {
	TestID string `json:"testId"`
}

type testEndParams struct {
	TestID   string     `json:"testId"`
	Ok       bool       `json:"ok"`
	Duration float64    `json:"duration"`
	Error    *wireError `json:"error,omitempty"`
}

type stepBeginParams struct {
	StepID   string        `json:"stepId"`
	TestID   string        `json:"testId"`
	Title    string        `json:"title"`
	Location *wireLocation `json:"location,omitempty"`
}

type stepEndParams struct {
	StepID   string  `json:"stepId"`
	TestID   string  `json:"testId"`
	Duration float64 `json:"duration"`
}

type errorParams struct {
	Error *wireError `json:"error"`
}
