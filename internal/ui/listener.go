package ui

import (
	"sync"
	"time"

	"trb/internal/model"
	"trb/internal/reporter"
)

// RunPrinter is the CLI's TestListener: it sizes a progress bar from the
// begin event and keeps pass/fail counts live as results stream in. All
// state is keyed by id; events from concurrent tests interleave.
type RunPrinter struct {
	mu     sync.Mutex
	bar    *ProgressBar
	passed int
	failed int
	seen   map[string]bool
}

// NewRunPrinter creates a RunPrinter.
func NewRunPrinter() *RunPrinter {
	return &RunPrinter{seen: make(map[string]bool)}
}

func (p *RunPrinter) OnBegin(entries []*model.Entry) {
	total := countTests(entries)
	p.mu.Lock()
	defer p.mu.Unlock()
	if total > 0 {
		p.bar = NewProgressBar(total)
	}
}

func countTests(entries []*model.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Kind == model.KindTest {
			n++
		}
		n += countTests(e.Children)
	}
	return n
}

func (p *RunPrinter) OnTestBegin(string) {}

func (p *RunPrinter) OnTestEnd(testID string, ok bool, _ time.Duration, _ *reporter.TestError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[testID] {
		return
	}
	p.seen[testID] = true
	if ok {
		p.passed++
	} else {
		p.failed++
	}
	if p.bar != nil {
		p.bar.Update(p.passed, p.failed)
	}
}

func (p *RunPrinter) OnStepBegin(string, string, string, *model.Location) {}
func (p *RunPrinter) OnStepEnd(string, string, time.Duration)            {}

func (p *RunPrinter) OnError(testErr reporter.TestError) {
	NewFormatter().Warn("runner error: %s", testErr.Message)
}

func (p *RunPrinter) OnEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
	}
}
