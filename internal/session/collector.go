package session

import (
	"sync"
	"time"

	"trb/internal/domain"
	"trb/internal/model"
	"trb/internal/reporter"
)

// listCollector captures the entry forest announced by a list-mode run.
type listCollector struct {
	mu      sync.Mutex
	entries []*model.Entry
}

func newListCollector() *listCollector {
	return &listCollector{}
}

func (c *listCollector) OnBegin(entries []*model.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
}

func (c *listCollector) OnTestBegin(string)                                            {}
func (c *listCollector) OnTestEnd(string, bool, time.Duration, *reporter.TestError)    {}
func (c *listCollector) OnStepBegin(string, string, string, *model.Location)           {}
func (c *listCollector) OnStepEnd(string, string, time.Duration)                       {}
func (c *listCollector) OnError(reporter.TestError)                                    {}
func (c *listCollector) OnEnd()                                                        {}

// runCollector records outcomes keyed by test id while forwarding every
// event to an optional downstream listener. Events for concurrently running
// tests interleave, so all state is keyed by id.
type runCollector struct {
	forward reporter.TestListener

	mu       sync.Mutex
	byID     map[string]*model.Entry
	outcomes []domain.TestOutcome
	index    map[string]int
}

func newRunCollector(forward reporter.TestListener) *runCollector {
	return &runCollector{
		forward: forward,
		byID:    make(map[string]*model.Entry),
		index:   make(map[string]int),
	}
}

func (c *runCollector) OnBegin(entries []*model.Entry) {
	c.mu.Lock()
	c.indexEntries(entries)
	c.mu.Unlock()
	if c.forward != nil {
		c.forward.OnBegin(entries)
	}
}

func (c *runCollector) indexEntries(entries []*model.Entry) {
	for _, e := range entries {
		if e.Kind == model.KindTest {
			c.byID[e.ID] = e
		}
		c.indexEntries(e.Children)
	}
}

func (c *runCollector) OnTestBegin(testID string) {
	if c.forward != nil {
		c.forward.OnTestBegin(testID)
	}
}

func (c *runCollector) OnTestEnd(testID string, ok bool, duration time.Duration, testErr *reporter.TestError) {
	outcome := domain.TestOutcome{
		TestID:   testID,
		Ok:       ok,
		Duration: duration,
	}
	c.mu.Lock()
	if e, found := c.byID[testID]; found {
		outcome.Title = e.Title
		outcome.File = e.File
		outcome.Line = e.Line
	}
	if testErr != nil {
		failure := &domain.TestFailure{Message: testErr.Message, Stack: testErr.Stack}
		if testErr.Location != nil {
			failure.File = testErr.Location.File
			failure.Line = testErr.Location.Line
		}
		outcome.Failure = failure
	}
	if i, seen := c.index[testID]; seen {
		c.outcomes[i] = outcome
	} else {
		c.index[testID] = len(c.outcomes)
		c.outcomes = append(c.outcomes, outcome)
	}
	c.mu.Unlock()

	if c.forward != nil {
		c.forward.OnTestEnd(testID, ok, duration, testErr)
	}
}

func (c *runCollector) OnStepBegin(stepID, testID, title string, location *model.Location) {
	if c.forward != nil {
		c.forward.OnStepBegin(stepID, testID, title, location)
	}
}

func (c *runCollector) OnStepEnd(stepID, testID string, duration time.Duration) {
	if c.forward != nil {
		c.forward.OnStepEnd(stepID, testID, duration)
	}
}

func (c *runCollector) OnError(testErr reporter.TestError) {
	if c.forward != nil {
		c.forward.OnError(testErr)
	}
}

func (c *runCollector) OnEnd() {
	if c.forward != nil {
		c.forward.OnEnd()
	}
}

func (c *runCollector) output(duration time.Duration) *domain.RunOutput {
	c.mu.Lock()
	defer c.mu.Unlock()

	passed, failed := 0, 0
	for _, o := range c.outcomes {
		if o.Ok {
			passed++
		} else {
			failed++
		}
	}
	return &domain.RunOutput{
		Meta: domain.RunMeta{
			Total:           len(c.outcomes),
			Passed:          passed,
			Failed:          failed,
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Timestamp:       time.Now().Format(time.RFC3339),
		},
		Outcomes: append([]domain.TestOutcome(nil), c.outcomes...),
	}
}
