// Package reporter interprets the frames streamed by a spawned runner as an
// ordered sequence of run lifecycle events and forwards them to a listener.
// It also owns cancellation: a stop request, a bounded grace period, and a
// forced transport close when the runner does not wind down in time.
package reporter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trb/internal/model"
	"trb/internal/transport"
)

// State of the protocol machine. Terminal states are StateCompleted (the
// runner reported onEnd) and StateClosed (transport closed, gracefully or
// forced).
type State int

const (
	StateIdle State = iota
	StateListening
	StateCompleted
	StateCanceling
	StateClosed
)

// Wire methods, runner to host.
const (
	methodBegin     = "onBegin"
	methodTestBegin = "onTestBegin"
	methodTestEnd   = "onTestEnd"
	methodStepBegin = "onStepBegin"
	methodStepEnd   = "onStepEnd"
	methodError     = "onError"
	methodEnd       = "onEnd"
)

// methodStop requests graceful cancellation, host to runner.
const methodStop = "stop"

// DefaultGracePeriod bounds how long a canceled run may keep its transport
// open before it is force-closed. Tuning constant, not correctness-critical.
const DefaultGracePeriod = 30 * time.Second

// TestError is a runner-reported failure with an optional source location,
// surfaced as result data rather than a host error.
type TestError struct {
	Message  string
	Stack    string
	Location *model.Location
}

// TestListener receives run lifecycle events. Within one run, events for a
// given test id are strictly ordered and step begin/end pairs nest, but
// events for different concurrently-running tests interleave arbitrarily, so
// implementations must key state by id rather than arrival order.
type TestListener interface {
	OnBegin(entries []*model.Entry)
	OnTestBegin(testID string)
	OnTestEnd(testID string, ok bool, duration time.Duration, testErr *TestError)
	OnStepBegin(stepID, testID, title string, location *model.Location)
	OnStepEnd(stepID, testID string, duration time.Duration)
	OnError(testErr TestError)
	OnEnd()
}

// Reporter drives a TestListener from inbound transport frames. It is the
// transport's Handler; wire it with transport.NewPipe/NewSocket and then
// Attach the transport.
type Reporter struct {
	listener TestListener
	grace    time.Duration

	mu         sync.Mutex
	state      State
	tr         transport.Transport
	canceled   bool
	graceTimer *time.Timer

	endOnce  sync.Once
	doneOnce sync.Once
	done     chan struct{}
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithGracePeriod overrides the cancellation grace period.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Reporter) { r.grace = d }
}

// New creates a Reporter forwarding to the given listener.
func New(listener TestListener, opts ...Option) *Reporter {
	r := &Reporter{
		listener: listener,
		grace:    DefaultGracePeriod,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach binds the transport and starts observing ctx for cancellation. If
// ctx is already canceled the stop sequence begins immediately.
func (r *Reporter) Attach(ctx context.Context, tr transport.Transport) {
	r.mu.Lock()
	r.tr = tr
	if r.state == StateIdle {
		r.state = StateListening
	}
	r.mu.Unlock()

	if ctx.Err() != nil {
		r.cancel()
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			r.cancel()
		case <-r.done:
		}
	}()
}

// Done is closed once the run has fully concluded: the transport closed after
// a graceful onEnd, an unexpected termination, or a forced cancel.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// State returns the current protocol state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// cancel sends a stop frame and arms the grace timer. Events other than the
// final end are suppressed from here on: results for tests in flight when
// cancellation landed must not be surfaced.
func (r *Reporter) cancel() {
	r.mu.Lock()
	if r.canceled || r.state == StateCompleted || r.state == StateClosed {
		r.mu.Unlock()
		return
	}
	r.canceled = true
	r.state = StateCanceling
	tr := r.tr
	r.graceTimer = time.AfterFunc(r.grace, func() {
		if tr != nil {
			tr.Close()
		}
	})
	r.mu.Unlock()

	if tr != nil {
		tr.Send(transport.Frame{Method: methodStop})
	}
}

// HandleFrame dispatches one inbound frame. Implements transport.Handler.
func (r *Reporter) HandleFrame(f transport.Frame) {
	if f.Method == methodEnd {
		r.finish(StateCompleted)
		return
	}

	r.mu.Lock()
	suppressed := r.canceled || r.state == StateCompleted || r.state == StateClosed
	r.mu.Unlock()
	if suppressed {
		return
	}

	switch f.Method {
	case methodBegin:
		entries, err := model.ParseEntries(f.Params)
		if err != nil {
			return
		}
		model.AssignIDs(entries)
		r.listener.OnBegin(entries)
	case methodTestBegin:
		var p testBeginParams
		if json.Unmarshal(f.Params, &p) == nil {
			r.listener.OnTestBegin(model.NormalizeID(p.TestID))
		}
	case methodTestEnd:
		var p testEndParams
		if json.Unmarshal(f.Params, &p) == nil {
			r.listener.OnTestEnd(model.NormalizeID(p.TestID), p.Ok, millis(p.Duration), p.Error.convert())
		}
	case methodStepBegin:
		var p stepBeginParams
		if json.Unmarshal(f.Params, &p) == nil {
			r.listener.OnStepBegin(p.StepID, model.NormalizeID(p.TestID), p.Title, p.Location.convert())
		}
	case methodStepEnd:
		var p stepEndParams
		if json.Unmarshal(f.Params, &p) == nil {
			r.listener.OnStepEnd(p.StepID, model.NormalizeID(p.TestID), millis(p.Duration))
		}
	case methodError:
		var p errorParams
		if json.Unmarshal(f.Params, &p) == nil {
			if converted := p.Error.convert(); converted != nil {
				r.listener.OnError(*converted)
			}
		}
	}
}

// HandleClose resolves the run when the transport goes away, whether after a
// graceful end, a runner crash, or a forced close. Implements
// transport.Handler.
func (r *Reporter) HandleClose() {
	r.finish(StateClosed)
}

func (r *Reporter) finish(terminal State) {
	transportGone := terminal == StateClosed

	r.mu.Lock()
	if r.state == StateCompleted && terminal == StateClosed {
		// Keep the graceful terminal state when our own post-end close
		// comes back around.
		terminal = StateCompleted
	}
	r.state = terminal
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	tr := r.tr
	r.mu.Unlock()

	// Exactly one end notification reaches the listener, whether the run
	// concluded with a real onEnd or the transport just went away.
	r.endOnce.Do(func() {
		r.listener.OnEnd()
	})

	if terminal == StateCompleted && tr != nil && !tr.IsClosed() {
		// onEnd received: this side closes the channel.
		tr.Close()
	}
	if transportGone {
		r.doneOnce.Do(func() { close(r.done) })
	}
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
