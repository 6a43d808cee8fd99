// Package bridge spawns the external test runner in one of its modes and
// wires a framed transport to it. All results stream back through the
// reporter side channel; the bridge itself only manages processes, pipes and
// environment.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"trb/internal/config"
	"trb/internal/transport"
)

// Mode selects the runner invocation shape.
type Mode string

const (
	ModeList  Mode = "list"
	ModeRun   Mode = "run"
	ModeDebug Mode = "debug"
)

// Environment variables handed to the child. One names the reporter the
// runner should load, the other carries the side-channel endpoint: fd:3/4
// for the pipe pair, or a ws:// URL in debug mode.
const (
	EnvReporter         = "TRB_REPORTER"
	EnvReporterEndpoint = "TRB_REPORTER_ENDPOINT"

	reporterModule = "trb-oop-reporter"
	pipeEndpoint   = "fd:3/4"
)

// ErrRunnerNotFound is returned before any process is spawned when the
// runner executable cannot be located.
var ErrRunnerNotFound = errors.New("test runner executable not found")

// Request describes one runner invocation. Empty Locations means "all".
type Request struct {
	Config    *config.Config
	Locations []string
	Projects  []string
	Grep      string
	Env       map[string]string

	// Grace is how long a canceled run may keep winding down before its
	// process is force-killed. Zero means the default window.
	Grace time.Duration
}

// Bridge spawns runner processes. The resolver cache is explicit and shared
// so repeated invocations skip the executable search; invalidate it when the
// workspace layout changes.
type Bridge struct {
	cache *Cache

	// Optional sinks for the child's regular output streams.
	OnStdout func(line string)
	OnStderr func(line string)
}

// New creates a Bridge around a resolver cache.
func New(cache *Cache) *Bridge {
	return &Bridge{cache: cache}
}

// Run is one spawned runner process with its attached transport.
type Run struct {
	Transport transport.Transport

	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

// Done is closed once the process has exited and its transport is closed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// ExitErr returns the process exit error, if any, after Done.
func (r *Run) ExitErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitErr
}

// Start resolves the runner, spawns it in the given mode and returns once the
// framed transport is connected: immediately for the pipe pair, after the
// runner dials back in for debug mode. The handler receives all inbound
// frames and the close notification.
func (b *Bridge) Start(ctx context.Context, mode Mode, req Request, h transport.Handler) (*Run, error) {
	runner, err := b.cache.Resolve(req.Config)
	if err != nil {
		return nil, err
	}
	if err := b.cache.CheckVersion(runner); err != nil {
		return nil, err
	}

	if mode == ModeDebug {
		return b.startDebug(ctx, runner, req, h)
	}
	return b.startPiped(ctx, mode, runner, req, h)
}

func (b *Bridge) startPiped(ctx context.Context, mode Mode, runner string, req Request, h transport.Handler) (*Run, error) {
	// Side-channel pipe pair: the child reads control frames on fd 3 and
	// writes events on fd 4.
	childR, hostW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("reporter pipe: %w", err)
	}
	hostR, childW, err := os.Pipe()
	if err != nil {
		childR.Close()
		hostW.Close()
		return nil, fmt.Errorf("reporter pipe: %w", err)
	}

	cmd := spawn(ctx, runner, buildArgs(mode, req), req.Grace)
	cmd.Dir = req.Config.Dir()
	cmd.Env = buildEnv(req, pipeEndpoint)
	cmd.ExtraFiles = []*os.File{childR, childW}

	tr := transport.NewPipe(hostR, hostW, h)
	run, err := b.launch(cmd, tr)

	// The child owns its ends now; keeping them open in the host would
	// mask the child's EOF.
	childR.Close()
	childW.Close()

	if err != nil {
		tr.Close()
		return nil, err
	}
	tr.Start()
	return run, nil
}

// spawn builds the child command. Context cancellation must not kill the
// child outright: a canceled run first gets a stop frame and a grace window
// to wind down and report its end, so the context only arms a delayed kill
// as the backstop for a child that never exits.
func spawn(ctx context.Context, runner string, args []string, grace time.Duration) *exec.Cmd {
	cmd := exec.CommandContext(ctx, runner, args...)
	cmd.Cancel = func() error { return os.ErrProcessDone }
	cmd.WaitDelay = killDelay(grace)
	return cmd
}

func killDelay(grace time.Duration) time.Duration {
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return grace + 5*time.Second
}

func (b *Bridge) launch(cmd *exec.Cmd, tr transport.Transport) (*Run, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}

	run := &Run{Transport: tr, cmd: cmd, done: make(chan struct{})}

	go drain(stdout, b.OnStdout)
	go drain(stderr, b.OnStderr)
	go func() {
		err := cmd.Wait()
		run.mu.Lock()
		run.exitErr = err
		run.mu.Unlock()
		// A child that exits before reporting end still resolves the
		// pending listener wait through the transport close path.
		if tr != nil {
			tr.Close()
		}
		close(run.done)
	}()
	return run, nil
}

func drain(r interface{ Read([]byte) (int, error) }, sink func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if sink != nil {
			sink(scanner.Text())
		}
	}
}

// buildArgs constructs the runner command line for one mode. The config is
// always passed as -c with its basename; the working directory carries the
// rest of the path.
func buildArgs(mode Mode, req Request) []string {
	args := []string{"-c", req.Config.Base()}

	switch mode {
	case ModeList:
		args = append(args, "--list", "--reporter=null")
	case ModeRun:
		args = append(args, "--repeat-each=1", "--retries=0")
	case ModeDebug:
		args = append(args, "--headed", "--timeout=0", "--workers=1")
	}

	if mode != ModeList {
		for _, p := range req.Projects {
			args = append(args, "--project="+p)
		}
		if req.Grep != "" {
			args = append(args, "--grep="+req.Grep)
		}
	}

	args = append(args, req.Locations...)
	return args
}

// scrubbedEnvPrefixes are stripped from the inherited environment so a child
// spawned from an already-instrumented host is not double-instrumented.
var scrubbedEnvPrefixes = []string{
	EnvReporter + "=",
	EnvReporterEndpoint + "=",
	"NODE_OPTIONS=",
}

func buildEnv(req Request, endpoint string) []string {
	env := make([]string, 0, len(os.Environ())+len(req.Env)+3)
	for _, kv := range os.Environ() {
		if scrubbed(kv) {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range req.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, "FORCE_COLOR=1")
	env = append(env, EnvReporter+"="+reporterModule)
	env = append(env, EnvReporterEndpoint+"="+endpoint)
	return env
}

func scrubbed(kv string) bool {
	for _, prefix := range scrubbedEnvPrefixes {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}
