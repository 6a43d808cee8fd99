package transport

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler collects frames and close notifications.
type recordingHandler struct {
	mu     sync.Mutex
	frames []Frame
	closes int
	closed chan struct{}
	once   sync.Once
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan struct{})}
}

func (h *recordingHandler) HandleFrame(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, f)
}

func (h *recordingHandler) HandleClose() {
	h.mu.Lock()
	h.closes++
	h.mu.Unlock()
	h.once.Do(func() { close(h.closed) })
}

func (h *recordingHandler) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("transport never closed")
	}
}

func (h *recordingHandler) methods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, f := range h.frames {
		out = append(out, f.Method)
	}
	return out
}

func (h *recordingHandler) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func waitFrames(t *testing.T, h *recordingHandler, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		got := len(h.frames)
		h.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames", n)
}

func TestPipe_RoundTrip(t *testing.T) {
	hostIn, runnerOut := io.Pipe()
	runnerIn, hostOut := io.Pipe()

	h := newRecordingHandler()
	p := NewPipe(hostIn, hostOut, h)
	p.Start()

	// Runner side sends two frames in one write.
	go func() {
		a, _ := json.Marshal(Frame{Method: "onBegin"})
		b, _ := json.Marshal(Frame{Method: "onEnd"})
		var buf []byte
		buf = append(buf, a...)
		buf = append(buf, 0x00)
		buf = append(buf, b...)
		buf = append(buf, 0x00)
		runnerOut.Write(buf)
	}()

	waitFrames(t, h, 2)
	assert.Equal(t, []string{"onBegin", "onEnd"}, h.methods())

	// Host-to-runner direction carries the terminator too.
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := runnerIn.Read(buf)
		done <- buf[:n]
	}()
	require.NoError(t, p.Send(Frame{Method: "stop"}))
	sent := <-done
	require.NotEmpty(t, sent)
	assert.Equal(t, byte(0x00), sent[len(sent)-1])

	var f Frame
	require.NoError(t, json.Unmarshal(sent[:len(sent)-1], &f))
	assert.Equal(t, "stop", f.Method)

	p.Close()
	h.waitClosed(t)
}

func TestPipe_FrameBoundaryMidBuffer(t *testing.T) {
	hostIn, runnerOut := io.Pipe()

	h := newRecordingHandler()
	p := NewPipe(hostIn, io.Discard, h)
	p.Start()

	// One frame split across writes, the terminator of the first landing
	// mid-buffer together with the start of the second.
	a, _ := json.Marshal(Frame{Method: "onTestBegin"})
	b, _ := json.Marshal(Frame{Method: "onTestEnd"})
	go func() {
		runnerOut.Write(a[:3])
		runnerOut.Write(append(a[3:], 0x00))
		runnerOut.Write(append(append([]byte{}, b...), 0x00))
	}()

	waitFrames(t, h, 2)
	assert.Equal(t, []string{"onTestBegin", "onTestEnd"}, h.methods())
	p.Close()
}

func TestPipe_EmptyFramesSkipped(t *testing.T) {
	hostIn, runnerOut := io.Pipe()

	h := newRecordingHandler()
	p := NewPipe(hostIn, io.Discard, h)
	p.Start()

	a, _ := json.Marshal(Frame{Method: "onBegin"})
	go func() {
		runnerOut.Write([]byte{0x00, 0x00})
		runnerOut.Write(append(a, 0x00))
	}()

	waitFrames(t, h, 1)
	assert.Equal(t, []string{"onBegin"}, h.methods())
	p.Close()
}

func TestPipe_MalformedFrameCloses(t *testing.T) {
	hostIn, runnerOut := io.Pipe()

	h := newRecordingHandler()
	p := NewPipe(hostIn, io.Discard, h)
	p.Start()

	go runnerOut.Write([]byte("{not json\x00"))

	h.waitClosed(t)
	assert.True(t, p.IsClosed())
	assert.Error(t, p.Send(Frame{Method: "stop"}))
}

func TestPipe_PeerDisconnectCloses(t *testing.T) {
	hostIn, runnerOut := io.Pipe()

	h := newRecordingHandler()
	p := NewPipe(hostIn, io.Discard, h)
	p.Start()

	runnerOut.Close()

	h.waitClosed(t)
	assert.True(t, p.IsClosed())
}

func TestPipe_CloseExactlyOnce(t *testing.T) {
	hostIn, runnerOut := io.Pipe()
	_ = runnerOut

	h := newRecordingHandler()
	p := NewPipe(hostIn, io.Discard, h)
	p.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Close()
		}()
	}
	wg.Wait()
	h.waitClosed(t)

	// The read loop noticing the closed reader must not fire a second
	// notification.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.closeCount())
	assert.Equal(t, ErrClosed, p.Send(Frame{Method: "stop"}))
}
