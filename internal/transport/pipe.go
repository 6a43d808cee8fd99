package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// frameDelimiter terminates each UTF-8 JSON frame on the pipe variant.
const frameDelimiter = 0x00

// ErrClosed is returned by Send after the transport has closed.
var ErrClosed = errors.New("transport closed")

// Pipe frames JSON messages over a byte stream pair, typically the
// side-channel fds of a spawned runner. Frames are NUL-terminated; a receive
// buffer accumulates until a terminator is found and partial trailing data is
// retained for the next read.
type Pipe struct {
	r io.Reader
	w io.Writer
	h Handler

	writeMu   sync.Mutex
	closeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewPipe wraps a reader/writer pair. Start must be called to begin
// dispatching inbound frames.
func NewPipe(r io.Reader, w io.Writer, h Handler) *Pipe {
	return &Pipe{r: r, w: w, h: h}
}

// Start launches the read loop.
func (p *Pipe) Start() {
	go p.readLoop()
}

// Send marshals a frame and writes it with the trailing terminator.
func (p *Pipe) Send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.IsClosed() {
		return ErrClosed
	}
	if _, err := p.w.Write(append(data, frameDelimiter)); err != nil {
		return err
	}
	return nil
}

// IsClosed reports whether Close has run.
func (p *Pipe) IsClosed() bool {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	return p.closed
}

// Close tears down both stream ends and fires the handler's close
// notification exactly once. Safe to call repeatedly and from the read loop.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() {
		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		if c, ok := p.r.(io.Closer); ok {
			c.Close()
		}
		if c, ok := p.w.(io.Closer); ok {
			c.Close()
		}
		p.h.HandleClose()
	})
}

func (p *Pipe) readLoop() {
	buf := make([]byte, 32*1024)
	var pending []byte
	for {
		n, err := p.r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, frameDelimiter)
				if i < 0 {
					break
				}
				raw := pending[:i]
				pending = pending[i+1:]
				if len(raw) == 0 {
					continue
				}
				var f Frame
				if uerr := json.Unmarshal(raw, &f); uerr != nil {
					// Malformed frame: the channel is unusable.
					p.Close()
					return
				}
				p.h.HandleFrame(f)
			}
		}
		if err != nil {
			p.Close()
			return
		}
	}
}
