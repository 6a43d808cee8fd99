package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket frames JSON messages over a websocket connection: one text message
// per frame. Used in debug mode, where the runner dials out to the host
// because it is itself embedded inside a debugger-launched process.
type Socket struct {
	conn *websocket.Conn
	h    Handler

	writeMu   sync.Mutex
	closeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewSocket wraps an accepted websocket connection. Start must be called to
// begin dispatching inbound frames.
func NewSocket(conn *websocket.Conn, h Handler) *Socket {
	return &Socket{conn: conn, h: h}
}

// Start launches the read loop.
func (s *Socket) Start() {
	go s.readLoop()
}

// Send marshals a frame as one text message.
func (s *Socket) Send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.IsClosed() {
		return ErrClosed
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// IsClosed reports whether Close has run.
func (s *Socket) IsClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// Close sends a best-effort close message, drops the connection, and fires
// the handler's close notification exactly once.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()

		s.conn.Close()
		s.h.HandleClose()
	})
}

func (s *Socket) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.Close()
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			// Parse or die: a peer sending malformed JSON gets cut off.
			s.Close()
			return
		}
		s.h.HandleFrame(f)
	}
}
