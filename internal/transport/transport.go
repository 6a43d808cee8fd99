// Package transport carries discrete JSON frames in both directions over a
// raw byte stream (Pipe) or a message stream (Socket). Both variants share
// one contract: frames go out via Send, inbound frames and the single close
// notification arrive on a Handler, and Close is safe to call from any path.
package transport

import "encoding/json"

// Frame is one JSON message on the reporter side channel, shaped as either a
// request/notification (method+params) or a response (result/error).
type Frame struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Handler receives inbound frames and the close notification. HandleClose is
// invoked exactly once per transport, on every close path: explicit Close,
// peer disconnect, and malformed inbound data. Callers awaiting shutdown rely
// on that.
type Handler interface {
	HandleFrame(Frame)
	HandleClose()
}

// Transport is the shared contract of the pipe and socket variants.
type Transport interface {
	Send(Frame) error
	Close()
	IsClosed() bool
}
