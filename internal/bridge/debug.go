package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"trb/internal/transport"
)

// startDebug spawns the runner in debug mode. Instead of a pipe pair, the
// host opens a local listening websocket endpoint and hands its URL to the
// child, which dials back out once its debugger harness is up. Exactly one
// inbound connection is accepted as the framed transport.
func (b *Bridge) startDebug(ctx context.Context, runner string, req Request, h transport.Handler) (*Run, error) {
	ep, err := newDebugEndpoint()
	if err != nil {
		return nil, err
	}

	cmd := spawn(ctx, runner, buildArgs(ModeDebug, req), req.Grace)
	cmd.Dir = req.Config.Dir()
	cmd.Env = buildEnv(req, ep.url())

	run, err := b.launch(cmd, nil)
	if err != nil {
		ep.close()
		return nil, err
	}

	conn, err := ep.await(ctx, run.done)
	if err != nil {
		ep.close()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-run.done
		return nil, err
	}

	tr := transport.NewSocket(conn, h)
	run.Transport = tr
	tr.Start()

	// From here the run's exit goroutine cannot see the transport (it was
	// created with nil); close it ourselves when the process goes away.
	go func() {
		<-run.done
		tr.Close()
		ep.close()
	}()
	return run, nil
}

// debugEndpoint is the one-shot websocket acceptor for debug mode.
type debugEndpoint struct {
	ln     net.Listener
	srv    *http.Server
	connCh chan *websocket.Conn
}

func newDebugEndpoint() (*debugEndpoint, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("debug endpoint: %w", err)
	}

	ep := &debugEndpoint{
		ln:     ln,
		connCh: make(chan *websocket.Conn, 1),
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case ep.connCh <- conn:
		default:
			// Only the first connection becomes the transport.
			conn.Close()
		}
	})
	ep.srv = &http.Server{Handler: mux}
	go ep.srv.Serve(ln)
	return ep, nil
}

func (ep *debugEndpoint) url() string {
	return "ws://" + ep.ln.Addr().String()
}

// await blocks until the runner connects, the process exits, or ctx ends.
func (ep *debugEndpoint) await(ctx context.Context, procDone <-chan struct{}) (*websocket.Conn, error) {
	select {
	case conn := <-ep.connCh:
		return conn, nil
	case <-procDone:
		return nil, fmt.Errorf("runner exited before connecting to the debug endpoint")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (ep *debugEndpoint) close() {
	ep.srv.Close()
}
