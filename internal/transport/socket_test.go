package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialSocket stands up a websocket server whose accepted connection becomes
// the host-side Socket, and returns the peer (runner-side) connection.
func dialSocket(t *testing.T, h Handler) (*Socket, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	accepted := make(chan *Socket, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		s := NewSocket(conn, h)
		s.Start()
		accepted <- s
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	select {
	case s := <-accepted:
		return s, peer
	case <-time.After(2 * time.Second):
		t.Fatal("connection never accepted")
		return nil, nil
	}
}

func TestSocket_RoundTrip(t *testing.T) {
	h := newRecordingHandler()
	s, peer := dialSocket(t, h)

	data, _ := json.Marshal(Frame{Method: "onBegin"})
	require.NoError(t, peer.WriteMessage(websocket.TextMessage, data))
	waitFrames(t, h, 1)
	assert.Equal(t, []string{"onBegin"}, h.methods())

	require.NoError(t, s.Send(Frame{Method: "stop"}))
	_, got, err := peer.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(got, &f))
	assert.Equal(t, "stop", f.Method)

	s.Close()
	h.waitClosed(t)
}

func TestSocket_MalformedMessageCloses(t *testing.T) {
	h := newRecordingHandler()
	s, peer := dialSocket(t, h)

	require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte("{nope")))

	h.waitClosed(t)
	assert.True(t, s.IsClosed())
	assert.Equal(t, ErrClosed, s.Send(Frame{Method: "stop"}))
}

func TestSocket_PeerDisconnectClosesOnce(t *testing.T) {
	h := newRecordingHandler()
	s, peer := dialSocket(t, h)

	peer.Close()
	h.waitClosed(t)

	s.Close()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.closeCount())
}
