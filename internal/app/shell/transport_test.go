package shell

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/app/protocol"
)

// echoThenClose echoes one frame, then closes with code.
func echoThenClose(t *testing.T, code int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(messageType, data)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, "bye"), time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(server.Close)
	return server
}

func dialTest(t *testing.T, server *httptest.Server) Session {
	t.Helper()
	transport := NewWebSocketTransport("ws" + strings.TrimPrefix(server.URL, "http"))
	session, err := transport.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	session := dialTest(t, echoThenClose(t, websocket.CloseNormalClosure))

	ev, err := protocol.NewEvent(protocol.TypeSendMessage, protocol.SendMessagePayload{Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, session.Send(ev))

	echoed, err := session.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeSendMessage, echoed.Type)

	_, err = session.Receive()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionKicked)
}

func TestWebSocketTransport_KickCloseCode(t *testing.T) {
	session := dialTest(t, echoThenClose(t, protocol.CloseSessionKicked))

	ev, err := protocol.NewEvent(protocol.TypeHeartbeat, nil)
	require.NoError(t, err)
	require.NoError(t, session.Send(ev))

	_, err = session.Receive()
	require.NoError(t, err)

	_, err = session.Receive()
	assert.ErrorIs(t, err, ErrSessionKicked)
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	transport := NewWebSocketTransport("ws://127.0.0.1:1/ws")
	_, err := transport.Dial(context.Background())
	assert.Error(t, err)
}
