package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomchat/internal/app/protocol"
)

// ErrSessionKicked reports that the server displaced this connection in favour of a newer one.
var ErrSessionKicked = errors.New("session replaced by another connection")

// Session is one live transport connection.
type Session interface {
	// Send writes one event. It may be called from several goroutines.
	Send(ev protocol.Event) error

	// Receive blocks until the next event arrives or the connection ends.
	// A displacement close is reported as ErrSessionKicked.
	Receive() (protocol.Event, error)

	// Close ends the connection. It is idempotent and unblocks Receive.
	Close() error
}

// Transport opens sessions.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// WebSocketTransport dials the chat server over websocket.
type WebSocketTransport struct {
	URL    string
	Dialer *websocket.Dialer
}

// NewWebSocketTransport returns a transport for url using a dialer with a handshake timeout.
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{
		URL: url,
		Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Dial opens one WebSocket session to the server URL, bounded by ctx.
func (t *WebSocketTransport) Dial(ctx context.Context) (Session, error) {
	conn, res, err := t.Dialer.DialContext(ctx, t.URL, nil)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.URL, err)
	}
	return &wsSession{conn: conn}, nil
}

// wsSession serializes data writes; gorilla allows one concurrent writer.
// WriteControl and Close are safe alongside it.
type wsSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *wsSession) Send(ev protocol.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return s.conn.WriteJSON(ev)
}

func (s *wsSession) Receive() (protocol.Event, error) {
	var ev protocol.Event
	if err := s.conn.ReadJSON(&ev); err != nil {
		if websocket.IsCloseError(err, protocol.CloseSessionKicked) {
			return protocol.Event{}, ErrSessionKicked
		}
		return protocol.Event{}, err
	}
	return ev, nil
}

func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
