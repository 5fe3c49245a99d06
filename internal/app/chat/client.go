/*
Package chat contains the presence and room coordination core of the chat server.

This file defines the Client struct, representing an active WebSocket connection. It decodes
inbound events for the Coordinator (ReadPump) and writes queued outbound events, pings and the
final close frame (WritePump).
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roomchat/internal/app/protocol"
	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the outbound queue of each client.
	sendBufferSize = 256
)

var (
	errClientClosed = errors.New("client connection closed")
	errQueueFull    = errors.New("client send queue full")
)

// Dispatcher is the set of presence operations a Client drives from inbound events.
type Dispatcher interface {
	Join(id, identity, room string) error
	Send(id, text string) error
	Leave(id string) error
	Heartbeat(id string) error
	Disconnect(id, reason string) error
}

// Client struct represents an active WebSocket connection.
type Client struct {
	// opaque connection identifier assigned at upgrade time.
	id string

	// receiver of decoded inbound events.
	dispatcher Dispatcher

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// closed once the connection should be shut down.
	done chan struct{}

	// guards done and the close frame fields.
	closeOnce sync.Once

	// close frame written by WritePump on shutdown.
	closeCode   int
	closeReason string

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(id string, dispatcher Dispatcher, wsConn *websocket.Conn) *Client {
	return &Client{
		id:         id,
		dispatcher: dispatcher,
		conn:       wsConn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		logger:     logx.Logger().With().Str("connection_id", id).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Send marshals ev and queues it without blocking.
func (c *Client) Send(ev protocol.Event) error {
	messageBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- messageBytes:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return errQueueFull
	}
}

// Close asks WritePump to flush queued frames, write a close frame with code and reason,
// and close the socket. It never blocks and is safe to call more than once.
func (c *Client) Close(code int, reason string) error {
	if code == 0 {
		code = websocket.CloseNormalClosure
	}

	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
	return nil
}

// ReadPump reads frames until the connection fails, then reports the disconnect.
func (c *Client) ReadPump() {
	reason := "connection closed"
	defer func() { c.cleanupOnDisconnect(reason) }()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			reason = err.Error()
			return
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect evicts the connection and stops the write side.
func (c *Client) cleanupOnDisconnect(reason string) {
	c.logger.Debug().Str("reason", reason).Msg("Client connection cleanup starting.")

	if err := c.dispatcher.Disconnect(c.id, reason); err != nil {
		c.logger.Warn().Err(err).Msg("Disconnect failed")
	}

	_ = c.Close(websocket.CloseNormalClosure, "")
}

// processInboundMessage decodes one frame and dispatches it.
func (c *Client) processInboundMessage(messageBytes []byte) {
	var inbound protocol.Event
	if err := json.Unmarshal(messageBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).Int("frame_bytes", len(messageBytes)).Msg("Client sent invalid JSON")
		c.sendError(errs.NewError(errs.ErrInvalidPayload))
		return
	}

	var err error

	switch inbound.Type {
	case protocol.TypeJoinRoom:
		var payload protocol.JoinRoomPayload
		if err = inbound.Decode(&payload); err == nil {
			err = c.dispatcher.Join(c.id, payload.Identity, payload.Room)
		}

	case protocol.TypeSendMessage:
		var payload protocol.SendMessagePayload
		if err = inbound.Decode(&payload); err == nil {
			err = c.dispatcher.Send(c.id, payload.Text)
		}

	case protocol.TypeLeaveRoom:
		err = c.dispatcher.Leave(c.id)

	case protocol.TypeHeartbeat:
		err = c.dispatcher.Heartbeat(c.id)

	default:
		c.logger.Warn().Str("msg_type", string(inbound.Type)).Msg("Client sent unsupported message type")
		c.sendError(errs.NewError(errs.ErrInvalidPayload))
		return
	}

	if err == nil {
		return
	}

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		c.logger.Debug().Str("msg_type", string(inbound.Type)).Str("kind", customErr.Kind).Msg("Operation rejected")
		return
	}

	c.logger.Warn().Err(err).Str("msg_type", string(inbound.Type)).Msg("Client sent invalid payload")
	c.sendError(errs.NewError(errs.ErrInvalidPayload))
}

// sendError queues an errorSignal for problems detected before reaching the Coordinator.
func (c *Client) sendError(customErr *errs.CustomError) {
	ev, err := protocol.NewEvent(protocol.TypeError, protocol.ErrorPayload{
		Kind:    customErr.Kind,
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build error event")
		return
	}

	if err := c.Send(ev); err != nil {
		c.logger.Error().Err(err).Msg("Failed to queue error message")
	}
}

// WritePump writes queued frames and periodic pings until Close is called or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeFrame(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.flushAndClose()
			return
		}
	}
}

// flushAndClose writes whatever is still queued, then the close frame.
func (c *Client) flushAndClose() {
	for {
		select {
		case message := <-c.send:
			if !c.writeFrame(websocket.TextMessage, message) {
				return
			}
		default:
			closeMessage := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			if !c.writeFrame(websocket.CloseMessage, closeMessage) {
				c.logger.Debug().Int("close_code", c.closeCode).Msg("Failed to send close frame")
			}
			return
		}
	}
}

// writeFrame writes one frame under the write deadline and reports whether the pump may continue.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("frame_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}
