/*
Package protocol defines the JSON wire format exchanged between chat clients and the server.

Every websocket text frame carries one Event envelope: a type name and a type-specific payload.
The server and the client reconnection shell share these definitions.
*/
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the meaning of an Event.
type EventType string

// Inbound events, sent by clients.
const (
	TypeJoinRoom    EventType = "joinRoom"
	TypeSendMessage EventType = "sendMessage"
	TypeLeaveRoom   EventType = "leaveRoom"
	TypeHeartbeat   EventType = "heartbeat"
)

// Outbound events addressed to a single connection.
const (
	TypeRooms        EventType = "rooms"
	TypeJoined       EventType = "joined"
	TypeLeft         EventType = "left"
	TypeError        EventType = "errorSignal"
	TypeHeartbeatAck EventType = "heartbeatAck"
	TypeKicked       EventType = "kicked"
)

// Outbound events fanned out to every member of a room.
const (
	TypeMemberJoined EventType = "memberJoined"
	TypeMemberLeft   EventType = "memberLeft"
	TypeRoster       EventType = "roster"
	TypeMessage      EventType = "message"
)

const (
	// CloseSessionKicked is the websocket close code (4000-4999 private range) telling a
	// client that its identity was claimed by a newer connection.
	CloseSessionKicked = 4001

	// CloseStale is the websocket close code used when a connection is reaped for silence.
	CloseStale = 4002
)

// Event is the envelope of every frame.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event, marshaling payload into the envelope.
func NewEvent(eventType EventType, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: eventType}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: raw}, nil
}

// Decode unmarshals the payload into dst. An absent payload leaves dst untouched.
func (e Event) Decode(dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// JoinRoomPayload asks the server to place the connection in a room under an identity.
type JoinRoomPayload struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// SendMessagePayload carries a chat line typed by the user.
type SendMessagePayload struct {
	Text string `json:"text"`
}

// RoomsPayload advertises the room catalog.
type RoomsPayload struct {
	Rooms []string `json:"rooms"`
}

// JoinedPayload acknowledges a successful join.
type JoinedPayload struct {
	Room        string `json:"room"`
	WelcomeText string `json:"welcomeText"`
}

// LeftPayload acknowledges a voluntary leave.
type LeftPayload struct {
	Room             string `json:"room"`
	ConfirmationText string `json:"confirmationText"`
}

// ErrorPayload reports a failed operation to the connection that issued it.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// KickedPayload tells a displaced connection why it is being closed.
type KickedPayload struct {
	Reason string `json:"reason"`
}

// MemberPayload announces that an identity entered or left a room.
type MemberPayload struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// RosterPayload lists the distinct identities currently in a room.
type RosterPayload struct {
	Room       string   `json:"room"`
	Identities []string `json:"identities"`
}

// MessagePayload is a chat line as delivered to room members.
type MessagePayload struct {
	ID                 string    `json:"id"`
	Text               string    `json:"text"`
	SenderIdentity     string    `json:"senderIdentity"`
	Room               string    `json:"room"`
	SentAt             time.Time `json:"sentAt"`
	SenderConnectionID string    `json:"senderConnectionId"`
}
