// internal/realtime/event/event.go

// Package event defines the wire format shared by the websocket channel and
// the services that publish into it.
package event

import (
	"encoding/json"
	"log"
	"time"
)

// Event is the envelope for every frame on the live channel.
type Event struct {
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Type names a wire event.
type Type string

// Inbound (client -> server) events.
const (
	TypeJoinRoom           Type = "join_room"
	TypeLeaveRoom          Type = "leave_room"
	TypeSendMessage        Type = "send_message"
	TypeTypingStart        Type = "typing_start"
	TypeTypingStop         Type = "typing_stop"
	TypeAddReaction        Type = "add_reaction"
	TypeCreateRoom         Type = "create_room"
	TypeSendPrivateMessage Type = "send_private_message"
	TypePrivateTypingStart Type = "private_typing_start"
	TypePrivateTypingStop  Type = "private_typing_stop"
	TypeMarkRead           Type = "mark_read"
)

// Outbound (server -> client) events.
const (
	TypeNewMessage            Type = "new_message"
	TypeNewPrivateMessage     Type = "new_private_message"
	TypeUserTyping            Type = "user_typing"
	TypeUserStopTyping        Type = "user_stop_typing"
	TypePrivateUserTyping     Type = "private_user_typing"
	TypePrivateUserStopTyping Type = "private_user_stop_typing"
	TypeReactionUpdate        Type = "reaction_update"
	TypeRoomCreated           Type = "room_created"
	TypeUserOnline            Type = "user_online"
	TypeUserOffline           Type = "user_offline"
	TypeNotification          Type = "notification"
	TypeJoinedRoom            Type = "joined_room"
	TypeLeftRoom              Type = "left_room"
	TypeAuthError             Type = "auth_error"
	TypeError                 Type = "error"
	TypeMessageStatus         Type = "message_status"
	TypeMessageEdited         Type = "message_edited"
	TypeMessageDeleted        Type = "message_deleted"
)

// New wraps a payload into an envelope stamped with the current time.
func New(t Type, payload interface{}) Event {
	return Event{
		Type:      t,
		Data:      MustMarshal(payload),
		Timestamp: time.Now(),
	}
}

// MustMarshal marshals a payload, falling back to an empty object so a bad
// payload never tears down the caller's send path.
func MustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("event: marshal failed: %v", err)
		return json.RawMessage(`{}`)
	}
	return data
}
