package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// Inbound events.
const (
	EventJoinRoom    = "joinRoom"
	EventChatMessage = "chatMessage"
)

// Outbound events. EventChatMessage doubles as the history replay event.
const (
	EventMessage   = "message"
	EventRoomUsers = "roomUsers"
	EventError     = "error"
)

// Error codes
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnknownEvent = "UNKNOWN_EVENT"
)

// Frame is the JSON envelope carried by every websocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutFrame is the outbound form of Frame.
type OutFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// EncodeFrame marshals an outbound event once so it can be fanned out as bytes.
func EncodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(OutFrame{Event: event, Data: data})
}

type JoinRoomMessage struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// Validate requires both fields to be non-blank.
func (m JoinRoomMessage) Validate() error {
	if strings.TrimSpace(m.Username) == "" || strings.TrimSpace(m.Room) == "" {
		return errors.New("username and room are required")
	}
	return nil
}

// ChatMessageIn accepts either a bare JSON string or {"text": "..."}.
type ChatMessageIn struct {
	Text string `json:"text"`
}

func (m *ChatMessageIn) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		m.Text = text
		return nil
	}
	type plain ChatMessageIn
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	m.Text = p.Text
	return nil
}

type RoomUsersMessage struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Code:    code,
		Message: message,
	}
}
