package domain

import "time"

// Session binds one live connection to a participant and a room. It is a
// value: the registry hands out copies and never mutates one after join.
type Session struct {
	ConnectionID string
	Username     string
	Room         string
	JoinedAt     time.Time
}

// ChatMessage is a formatted, attributable chat event.
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Time     string `json:"time"`
}

// Record is a persisted chat message. ID is assigned by the store and is
// only meaningful as an insertion-order key inside that store.
type Record struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Text      string    `json:"msg"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord builds an unsaved record from a formatted message.
func NewRecord(room string, msg ChatMessage) Record {
	return Record{
		Room:     room,
		Username: msg.Username,
		Text:     msg.Text,
		Time:     msg.Time,
	}
}
