package pubsub

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const EventRoomBroadcast = "room_broadcast"

var ErrInvalidEvent = errors.New("invalid room event")

// Event is one encoded outbound frame addressed to a room.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Origin  string          `json:"origin"`
	Exclude string          `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
	SentAt  time.Time       `json:"sent_at"`
}

// NewRoomBroadcast wraps a frame broadcast on node origin.
func NewRoomBroadcast(room, origin, exclude string, frame []byte) *Event {
	return &Event{
		Type:    EventRoomBroadcast,
		Room:    room,
		Origin:  origin,
		Exclude: exclude,
		Frame:   frame,
		SentAt:  time.Now().UTC(),
	}
}

func (e *Event) Validate() error {
	switch {
	case e == nil:
		return ErrInvalidEvent
	case e.Type != EventRoomBroadcast:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	case e.Room == "":
		return fmt.Errorf("%w: missing room", ErrInvalidEvent)
	case len(e.Frame) == 0:
		return fmt.Errorf("%w: empty frame", ErrInvalidEvent)
	}
	return nil
}

func (e *Event) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Unmarshal decodes and validates a wire event.
func Unmarshal(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// RoomChannel is the Redis channel a room's broadcasts travel on.
func RoomChannel(prefix, room string) string {
	return prefix + ":room:" + room + ":broadcast"
}

// RoomPattern matches RoomChannel for every room.
func RoomPattern(prefix string) string {
	return RoomChannel(prefix, "*")
}
