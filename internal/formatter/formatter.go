package formatter

import (
	"time"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

// TimeLayout renders wall-clock time as "9:05 pm".
const TimeLayout = "3:04 pm"

// Formatter stamps chat text with a sender and a human-readable time.
type Formatter struct {
	now      func() time.Time
	location *time.Location
}

type Option func(*Formatter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithLocation renders times in loc instead of the process local zone.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) { f.location = loc }
}

func New(opts ...Option) *Formatter {
	f := &Formatter{now: time.Now, location: time.Local}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Formatter) Format(username, text string) domain.ChatMessage {
	return domain.ChatMessage{
		Username: username,
		Text:     text,
		Time:     f.now().In(f.location).Format(TimeLayout),
	}
}
