package formatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC), "9:05 am"},
		{time.Date(2024, 3, 1, 21, 47, 59, 0, time.UTC), "9:47 pm"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "12:00 am"},
		{time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), "12:30 pm"},
	}
	for _, tc := range cases {
		at := tc.at
		f := New(WithClock(func() time.Time { return at }), WithLocation(time.UTC))
		msg := f.Format("alice", "hi")
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, tc.want, msg.Time)
	}
}

func TestFormatUsesLocation(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tz := time.FixedZone("UTC+8", 8*3600)
	f := New(WithClock(func() time.Time { return at }), WithLocation(tz))
	assert.Equal(t, "8:00 pm", f.Format("bot", "x").Time)
}
