package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

func appendN(t *testing.T, s *Store, room string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := s.Append(context.Background(), domain.Record{Room: room, Username: "u", Text: fmt.Sprintf("M%d", i)})
		require.NoError(t, err)
	}
}

func texts(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Text
	}
	return out
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	s := New(0)
	appendN(t, s, "general", 12)

	got, err := s.Recent(context.Background(), "general", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"M3", "M4", "M5", "M6", "M7", "M8", "M9", "M10", "M11", "M12"}, texts(got))
	for _, r := range got {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}
}

func TestRecentIsolatesRooms(t *testing.T) {
	s := New(0)
	appendN(t, s, "general", 3)
	appendN(t, s, "random", 2)

	got, err := s.Recent(context.Background(), "random", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "random", r.Room)
	}

	got, err = s.Recent(context.Background(), "empty", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMaxPerRoomEvictsOldest(t *testing.T) {
	s := New(5)
	appendN(t, s, "general", 8)

	got, err := s.Recent(context.Background(), "general", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"M4", "M5", "M6", "M7", "M8"}, texts(got))
}

func TestCancelledContext(t *testing.T) {
	s := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Append(ctx, domain.Record{Room: "general"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNonPositiveLimitReturnsEmpty(t *testing.T) {
	s := New(0)
	appendN(t, s, "general", 3)

	for _, limit := range []int{0, -1} {
		got, err := s.Recent(context.Background(), "general", limit)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got, "limit %d", limit)
	}
}
