package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

func TestJoinLookupRemove(t *testing.T) {
	r := NewMemoryRegistry()

	s, err := r.Join("c1", "alice", "general")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "general", s.Room)
	assert.False(t, s.JoinedAt.IsZero())

	got, err := r.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	removed, err := r.Remove("c1")
	require.NoError(t, err)
	assert.Equal(t, s, removed)

	_, err = r.Lookup("c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.Remove("c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, r.Verify())
}

func TestJoinConflictKeepsExistingSession(t *testing.T) {
	r := NewMemoryRegistry()
	_, err := r.Join("c1", "alice", "general")
	require.NoError(t, err)

	_, err = r.Join("c1", "mallory", "random")
	assert.ErrorIs(t, err, domain.ErrConflict)

	s, err := r.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, []string{"alice"}, r.MembersOf("general"))
	assert.Empty(t, r.MembersOf("random"))
	require.NoError(t, r.Verify())
}

func TestMembersOfKeepsJoinOrderAndDropsEmptyRooms(t *testing.T) {
	r := NewMemoryRegistry()
	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := r.Join(fmt.Sprintf("c%d", i), name, "general")
		require.NoError(t, err)
	}
	_, err := r.Join("x", "dave", "random")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "carol"}, r.MembersOf("general"))
	assert.Equal(t, []string{"c0", "c1", "c2"}, r.ConnectionsIn("general"))

	_, err = r.Remove("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, r.MembersOf("general"))

	_, err = r.Remove("x")
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, r.Rooms())
	assert.NotNil(t, r.MembersOf("random"))
	assert.Empty(t, r.MembersOf("random"))
	require.NoError(t, r.Verify())
}

func TestDuplicateDisplayNamesAreDistinctMembers(t *testing.T) {
	r := NewMemoryRegistry()
	_, _ = r.Join("c1", "sam", "general")
	_, _ = r.Join("c2", "sam", "general")
	assert.Equal(t, []string{"sam", "sam"}, r.MembersOf("general"))

	_, _ = r.Remove("c1")
	assert.Equal(t, []string{"c2"}, r.ConnectionsIn("general"))
}

func TestConnectionsInReturnsCopy(t *testing.T) {
	r := NewMemoryRegistry()
	_, _ = r.Join("c1", "alice", "general")
	ids := r.ConnectionsIn("general")
	ids[0] = "tampered"
	assert.Equal(t, []string{"c1"}, r.ConnectionsIn("general"))
}

// Random join/leave sequences must leave MembersOf equal to the names of
// sessions bound to each room.
func TestRandomSequencesKeepIndexConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rooms := []string{"a", "b", "c"}
	r := NewMemoryRegistry()
	model := map[string]domain.Session{}

	for step := 0; step < 2000; step++ {
		id := fmt.Sprintf("c%d", rng.Intn(40))
		if rng.Intn(2) == 0 {
			room := rooms[rng.Intn(len(rooms))]
			_, err := r.Join(id, "u"+id, room)
			if _, exists := model[id]; exists {
				require.ErrorIs(t, err, domain.ErrConflict)
			} else {
				require.NoError(t, err)
				model[id] = domain.Session{ConnectionID: id, Username: "u" + id, Room: room}
			}
		} else {
			_, err := r.Remove(id)
			if _, exists := model[id]; exists {
				require.NoError(t, err)
				delete(model, id)
			} else {
				require.ErrorIs(t, err, domain.ErrNotFound)
			}
		}
		require.NoError(t, r.Verify(), "step %d", step)
	}

	for _, room := range rooms {
		var want []string
		for _, s := range model {
			if s.Room == room {
				want = append(want, s.Username)
			}
		}
		got := r.MembersOf(room)
		sort.Strings(want)
		sort.Strings(got)
		assert.Equal(t, len(want), len(got), room)
		if len(want) > 0 {
			assert.Equal(t, want, got, room)
		}
	}
}

func TestConcurrentJoinSameConnection(t *testing.T) {
	r := NewMemoryRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.Join("same", fmt.Sprintf("u%d", i), "general"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Len(t, r.MembersOf("general"), 1)
	require.NoError(t, r.Verify())
}
