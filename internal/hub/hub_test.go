package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/internal/registry"
)

type recorder struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (r *recorder) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, string(data))
	return nil
}

func (r *recorder) events(t *testing.T) []string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		var frame struct {
			Event string `json:"event"`
			Data  string `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(f), &frame))
		out = append(out, frame.Event+":"+frame.Data)
	}
	return out
}

func setup(t *testing.T, conns map[string]string) (*Hub, map[string]*recorder) {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	h := NewHub(reg)
	sinks := make(map[string]*recorder)
	for _, id := range []string{"a", "b", "c", "d"} {
		room, ok := conns[id]
		if !ok {
			continue
		}
		_, err := reg.Join(id, id, room)
		require.NoError(t, err)
		sinks[id] = &recorder{}
		h.Register(id, sinks[id])
	}
	return h, sinks
}

func TestBroadcastRespectsRoomAndExclude(t *testing.T) {
	h, sinks := setup(t, map[string]string{"a": "general", "b": "general", "c": "random"})

	require.NoError(t, h.BroadcastToRoom("general", "message", "hi", "a"))
	require.NoError(t, h.BroadcastToRoom("general", "message", "all", ""))

	assert.Equal(t, []string{"message:all"}, sinks["a"].events(t))
	assert.Equal(t, []string{"message:hi", "message:all"}, sinks["b"].events(t))
	assert.Empty(t, sinks["c"].events(t))
}

func TestDeliveryFailureDoesNotStopBroadcast(t *testing.T) {
	h, sinks := setup(t, map[string]string{"a": "general", "b": "general", "c": "general"})
	sinks["b"].err = errors.New("gone")

	require.NoError(t, h.BroadcastToRoom("general", "message", "x", ""))
	assert.Equal(t, []string{"message:x"}, sinks["a"].events(t))
	assert.Equal(t, []string{"message:x"}, sinks["c"].events(t))
}

func TestBroadcastSkipsUnattachedMembers(t *testing.T) {
	h, sinks := setup(t, map[string]string{"a": "general", "b": "general"})
	h.Unregister("b")

	require.NoError(t, h.BroadcastToRoom("general", "message", "x", ""))
	assert.Equal(t, []string{"message:x"}, sinks["a"].events(t))
	assert.Empty(t, sinks["b"].events(t))
	assert.Equal(t, 1, h.ClientCount())
}

func TestHoldDefersBroadcastButNotUnicast(t *testing.T) {
	h, sinks := setup(t, map[string]string{"a": "general"})

	h.Hold("a")
	require.NoError(t, h.BroadcastToRoom("general", "message", "live1", ""))
	require.NoError(t, h.Unicast("a", domain.EventChatMessage, "history"))
	require.NoError(t, h.BroadcastToRoom("general", "message", "live2", ""))
	assert.Equal(t, []string{"chatMessage:history"}, sinks["a"].events(t))

	h.Release("a")
	assert.Equal(t, []string{"chatMessage:history", "message:live1", "message:live2"}, sinks["a"].events(t))

	require.NoError(t, h.BroadcastToRoom("general", "message", "live3", ""))
	assert.Len(t, sinks["a"].events(t), 4)
}

func TestUnicastUnknownConnection(t *testing.T) {
	h, _ := setup(t, map[string]string{})
	assert.ErrorIs(t, h.Unicast("ghost", "message", "x"), ErrNotAttached)
	h.Hold("ghost")
	h.Release("ghost")
}

func TestHooksSeeEncodedFrame(t *testing.T) {
	h, _ := setup(t, map[string]string{"a": "general"})

	var gotRoom, gotExclude string
	var gotData []byte
	h.OnBroadcast(func(room string, data []byte, exclude string) {
		gotRoom, gotData, gotExclude = room, data, exclude
	})

	require.NoError(t, h.BroadcastToRoom("general", "message", "x", "a"))
	assert.Equal(t, "general", gotRoom)
	assert.Equal(t, "a", gotExclude)
	assert.JSONEq(t, `{"event":"message","data":"x"}`, string(gotData))

	gotRoom = ""
	h.DeliverToRoom("general", gotData, "")
	assert.Empty(t, gotRoom)
}

func TestEncodeFailureIsReturned(t *testing.T) {
	h, _ := setup(t, map[string]string{"a": "general"})
	assert.Error(t, h.BroadcastToRoom("general", "message", make(chan int), ""))
	assert.Error(t, h.Unicast("a", "message", make(chan int)))
}

func TestClientSendClosesSlowConsumer(t *testing.T) {
	c := &Client{ID: "slow", send: make(chan []byte, 1), done: make(chan struct{})}

	require.NoError(t, c.Send([]byte("1")))
	assert.ErrorIs(t, c.Send([]byte("2")), ErrSendBufferFull)

	select {
	case <-c.Done():
	default:
		t.Fatal("slow client should be closed")
	}
	assert.ErrorIs(t, c.Send([]byte("3")), ErrClientClosed)
	c.Close()
}
