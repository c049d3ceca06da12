package hub

import (
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

var ErrNotAttached = errors.New("connection not attached to hub")

// Sink accepts encoded frames for one connection.
type Sink interface {
	Send(data []byte) error
}

// Members resolves the live connections of a room. The hub reads
// membership but never changes it.
type Members interface {
	ConnectionsIn(room string) []string
}

// BroadcastHook observes every room broadcast after local delivery.
type BroadcastHook func(room string, data []byte, exclude string)

type peer struct {
	mu      sync.Mutex
	sink    Sink
	held    bool
	pending [][]byte
}

func (p *peer) deliver(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.held {
		p.pending = append(p.pending, data)
		return nil
	}
	return p.sink.Send(data)
}

func (p *peer) direct(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink.Send(data)
}

// Hub delivers frames to attached connections. Broadcasts to a held
// connection are queued and flushed on Release, so a joining client can
// be sent its backfill before any room traffic.
type Hub struct {
	mu      sync.RWMutex
	peers   map[string]*peer // connectionID -> peer
	members Members
	hooks   []BroadcastHook
}

func NewHub(members Members) *Hub {
	return &Hub{
		peers:   make(map[string]*peer),
		members: members,
	}
}

// OnBroadcast adds a hook. Hooks must not block.
func (h *Hub) OnBroadcast(hook BroadcastHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

func (h *Hub) Register(id string, sink Sink) {
	h.mu.Lock()
	h.peers[id] = &peer{sink: sink}
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnectionID, id).Msg("client registered")
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnectionID, id).Msg("client unregistered")
}

func (h *Hub) peer(id string) *peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.peers[id]
}

// Hold queues room broadcasts for id until Release.
func (h *Hub) Hold(id string) {
	if p := h.peer(id); p != nil {
		p.mu.Lock()
		p.held = true
		p.mu.Unlock()
	}
}

// Release flushes queued broadcasts in arrival order and resumes direct
// delivery.
func (h *Hub) Release(id string) {
	p := h.peer(id)
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.pending
	p.pending = nil
	p.held = false
	for _, data := range pending {
		if err := p.sink.Send(data); err != nil {
			logDeliveryFailure(id, err)
			return
		}
	}
}

// Unicast sends to one connection, bypassing Hold.
func (h *Hub) Unicast(id, event string, payload interface{}) error {
	data, err := domain.EncodeFrame(event, payload)
	if err != nil {
		return err
	}

	p := h.peer(id)
	if p == nil {
		return ErrNotAttached
	}
	if err := p.direct(data); err != nil {
		logDeliveryFailure(id, err)
	}
	return nil
}

// BroadcastToRoom encodes payload once and delivers it to every connection
// in room except exclude. Per-connection failures are logged, never
// returned.
func (h *Hub) BroadcastToRoom(room, event string, payload interface{}, exclude string) error {
	data, err := domain.EncodeFrame(event, payload)
	if err != nil {
		return err
	}

	h.DeliverToRoom(room, data, exclude)

	h.mu.RLock()
	hooks := h.hooks
	h.mu.RUnlock()
	for _, hook := range hooks {
		hook(room, data, exclude)
	}
	return nil
}

// DeliverToRoom sends a pre-encoded frame to the local members of room
// without running hooks.
func (h *Hub) DeliverToRoom(room string, data []byte, exclude string) {
	for _, id := range h.members.ConnectionsIn(room) {
		if id == exclude {
			continue
		}
		p := h.peer(id)
		if p == nil {
			continue
		}
		if err := p.deliver(data); err != nil {
			logDeliveryFailure(id, err)
		}
	}
}

// ClientCount reports attached connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func logDeliveryFailure(id string, err error) {
	l := log.L()
	l.Debug().Err(err).Str(log.FieldConnectionID, id).Msg("delivery failed")
}
