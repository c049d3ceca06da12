package fanout

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/pubsub"
)

// Local delivers a frame to this node's members of a room.
type Local interface {
	DeliverToRoom(room string, data []byte, exclude string)
}

type outbound struct {
	room    string
	data    []byte
	exclude string
}

// Relay mirrors room broadcasts between nodes. Publish installs as a hub
// broadcast hook; Run replays other nodes' broadcasts into the local hub.
// Frames published by this node are ignored on the way back in.
type Relay struct {
	bus    pubsub.Bus
	local  Local
	nodeID string
	out    chan outbound

	closeOnce sync.Once
	doneCh    chan struct{}
}

func NewRelay(bus pubsub.Bus, local Local, nodeID string, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Relay{
		bus:    bus,
		local:  local,
		nodeID: nodeID,
		out:    make(chan outbound, queueSize),
		doneCh: make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run exits.
func (r *Relay) Done() <-chan struct{} { return r.doneCh }

// Publish queues a locally broadcast frame for the other nodes. It never
// blocks; frames are dropped when the queue is full.
func (r *Relay) Publish(room string, data []byte, exclude string) {
	select {
	case r.out <- outbound{room: room, data: data, exclude: exclude}:
	default:
		l := log.L()
		l.Warn().Str(log.FieldRoom, room).Msg("fanout queue full, dropping broadcast")
	}
}

// Run subscribes to every room channel and blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	defer r.closeOnce.Do(func() { close(r.doneCh) })

	events, err := r.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	l := log.L()
	l.Info().Str(log.FieldNodeID, r.nodeID).Msg("fanout relay started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.publishLoop(ctx)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.handleEvent(ev)
		}
	}
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.out:
			r.publish(ctx, msg)
		}
	}
}

func (r *Relay) publish(ctx context.Context, msg outbound) {
	ev := pubsub.NewRoomBroadcast(msg.room, r.nodeID, msg.exclude, msg.data)
	if err := r.bus.Publish(ctx, ev); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoom, msg.room).Msg("fanout: publish failed")
	}
}

func (r *Relay) handleEvent(ev *pubsub.Event) {
	if err := ev.Validate(); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("fanout: ignoring event")
		return
	}
	if ev.Origin == r.nodeID {
		return
	}
	r.local.DeliverToRoom(ev.Room, ev.Frame, ev.Exclude)
}
