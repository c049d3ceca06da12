package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/weiawesome/wes-io-live/chatroom/internal/audit"
	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/directory"
	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/internal/formatter"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history"
	"github.com/weiawesome/wes-io-live/chatroom/internal/registry"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

const roomLockStripes = 64

type chatService struct {
	cfg        config.ChatConfig
	registry   registry.Registry
	dispatcher Dispatcher
	formatter  *formatter.Formatter
	store      history.Store
	persister  Persister
	directory  directory.Directory

	// Mutations of one room are serialized by its stripe.
	locks [roomLockStripes]sync.Mutex
}

func NewChatService(
	cfg config.ChatConfig,
	reg registry.Registry,
	dispatcher Dispatcher,
	f *formatter.Formatter,
	store history.Store,
	persister Persister,
	dir directory.Directory,
) ChatService {
	if dir == nil {
		dir = directory.Noop{}
	}
	return &chatService{
		cfg:        cfg,
		registry:   reg,
		dispatcher: dispatcher,
		formatter:  f,
		store:      store,
		persister:  persister,
		directory:  dir,
	}
}

func (s *chatService) roomLock(room string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(room)%roomLockStripes]
}

func (s *chatService) notice(text string) domain.ChatMessage {
	return s.formatter.Format(s.cfg.BotName, text)
}

func (s *chatService) HandleJoinRoom(ctx context.Context, connectionID, username, room string) error {
	l := log.Ctx(ctx)

	mu := s.roomLock(room)
	mu.Lock()

	// Room traffic for the joiner, relayed frames included, waits until the
	// backfill below is sent.
	s.dispatcher.Hold(connectionID)

	session, err := s.registry.Join(connectionID, username, room)
	if err != nil {
		mu.Unlock()
		s.dispatcher.Release(connectionID)
		if errors.Is(err, domain.ErrConflict) {
			if existing, lookupErr := s.registry.Lookup(connectionID); lookupErr == nil {
				audit.LogWithDetail(ctx, audit.ActionJoinRejected, existing, room, "join rejected, session already active")
			}
		}
		return err
	}

	s.unicast(ctx, connectionID, domain.EventMessage, s.notice(s.cfg.WelcomeText))
	s.broadcast(ctx, room, domain.EventMessage, s.notice(fmt.Sprintf("%s has joined the chat", username)), connectionID)

	users := s.roomUsers(room)
	s.broadcast(ctx, room, domain.EventRoomUsers, users, connectionID)
	s.unicast(ctx, connectionID, domain.EventRoomUsers, users)

	// Directory changes stay under the room lock.
	if len(users.Users) == 1 {
		if err := s.directory.Register(ctx, room); err != nil {
			l.Warn().Err(err).Str(log.FieldRoom, room).Msg("failed to register room in directory")
		}
	}

	mu.Unlock()

	s.backfill(ctx, connectionID, room)
	s.dispatcher.Release(connectionID)

	audit.Log(ctx, audit.ActionJoinRoom, session, "joined room")
	return nil
}

// backfill replays recent history to one connection. A store failure only
// costs the joiner the backfill.
func (s *chatService) backfill(ctx context.Context, connectionID, room string) {
	l := log.Ctx(ctx)

	fetchCtx := ctx
	if s.cfg.HistoryTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.HistoryTimeout)
		defer cancel()
	}

	records, err := s.store.Recent(fetchCtx, room, s.cfg.HistoryLimit)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoom, room).Msg("history unavailable, joining without backfill")
		return
	}
	for _, record := range records {
		s.unicast(ctx, connectionID, domain.EventChatMessage, record)
	}
}

func (s *chatService) HandleChatMessage(ctx context.Context, connectionID, text string) error {
	l := log.Ctx(ctx)

	session, err := s.registry.Lookup(connectionID)
	if err != nil {
		l.Debug().Str(log.FieldConnectionID, connectionID).Msg("message from connection without session ignored")
		return nil
	}

	mu := s.roomLock(session.Room)
	mu.Lock()

	// A disconnect may have won the race for the room lock.
	if _, err := s.registry.Lookup(connectionID); err != nil {
		mu.Unlock()
		return nil
	}

	msg := s.formatter.Format(session.Username, text)
	if err := s.persister.Enqueue(domain.NewRecord(session.Room, msg)); err != nil {
		l.Warn().Err(err).Str(log.FieldRoom, session.Room).Msg("message not persisted")
	}
	s.broadcast(ctx, session.Room, domain.EventMessage, msg, "")

	mu.Unlock()

	audit.LogWithDetail(ctx, audit.ActionSendMessage, session, strconv.Itoa(len(text)), "message sent")
	return nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, connectionID string) error {
	l := log.Ctx(ctx)

	session, err := s.registry.Lookup(connectionID)
	if err != nil {
		return nil
	}

	mu := s.roomLock(session.Room)
	mu.Lock()

	session, err = s.registry.Remove(connectionID)
	if err != nil {
		mu.Unlock()
		return nil
	}

	s.broadcast(ctx, session.Room, domain.EventMessage, s.notice(fmt.Sprintf("%s has left the chat", session.Username)), "")
	users := s.roomUsers(session.Room)
	s.broadcast(ctx, session.Room, domain.EventRoomUsers, users, "")

	if len(users.Users) == 0 {
		if err := s.directory.Deregister(ctx, session.Room); err != nil {
			l.Warn().Err(err).Str(log.FieldRoom, session.Room).Msg("failed to deregister room from directory")
		}
	}

	mu.Unlock()

	audit.Log(ctx, audit.ActionDisconnect, session, "left room")
	return nil
}

func (s *chatService) RoomUsers(room string) domain.RoomUsersMessage {
	return s.roomUsers(room)
}

func (s *chatService) roomUsers(room string) domain.RoomUsersMessage {
	return domain.RoomUsersMessage{Room: room, Users: s.registry.MembersOf(room)}
}

func (s *chatService) RecentMessages(ctx context.Context, room string, limit int) ([]domain.Record, error) {
	return s.store.Recent(ctx, room, limit)
}

func (s *chatService) unicast(ctx context.Context, connectionID, event string, payload interface{}) {
	if err := s.dispatcher.Unicast(connectionID, event, payload); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldConnectionID, connectionID).Str("event", event).Msg("unicast failed")
	}
}

func (s *chatService) broadcast(ctx context.Context, room, event string, payload interface{}, exclude string) {
	if err := s.dispatcher.BroadcastToRoom(room, event, payload, exclude); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, room).Str("event", event).Msg("broadcast failed")
	}
}

func (s *chatService) Start(ctx context.Context) error {
	if err := s.directory.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start directory heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("chat service started")
	return nil
}

// Stop halts the heartbeat and drains pending history writes.
func (s *chatService) Stop(ctx context.Context) error {
	s.directory.StopHeartbeat()
	if err := s.persister.Close(ctx); err != nil {
		return fmt.Errorf("failed to drain history writer: %w", err)
	}
	return nil
}
