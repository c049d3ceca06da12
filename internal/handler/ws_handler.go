package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/internal/hub"
	"github.com/weiawesome/wes-io-live/chatroom/internal/service"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.New().String()
	client := hub.NewClient(id, conn, h.wsCfg)
	h.hub.Register(id, client)

	// The connection outlives the upgrade request, so it keeps the request
	// logger but not the request context.
	ctx := log.WithConnection(log.WithLogger(context.Background(), l), id)

	go client.WritePump()
	go func() {
		client.ReadPump(func(message []byte) {
			h.handleMessage(ctx, id, message)
		})

		if err := h.service.HandleDisconnect(ctx, id); err != nil {
			cl := log.Ctx(ctx)
			cl.Error().Err(err).Msg("disconnect failed")
		}
		h.hub.Unregister(id)
		client.Close()
	}()
}

func (h *WSHandler) handleMessage(ctx context.Context, id string, message []byte) {
	l := log.Ctx(ctx)

	var frame domain.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		h.sendError(id, domain.ErrCodeBadRequest, "Invalid message format")
		return
	}

	switch frame.Event {
	case domain.EventJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			h.sendError(id, domain.ErrCodeBadRequest, "Invalid joinRoom message")
			return
		}
		if err := msg.Validate(); err != nil {
			h.sendError(id, domain.ErrCodeBadRequest, err.Error())
			return
		}
		err := h.service.HandleJoinRoom(ctx, id, msg.Username, msg.Room)
		switch {
		case errors.Is(err, domain.ErrConflict):
			l.Debug().Str(log.FieldRoom, msg.Room).Msg("duplicate join ignored")
		case err != nil:
			l.Error().Err(err).Str(log.FieldRoom, msg.Room).Msg("join room failed")
		}

	case domain.EventChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			h.sendError(id, domain.ErrCodeBadRequest, "Invalid chatMessage")
			return
		}
		if err := h.service.HandleChatMessage(ctx, id, msg.Text); err != nil {
			l.Error().Err(err).Msg("chat message failed")
		}

	default:
		h.sendError(id, domain.ErrCodeUnknownEvent, "Unknown event")
	}
}

func (h *WSHandler) sendError(id, code, message string) {
	h.hub.Unicast(id, domain.EventError, domain.NewErrorMessage(code, message))
}

func (h *WSHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/chat/ws", h.HandleWebSocket)
}
