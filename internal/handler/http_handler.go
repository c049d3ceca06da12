package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/internal/service"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/response"
)

const maxHistoryLimit = 100

// HTTPHandler serves read-only room queries.
type HTTPHandler struct {
	service      service.ChatService
	defaultLimit int
}

func NewHTTPHandler(svc service.ChatService, defaultLimit int) *HTTPHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &HTTPHandler{
		service:      svc,
		defaultLimit: defaultLimit,
	}
}

// MessagesResponse is the payload of GET /api/v1/rooms/:room/messages.
type MessagesResponse struct {
	Room     string          `json:"room"`
	Messages []domain.Record `json:"messages"`
}

// GetRoomUsers handles GET /api/v1/rooms/:room/users
func (h *HTTPHandler) GetRoomUsers(c *gin.Context) {
	response.Success(c, h.service.RoomUsers(c.Param("room")))
}

// GetRoomMessages handles GET /api/v1/rooms/:room/messages?limit=N
func (h *HTTPHandler) GetRoomMessages(c *gin.Context) {
	room := c.Param("room")

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := h.service.RecentMessages(c.Request.Context(), room, limit)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Str(log.FieldRoom, room).Msg("history query failed")
		response.ServiceUnavailable(c, "message history unavailable")
		return
	}

	response.Success(c, MessagesResponse{Room: room, Messages: records})
}

func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	rooms := r.Group("/api/v1/rooms/:room")
	rooms.GET("/users", h.GetRoomUsers)
	rooms.GET("/messages", h.GetRoomMessages)
}
