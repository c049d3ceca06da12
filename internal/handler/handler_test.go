package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/directory"
	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/internal/formatter"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history/memory"
	"github.com/weiawesome/wes-io-live/chatroom/internal/hub"
	"github.com/weiawesome/wes-io-live/chatroom/internal/registry"
	"github.com/weiawesome/wes-io-live/chatroom/internal/service"
)

type testServer struct {
	*httptest.Server
	store  history.Store
	writer *history.Writer
}

func newTestServer(t *testing.T, store history.Store) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if store == nil {
		store = memory.New(0)
	}
	reg := registry.NewMemoryRegistry()
	h := hub.NewHub(reg)
	writer := history.NewWriter(store, 64, time.Second)
	chatCfg := config.ChatConfig{
		BotName:        "ChatCord Bot",
		WelcomeText:    "Welcome to ChatCord!",
		HistoryLimit:   10,
		HistoryTimeout: time.Second,
	}
	svc := service.NewChatService(chatCfg, reg, h, formatter.New(), store, writer, directory.Noop{})

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 64,
	}

	r := gin.New()
	NewWSHandler(h, svc, wsCfg).RegisterRoutes(r)
	NewHTTPHandler(svc, chatCfg.HistoryLimit).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		writer.Close(context.Background())
	})
	return &testServer{Server: srv, store: store, writer: writer}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(domain.OutFrame{Event: event, Data: data}))
}

func next(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame.Event, frame.Data
}

func expectMessage(t *testing.T, conn *websocket.Conn, username, text string) {
	t.Helper()
	event, data := next(t, conn)
	require.Equal(t, domain.EventMessage, event)
	assert.Equal(t, username, data["username"])
	assert.Equal(t, text, data["text"])
	assert.NotEmpty(t, data["time"])
}

func expectUsers(t *testing.T, conn *websocket.Conn, room string, users ...interface{}) {
	t.Helper()
	event, data := next(t, conn)
	require.Equal(t, domain.EventRoomUsers, event)
	assert.Equal(t, room, data["room"])
	assert.Equal(t, users, data["users"])
}

func TestWebSocketChatScenario(t *testing.T) {
	srv := newTestServer(t, nil)

	alice := srv.dial(t)
	send(t, alice, domain.EventJoinRoom, domain.JoinRoomMessage{Username: "alice", Room: "general"})
	expectMessage(t, alice, "ChatCord Bot", "Welcome to ChatCord!")
	expectUsers(t, alice, "general", "alice")

	bob := srv.dial(t)
	send(t, bob, domain.EventJoinRoom, domain.JoinRoomMessage{Username: "bob", Room: "general"})
	expectMessage(t, bob, "ChatCord Bot", "Welcome to ChatCord!")
	expectUsers(t, bob, "general", "alice", "bob")
	expectMessage(t, alice, "ChatCord Bot", "bob has joined the chat")
	expectUsers(t, alice, "general", "alice", "bob")

	send(t, bob, domain.EventChatMessage, "hello")
	expectMessage(t, alice, "bob", "hello")
	expectMessage(t, bob, "bob", "hello")

	require.NoError(t, bob.Close())
	expectMessage(t, alice, "ChatCord Bot", "bob has left the chat")
	expectUsers(t, alice, "general", "alice")
}

func TestWebSocketBackfillAndObjectMessages(t *testing.T) {
	srv := newTestServer(t, nil)

	alice := srv.dial(t)
	send(t, alice, domain.EventJoinRoom, domain.JoinRoomMessage{Username: "alice", Room: "general"})
	next(t, alice)
	next(t, alice)
	for i := 1; i <= 3; i++ {
		send(t, alice, domain.EventChatMessage, map[string]string{"text": fmt.Sprintf("M%d", i)})
		expectMessage(t, alice, "alice", fmt.Sprintf("M%d", i))
	}
	require.NoError(t, srv.writer.Close(context.Background()))

	carol := srv.dial(t)
	send(t, carol, domain.EventJoinRoom, domain.JoinRoomMessage{Username: "carol", Room: "general"})
	expectMessage(t, carol, "ChatCord Bot", "Welcome to ChatCord!")
	expectUsers(t, carol, "general", "alice", "carol")
	for i := 1; i <= 3; i++ {
		event, data := next(t, carol)
		require.Equal(t, domain.EventChatMessage, event)
		assert.Equal(t, "alice", data["username"])
		assert.Equal(t, fmt.Sprintf("M%d", i), data["msg"])
		assert.Equal(t, "general", data["room"])
	}
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := srv.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	event, data := next(t, conn)
	assert.Equal(t, domain.EventError, event)
	assert.Equal(t, domain.ErrCodeBadRequest, data["code"])

	send(t, conn, domain.EventJoinRoom, domain.JoinRoomMessage{Username: "", Room: "general"})
	event, data = next(t, conn)
	assert.Equal(t, domain.EventError, event)
	assert.Equal(t, domain.ErrCodeBadRequest, data["code"])

	send(t, conn, "typing", nil)
	event, data = next(t, conn)
	assert.Equal(t, domain.EventError, event)
	assert.Equal(t, domain.ErrCodeUnknownEvent, data["code"])
}

func TestHTTPRoomQueries(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	for i := 1; i <= 15; i++ {
		_, err := srv.store.Append(ctx, domain.Record{Room: "general", Username: "alice", Text: fmt.Sprintf("M%d", i)})
		require.NoError(t, err)
	}

	alice := srv.dial(t)
	send(t, alice, domain.EventJoinRoom, domain.JoinRoomMessage{Username: "alice", Room: "general"})
	next(t, alice)
	next(t, alice)

	var users struct {
		Success bool                    `json:"success"`
		Data    domain.RoomUsersMessage `json:"data"`
	}
	getJSON(t, srv.URL+"/api/v1/rooms/general/users", http.StatusOK, &users)
	assert.True(t, users.Success)
	assert.Equal(t, []string{"alice"}, users.Data.Users)

	var msgs struct {
		Data MessagesResponse `json:"data"`
	}
	getJSON(t, srv.URL+"/api/v1/rooms/general/messages", http.StatusOK, &msgs)
	require.Len(t, msgs.Data.Messages, 10)
	assert.Equal(t, "M6", msgs.Data.Messages[0].Text)

	getJSON(t, srv.URL+"/api/v1/rooms/general/messages?limit=3", http.StatusOK, &msgs)
	require.Len(t, msgs.Data.Messages, 3)
	assert.Equal(t, "M13", msgs.Data.Messages[0].Text)

	getJSON(t, srv.URL+"/api/v1/rooms/general/messages?limit=-1", http.StatusBadRequest, nil)
}

type downStore struct{ memory.Store }

func (*downStore) Recent(context.Context, string, int) ([]domain.Record, error) {
	return nil, domain.ErrStoreUnavailable
}

func TestHTTPMessagesStoreDown(t *testing.T) {
	srv := newTestServer(t, &downStore{})
	getJSON(t, srv.URL+"/api/v1/rooms/general/messages", http.StatusServiceUnavailable, nil)
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}
