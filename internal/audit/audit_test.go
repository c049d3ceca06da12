package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

func TestLogWritesAuditFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	session := domain.Session{ConnectionID: "c1", Username: "alice", Room: "general"}
	LogWithDetail(ctx, ActionSendMessage, session, "5", "message sent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionSendMessage, entry[FieldAction])
	assert.Equal(t, "c1", entry[log.FieldConnectionID])
	assert.Equal(t, "alice", entry[log.FieldUsername])
	assert.Equal(t, "general", entry[log.FieldRoom])
	assert.Equal(t, "5", entry[FieldDetail])
	assert.Equal(t, "message sent", entry["message"])
}
