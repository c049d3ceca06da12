package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}

func TestNewTagsServiceAndNode(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Service: "chatroom", NodeID: "node-a", Output: &buf})
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "chatroom", entry[FieldService])
	assert.Equal(t, "node-a", entry[FieldNodeID])
	assert.Equal(t, "hello", entry["message"])
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	child := New(Config{Output: &buf})

	ctx := WithConnection(WithLogger(context.Background(), child), "conn-1")
	l := Ctx(ctx)
	l.Info().Msg("tagged")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "conn-1", entry[FieldConnectionID])

	assert.NotPanics(t, func() {
		l := Ctx(context.Background())
		l.Debug().Msg("global")
	})
}
