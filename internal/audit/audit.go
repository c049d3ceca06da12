package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

// Audit actions for the chat core.
const (
	ActionJoinRoom     = "chat.join_room"
	ActionJoinRejected = "chat.join_rejected"
	ActionLeaveRoom    = "chat.leave_room"
	ActionSendMessage  = "chat.send_message"
	ActionDisconnect   = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit entry for a session via the context logger.
func Log(ctx context.Context, action string, session domain.Session, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnectionID, session.ConnectionID).
		Str(log.FieldUsername, session.Username).
		Str(log.FieldRoom, session.Room).
		Msg(msg)
}

// LogWithDetail adds a free-form detail field.
func LogWithDetail(ctx context.Context, action string, session domain.Session, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnectionID, session.ConnectionID).
		Str(log.FieldUsername, session.Username).
		Str(log.FieldRoom, session.Room).
		Str(FieldDetail, detail).
		Msg(msg)
}
