package log

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// GinMiddleware gives each request an id (X-Request-ID or a fresh uuid) and
// a child logger in its context, then logs the outcome. Probe paths log at
// debug, server errors at warn.
func GinMiddleware(logger zerolog.Logger, probePaths ...string) gin.HandlerFunc {
	probes := make(map[string]struct{}, len(probePaths))
	for _, p := range probePaths {
		probes[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		zc := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP())
		if room := c.Param("room"); room != "" {
			zc = zc.Str(FieldRoom, room)
		}
		child := zc.Logger()
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		if _, ok := probes[c.FullPath()]; ok {
			level = zerolog.DebugLevel
		}
		if status >= http.StatusInternalServerError {
			level = zerolog.WarnLevel
		}
		child.WithLevel(level).
			Int(FieldStatus, status).
			Dur(FieldLatency, time.Since(start)).
			Msg("request completed")
	}
}
