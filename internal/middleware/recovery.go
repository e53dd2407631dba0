package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery converts a handler panic into the internal_error envelope. When the
// panic comes from writing to a client that already hung up, nothing is sent.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			event := log.Error().
				Interface("panic", r).
				Str("request_id", c.Writer.Header().Get(requestIDHeader)).
				Str("method", c.Request.Method).
				Str("route", c.FullPath())
			if user, ok := CurrentUser(c); ok {
				event = event.Str("user_id", user.ID)
			}

			if clientGone(r) {
				event.Msg("client disconnected mid-response")
				c.Abort()
				return
			}
			event.Bytes("stack", debug.Stack()).Msg("bybench handler panicked")
			Fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

func clientGone(r any) bool {
	if r == http.ErrAbortHandler {
		return true
	}
	err, ok := r.(error)
	return ok && (errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET))
}
