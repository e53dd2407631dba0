package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bybench/internal/apperr"
)

const (
	ContextUserKey   = "current_user"
	ContextClaimsKey = "access_claims"
)

// Fail aborts with the standard failure envelope.
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// AbortWithError renders err with its mapped status. Anything that is not a
// domain error is logged and collapsed to an opaque internal error.
func AbortWithError(c *gin.Context, log zerolog.Logger, err error) {
	if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
		Fail(c, apperr.HTTPStatus(e.Kind), e.Code, e.Message)
		return
	}
	log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("request_id", c.Writer.Header().Get(requestIDHeader)).
		Msg("request failed")
	Fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}
