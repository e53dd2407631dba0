package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bybench/internal/middleware"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// ChatSocket upgrades an authenticated request to the realtime channel. The
// identity is the token subject; a userId query parameter must match it.
func (h HandlerSet) ChatSocket(c *gin.Context) {
	user := currentUser(c)
	if user.ID == "" {
		middleware.Fail(c, http.StatusUnauthorized, "unauthenticated", "Authentication required")
		return
	}
	if claimed := c.Query("userId"); claimed != "" && claimed != user.ID {
		middleware.Fail(c, http.StatusForbidden, "identity_mismatch", "userId does not match the authenticated user")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("websocket upgrade failed")
		return
	}
	h.hub.Serve(conn, user.ID)
}
