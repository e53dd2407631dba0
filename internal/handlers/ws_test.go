package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/models"
	"bybench/internal/realtime"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

// nextEvent reads frames until one with the given event arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame wireFrame
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Event == event {
			return frame
		}
	}
}

func TestChatSocketDeliversRoomEvents(t *testing.T) {
	h := newHarness(t, nil)
	buyer, buyerToken := h.seed(t, "bob", models.UserRoleUser)
	seller, sellerToken := h.seed(t, "sam", models.UserRoleSeller)
	_, otherToken := h.seed(t, "carol", models.UserRoleUser)

	srv := httptest.NewServer(h.router)
	defer srv.Close()

	res := h.do(t, http.MethodPost, "/api/chat/start", gin.H{"targetUserId": seller.ID}, buyerToken)
	require.Equal(t, http.StatusCreated, res.Code)
	convID := res.object("conversation")["id"].(string)

	sellerConn, _, err := dial(t, srv, "token="+sellerToken)
	require.NoError(t, err)
	defer sellerConn.Close()

	online := nextEvent(t, sellerConn, realtime.EventOnlineUsers)
	var users []string
	require.NoError(t, json.Unmarshal(online.Data, &users))
	assert.Contains(t, users, seller.ID)

	otherConn, _, err := dial(t, srv, "token="+otherToken)
	require.NoError(t, err)
	defer otherConn.Close()

	require.NoError(t, otherConn.WriteJSON(gin.H{"event": realtime.EventJoinRoom, "data": gin.H{"conversationId": convID}}))
	refused := nextEvent(t, otherConn, realtime.EventError)
	assert.Contains(t, string(refused.Data), "cannot join")

	require.NoError(t, sellerConn.WriteJSON(gin.H{"event": realtime.EventJoinRoom, "data": gin.H{"conversationId": convID}}))
	require.Eventually(t, func() bool { return h.hub.RoomSize(convID) == 1 }, 2*time.Second, 10*time.Millisecond)

	res = h.do(t, http.MethodPost, "/api/chat/message", gin.H{"conversationId": convID, "text": "Hi"}, buyerToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	frame := nextEvent(t, sellerConn, realtime.EventMessageSend)
	var msg models.Message
	require.NoError(t, json.Unmarshal(frame.Data, &msg))
	assert.Equal(t, convID, msg.ConversationID)
	assert.Equal(t, buyer.ID, msg.SenderID)
	require.NotNil(t, msg.Text)
	assert.Equal(t, "Hi", *msg.Text)

	res = h.do(t, http.MethodGet, "/api/chat/online-users", nil, buyerToken)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.body["onlineUsers"], seller.ID)
}

func TestChatSocketRejectsMismatchedIdentity(t *testing.T) {
	h := newHarness(t, nil)
	buyer, _ := h.seed(t, "bob", models.UserRoleUser)
	_, sellerToken := h.seed(t, "sam", models.UserRoleSeller)

	srv := httptest.NewServer(h.router)
	defer srv.Close()

	_, resp, err := dial(t, srv, "token="+sellerToken+"&userId="+buyer.ID)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
