package realtime

import "encoding/json"

// Server to client events.
const (
	EventMessageSend           = "message.send"
	EventConversationBlocked   = "conversation.blocked"
	EventConversationUnblocked = "conversation.unblocked"
	EventOnlineUsers           = "onlineUsers.list"
	EventError                 = "error"
)

// Client to server events.
const (
	EventJoinRoom       = "join_room"
	EventGetOnlineUsers = "getOnlineUsers"
)

// Frame is the JSON envelope of every websocket text frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinRoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: payload})
}
