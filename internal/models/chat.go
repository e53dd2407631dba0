package models

import "time"

type Conversation struct {
	ID          string    `json:"id"`
	UserLow     string    `json:"-"`
	UserHigh    string    `json:"-"`
	IsBlocked   bool      `json:"isBlocked"`
	BlockedByID *string   `json:"blockedById"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Participants returns both user ids in stored order.
func (c Conversation) Participants() []string {
	return []string{c.UserLow, c.UserHigh}
}

func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserLow == userID || c.UserHigh == userID)
}

// Counterpart returns the other participant, or "" when userID is not in the pair.
func (c Conversation) Counterpart(userID string) string {
	switch userID {
	case c.UserLow:
		return c.UserHigh
	case c.UserHigh:
		return c.UserLow
	}
	return ""
}

// OrderedPair normalises an unordered pair so the smaller id comes first.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Text           *string        `json:"text"`
	FileURL        *string        `json:"fileUrl"`
	FileType       *string        `json:"fileType"`
	IsRead         bool           `json:"isRead"`
	CreatedAt      time.Time      `json:"createdAt"`
	Sender         *PublicProfile `json:"sender,omitempty"`
}

type ConversationSummary struct {
	Conversation
	Counterpart PublicProfile `json:"counterpart"`
	LastMessage *Message      `json:"lastMessage"`
}
