package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"bybench/internal/ids"
	"bybench/internal/models"
	"bybench/internal/realtime"
	"bybench/internal/repository"
)

type userDirectory interface {
	GetManyByID(ctx context.Context, userIDs []string) (map[string]models.User, error)
}

type ChatService struct {
	users         userDirectory
	conversations ConversationStore
	messages      MessageStore
	events        Broadcaster
	log           zerolog.Logger
}

func NewChatService(users userDirectory, conversations ConversationStore, messages MessageStore, events Broadcaster, log zerolog.Logger) *ChatService {
	return &ChatService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		events:        events,
		log:           log,
	}
}

// GetOrCreate returns the single conversation between requester and target,
// creating it on first contact.
func (s *ChatService) GetOrCreate(ctx context.Context, requesterID, targetID string) (models.Conversation, bool, error) {
	if requesterID == targetID {
		return models.Conversation{}, false, ErrSelfConversation
	}

	users, err := s.users.GetManyByID(ctx, []string{requesterID, targetID})
	if err != nil {
		return models.Conversation{}, false, err
	}
	requester, okA := users[requesterID]
	target, okB := users[targetID]
	if !okA || !okB {
		return models.Conversation{}, false, ErrUserNotFound
	}
	if !requester.Role.Commercial() && !target.Role.Commercial() {
		return models.Conversation{}, false, ErrCommercialPartyRequired
	}

	conv, created, err := s.conversations.GetOrCreate(ctx, ids.New(), requesterID, targetID)
	if err != nil {
		return models.Conversation{}, false, err
	}
	if created {
		s.log.Info().Str("conversation_id", conv.ID).Str("user_id", requesterID).Msg("conversation created")
	}
	return conv, created, nil
}

// Get returns the conversation if userID takes part in it.
func (s *ChatService) Get(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, ErrNotParticipant
	}
	return conv, nil
}

// CanJoin gates realtime room membership.
func (s *ChatService) CanJoin(ctx context.Context, conversationID, userID string) error {
	_, err := s.Get(ctx, conversationID, userID)
	return err
}

type BlockEvent struct {
	ConversationID string  `json:"conversationId"`
	BlockedBy      *string `json:"blockedBy"`
}

func (s *ChatService) Block(ctx context.Context, conversationID, actorID string) (models.Conversation, error) {
	if _, err := s.Get(ctx, conversationID, actorID); err != nil {
		return models.Conversation{}, err
	}
	conv, err := s.conversations.Block(ctx, conversationID, actorID)
	if err != nil {
		return models.Conversation{}, s.mapConversationErr(err)
	}

	s.events.SendToRoom(conv.ID, realtime.EventConversationBlocked, BlockEvent{ConversationID: conv.ID, BlockedBy: conv.BlockedByID})
	s.log.Info().Str("conversation_id", conv.ID).Str("user_id", actorID).Msg("conversation blocked")
	return conv, nil
}

// Unblock may only be performed by the participant who imposed the block.
func (s *ChatService) Unblock(ctx context.Context, conversationID, actorID string) (models.Conversation, error) {
	if _, err := s.Get(ctx, conversationID, actorID); err != nil {
		return models.Conversation{}, err
	}
	conv, err := s.conversations.Unblock(ctx, conversationID, actorID)
	if err != nil {
		return models.Conversation{}, s.mapConversationErr(err)
	}

	s.events.SendToRoom(conv.ID, realtime.EventConversationUnblocked, BlockEvent{ConversationID: conv.ID, BlockedBy: &actorID})
	s.log.Info().Str("conversation_id", conv.ID).Str("user_id", actorID).Msg("conversation unblocked")
	return conv, nil
}

func (s *ChatService) Delete(ctx context.Context, conversationID, actorID string) error {
	if _, err := s.Get(ctx, conversationID, actorID); err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return s.mapConversationErr(err)
	}
	s.log.Info().Str("conversation_id", conversationID).Str("user_id", actorID).Msg("conversation deleted")
	return nil
}

type SendInput struct {
	ConversationID string
	SenderID       string
	Text           string
	FileURL        string
	FileType       string
}

// Send persists a message and pushes it to the conversation room. Blocked
// conversations reject new messages.
func (s *ChatService) Send(ctx context.Context, input SendInput) (models.Message, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && input.FileURL == "" {
		return models.Message{}, ErrEmptyMessage
	}

	conv, err := s.Get(ctx, input.ConversationID, input.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	if conv.IsBlocked {
		return models.Message{}, ErrConversationBlocked
	}

	msg := models.Message{
		ID:             ids.New(),
		ConversationID: conv.ID,
		SenderID:       input.SenderID,
		Text:           optional(text),
		FileURL:        optional(input.FileURL),
		FileType:       optional(input.FileType),
	}
	created, err := s.messages.Create(ctx, msg)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConversationBlocked):
			return models.Message{}, ErrConversationBlocked
		case errors.Is(err, repository.ErrConversationNotFound):
			return models.Message{}, ErrConversationNotFound
		}
		return models.Message{}, err
	}

	s.events.SendToRoom(conv.ID, realtime.EventMessageSend, created)
	return created, nil
}

func (s *ChatService) ListAndMarkRead(ctx context.Context, conversationID, requesterID string) ([]models.Message, error) {
	if _, err := s.Get(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	return s.messages.ListAndMarkRead(ctx, conversationID, requesterID)
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	return s.conversations.ListForUser(ctx, userID)
}

func (s *ChatService) mapConversationErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		return ErrConversationNotFound
	case errors.Is(err, repository.ErrBlockedByOther):
		return ErrBlockedByOther
	case errors.Is(err, repository.ErrNotBlockOwner):
		return ErrNotBlocker
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
