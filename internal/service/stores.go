package service

import (
	"context"
	"time"

	"bybench/internal/models"
	"bybench/internal/storage"
)

// UserStore is the identity persistence used by the services.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByEmailOrPhone(ctx context.Context, email, phone string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetManyByID(ctx context.Context, userIDs []string) (map[string]models.User, error)
	SetOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	IncrementOTPAttempts(ctx context.Context, id string, max int) (int, bool, error)
	MarkVerified(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, codeHash, passwordHash string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Update(ctx context.Context, id string, patch models.UserPatch) (models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	ToggleSuspended(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type SellerStore interface {
	Create(ctx context.Context, profile models.SellerProfile) (models.SellerProfile, error)
	GetByUserID(ctx context.Context, userID string) (models.SellerProfile, error)
	UpdateStatus(ctx context.Context, userID string, status models.SellerStatus) (models.SellerProfile, error)
	Update(ctx context.Context, userID string, patch models.SellerPatch) (models.SellerProfile, error)
}

type ConversationStore interface {
	GetOrCreate(ctx context.Context, id, a, b string) (models.Conversation, bool, error)
	GetByID(ctx context.Context, id string) (models.Conversation, error)
	Block(ctx context.Context, id, actorID string) (models.Conversation, error)
	Unblock(ctx context.Context, id, actorID string) (models.Conversation, error)
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	ListAndMarkRead(ctx context.Context, conversationID, readerID string) ([]models.Message, error)
}

// Broadcaster pushes an event to every connection joined to room.
type Broadcaster interface {
	SendToRoom(room, event string, payload any)
}

type ImageUploader interface {
	UploadImages(ctx context.Context, files []storage.Upload) ([]string, error)
}
