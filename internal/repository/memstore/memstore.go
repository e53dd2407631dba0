// Package memstore holds in-memory stores with the same contracts as the
// Postgres repositories. Service and handler tests run against it.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"bybench/internal/models"
	"bybench/internal/repository"
)

// Store keeps every table behind one lock.
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[string]models.User
	sellers       map[string]models.SellerProfile
	conversations map[string]models.Conversation
	messages      []models.Message
}

func New() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[string]models.User),
		sellers:       make(map[string]models.SellerProfile),
		conversations: make(map[string]models.Conversation),
	}
}

func (s *Store) Users() *UserStore                 { return &UserStore{s} }
func (s *Store) Sellers() *SellerStore             { return &SellerStore{s} }
func (s *Store) Conversations() *ConversationStore { return &ConversationStore{s} }
func (s *Store) Messages() *MessageStore           { return &MessageStore{s} }

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (s *Store) tick() time.Time {
	t := s.now()
	if n := len(s.messages); n > 0 && !t.After(s.messages[n-1].CreatedAt) {
		t = s.messages[n-1].CreatedAt.Add(time.Microsecond)
	}
	return t
}

type UserStore struct{ s *Store }

// Put inserts or replaces a user as-is.
func (u *UserStore) Put(user models.User) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.users[user.ID] = user
}

func (u *UserStore) Create(_ context.Context, user models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == user.Email || existing.Phone == user.Phone {
			return repository.ErrDuplicateUser
		}
	}
	now := u.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	u.s.users[user.ID] = user
	return nil
}

func (u *UserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u *UserStore) FindByEmailOrPhone(_ context.Context, email, phone string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Email == email || user.Phone == phone {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u *UserStore) GetByID(_ context.Context, id string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (u *UserStore) GetManyByID(_ context.Context, userIDs []string) (map[string]models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	out := make(map[string]models.User, len(userIDs))
	for _, id := range userIDs {
		if user, ok := u.s.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (u *UserStore) update(id string, fn func(*models.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&user)
	user.UpdatedAt = u.s.now()
	u.s.users[id] = user
	return nil
}

func (u *UserStore) Update(_ context.Context, id string, patch models.UserPatch) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	for otherID, other := range u.s.users {
		if otherID == id {
			continue
		}
		if (patch.Email != nil && other.Email == *patch.Email) || (patch.Phone != nil && other.Phone == *patch.Phone) {
			return models.User{}, repository.ErrDuplicateUser
		}
	}
	set(&user.FirstName, patch.FirstName)
	set(&user.LastName, patch.LastName)
	set(&user.NickName, patch.NickName)
	set(&user.Email, patch.Email)
	set(&user.Phone, patch.Phone)
	if patch.ProfilePicture != nil {
		picture := *patch.ProfilePicture
		user.ProfilePicture = &picture
	}
	user.UpdatedAt = u.s.now()
	u.s.users[id] = user
	return user, nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (u *UserStore) SetOTP(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	return u.update(id, func(user *models.User) {
		user.OTPCode = &codeHash
		user.OTPExpiresAt = &expiresAt
		user.OTPAttempts = 0
	})
}

func (u *UserStore) IncrementOTPAttempts(_ context.Context, id string, max int) (int, bool, error) {
	var (
		attempts  int
		suspended bool
	)
	err := u.update(id, func(user *models.User) {
		user.OTPAttempts++
		if user.OTPAttempts >= max {
			user.IsSuspended = true
		}
		attempts, suspended = user.OTPAttempts, user.IsSuspended
	})
	return attempts, suspended, err
}

func clearOTP(user *models.User) {
	user.OTPCode = nil
	user.OTPExpiresAt = nil
	user.OTPAttempts = 0
}

func (u *UserStore) MarkVerified(_ context.Context, id string) error {
	return u.update(id, func(user *models.User) {
		user.IsVerified = true
		clearOTP(user)
	})
}

func (u *UserStore) ResetPassword(_ context.Context, id, codeHash, passwordHash string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok || user.OTPCode == nil || *user.OTPCode != codeHash {
		return repository.ErrOTPNotPending
	}
	user.PasswordHash = passwordHash
	clearOTP(&user)
	user.UpdatedAt = u.s.now()
	u.s.users[id] = user
	return nil
}

func (u *UserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return u.update(id, func(user *models.User) { user.PasswordHash = passwordHash })
}

func (u *UserStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return u.update(id, func(user *models.User) { user.LastLoginAt = &at })
}

func (u *UserStore) ToggleSuspended(_ context.Context, id string) (bool, error) {
	var suspended bool
	err := u.update(id, func(user *models.User) {
		if user.IsSuspended {
			user.OTPAttempts = 0
		}
		user.IsSuspended = !user.IsSuspended
		suspended = user.IsSuspended
	})
	return suspended, err
}

func (u *UserStore) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(u.s.users, id)
	delete(u.s.sellers, id)
	for convID, conv := range u.s.conversations {
		if conv.HasParticipant(id) {
			u.s.deleteConversationLocked(convID)
		}
	}
	return nil
}

func (u *UserStore) ClearExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var n int64
	for id, user := range u.s.users {
		if user.OTPCode != nil && user.OTPExpiresAt != nil && user.OTPExpiresAt.Before(now) {
			user.OTPCode, user.OTPExpiresAt = nil, nil
			u.s.users[id] = user
			n++
		}
	}
	return n, nil
}

type SellerStore struct{ s *Store }

func (r *SellerStore) Create(_ context.Context, profile models.SellerProfile) (models.SellerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sellers[profile.UserID]; ok {
		return models.SellerProfile{}, repository.ErrSellerProfileExists
	}
	now := r.s.now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	r.s.sellers[profile.UserID] = profile
	return profile, nil
}

func (r *SellerStore) GetByUserID(_ context.Context, userID string) (models.SellerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.sellers[userID]
	if !ok {
		return models.SellerProfile{}, repository.ErrSellerProfileNotFound
	}
	return profile, nil
}

func (r *SellerStore) UpdateStatus(_ context.Context, userID string, status models.SellerStatus) (models.SellerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.sellers[userID]
	if !ok {
		return models.SellerProfile{}, repository.ErrSellerProfileNotFound
	}
	profile.Status = status
	profile.UpdatedAt = r.s.now()
	r.s.sellers[userID] = profile
	return profile, nil
}

func (r *SellerStore) Update(_ context.Context, userID string, patch models.SellerPatch) (models.SellerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.sellers[userID]
	if !ok {
		return models.SellerProfile{}, repository.ErrSellerProfileNotFound
	}
	set(&profile.CompanyName, patch.CompanyName)
	set(&profile.CompanyAddress, patch.CompanyAddress)
	set(&profile.City, patch.City)
	set(&profile.Country, patch.Country)
	profile.UpdatedAt = r.s.now()
	r.s.sellers[userID] = profile
	return profile, nil
}

type ConversationStore struct{ s *Store }

func (r *ConversationStore) GetOrCreate(_ context.Context, id, a, b string) (models.Conversation, bool, error) {
	low, high := models.OrderedPair(a, b)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, conv := range r.s.conversations {
		if conv.UserLow == low && conv.UserHigh == high {
			return conv, false, nil
		}
	}
	now := r.s.now()
	conv := models.Conversation{ID: id, UserLow: low, UserHigh: high, CreatedAt: now, UpdatedAt: now}
	r.s.conversations[id] = conv
	return conv, true, nil
}

func (r *ConversationStore) GetByID(_ context.Context, id string) (models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return models.Conversation{}, repository.ErrConversationNotFound
	}
	return conv, nil
}

// Count returns the number of stored conversations.
func (r *ConversationStore) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.conversations)
}

func (r *ConversationStore) Block(_ context.Context, id, actorID string) (models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return models.Conversation{}, repository.ErrConversationNotFound
	}
	if conv.IsBlocked && (conv.BlockedByID == nil || *conv.BlockedByID != actorID) {
		return models.Conversation{}, repository.ErrBlockedByOther
	}
	conv.IsBlocked = true
	conv.BlockedByID = &actorID
	r.s.conversations[id] = conv
	return conv, nil
}

func (r *ConversationStore) Unblock(_ context.Context, id, actorID string) (models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return models.Conversation{}, repository.ErrConversationNotFound
	}
	if !conv.IsBlocked || conv.BlockedByID == nil || *conv.BlockedByID != actorID {
		return models.Conversation{}, repository.ErrNotBlockOwner
	}
	conv.IsBlocked = false
	conv.BlockedByID = nil
	r.s.conversations[id] = conv
	return conv, nil
}

func (r *ConversationStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversations[id]; !ok {
		return repository.ErrConversationNotFound
	}
	r.s.deleteConversationLocked(id)
	return nil
}

func (s *Store) deleteConversationLocked(id string) {
	delete(s.conversations, id)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ConversationID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}

func (r *ConversationStore) ListForUser(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.ConversationSummary, 0)
	for _, conv := range r.s.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		summary := models.ConversationSummary{
			Conversation: conv,
			Counterpart:  r.s.users[conv.Counterpart(userID)].Public(),
		}
		for i := len(r.s.messages) - 1; i >= 0; i-- {
			if r.s.messages[i].ConversationID == conv.ID {
				last := r.s.messages[i]
				last.Sender = nil
				summary.LastMessage = &last
				break
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

type MessageStore struct{ s *Store }

func (r *MessageStore) Create(_ context.Context, msg models.Message) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[msg.ConversationID]
	if !ok {
		return models.Message{}, repository.ErrConversationNotFound
	}
	if conv.IsBlocked {
		return models.Message{}, repository.ErrConversationBlocked
	}

	msg.IsRead = false
	msg.CreatedAt = r.s.tick()
	r.s.messages = append(r.s.messages, msg)

	conv.UpdatedAt = msg.CreatedAt
	r.s.conversations[conv.ID] = conv

	sender := r.s.users[msg.SenderID].Public()
	msg.Sender = &sender
	return msg, nil
}

func (r *MessageStore) ListAndMarkRead(_ context.Context, conversationID, readerID string) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Message, 0)
	for i := range r.s.messages {
		m := &r.s.messages[i]
		if m.ConversationID != conversationID {
			continue
		}
		if m.SenderID != readerID {
			m.IsRead = true
		}
		cp := *m
		sender := r.s.users[m.SenderID].Public()
		cp.Sender = &sender
		out = append(out, cp)
	}
	return out, nil
}
