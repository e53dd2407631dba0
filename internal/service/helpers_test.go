package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bybench/internal/apperr"
	"bybench/internal/config"
	"bybench/internal/mail"
	"bybench/internal/models"
	"bybench/internal/repository/memstore"
	"bybench/internal/security"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type sentEvent struct {
	Room    string
	Event   string
	Payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) SendToRoom(room, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{Room: room, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) last() sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return sentEvent{}
	}
	return b.events[len(b.events)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	store  *memstore.Store
	mailer *recordingMailer
	clock  *clock
	otp    *OTPVerifier
	auth   *AuthService
	tokens *security.TokenIssuer
	code   string
	seq    int
}

var testOTPConfig = config.OTPConfig{Length: 6, TTL: 5 * time.Minute, MaxAttempts: 5}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		store:  memstore.New(),
		mailer: &recordingMailer{},
		clock:  &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		tokens: security.NewTokenIssuer("test-secret", 7*24*time.Hour),
		code:   "123456",
	}
	f.otp = NewOTPVerifier(f.store.Users(), f.mailer, testOTPConfig, zerolog.Nop())
	f.otp.now = f.clock.Now
	f.otp.generate = func(int) (string, error) { return f.code, nil }
	f.auth = NewAuthService(f.store.Users(), f.otp, f.tokens, zerolog.Nop())
	f.auth.now = f.clock.Now
	return f
}

func (f *authFixture) register(t *testing.T, email string, role models.UserRole) models.User {
	t.Helper()
	f.seq++
	user, err := f.auth.Register(context.Background(), RegisterInput{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Phone:     fmt.Sprintf("+1555000%04d", f.seq),
		Password:  "password123",
		Role:      role,
	})
	require.NoError(t, err)
	return user
}

func (f *authFixture) user(t *testing.T, id string) models.User {
	t.Helper()
	user, err := f.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, code, e.Code, e.Message)
}
