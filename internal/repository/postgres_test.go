package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/config"
	"bybench/internal/database"
	"bybench/internal/ids"
	"bybench/internal/models"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("BYBENCH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BYBENCH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, config.PostgresConfig{DSN: dsn, MaxOpen: 10, MaxIdle: 1, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func createUser(t *testing.T, users *UserRepository, role models.UserRole) models.User {
	t.Helper()
	id := ids.New()
	user := models.User{
		ID:           id,
		FirstName:    "Test",
		LastName:     "User",
		Email:        id + "@example.com",
		Phone:        "+" + id[:12],
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, users.Create(context.Background(), user))
	t.Cleanup(func() { _ = users.Delete(context.Background(), id) })
	return user
}

func TestUserRepositoryOTPLifecycle(t *testing.T) {
	pool := testPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, users, models.UserRoleUser)

	err := users.Create(ctx, user)
	assert.ErrorIs(t, err, ErrDuplicateUser)

	expires := time.Now().Add(-time.Minute).UTC().Truncate(time.Microsecond)
	require.NoError(t, users.SetOTP(ctx, user.ID, "hash", expires))

	for i := 1; i <= 3; i++ {
		attempts, suspended, err := users.IncrementOTPAttempts(ctx, user.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, i, attempts)
		assert.Equal(t, i == 3, suspended)
	}

	cleared, err := users.ClearExpiredOTPs(ctx, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cleared, int64(1))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.OTPCode)
	assert.True(t, stored.IsSuspended)
	assert.Equal(t, 3, stored.OTPAttempts)

	suspended, err := users.ToggleSuspended(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, suspended)
	stored, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.OTPAttempts)

	_, err = users.GetByID(ctx, ids.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepositoryResetConsumesCodeOnce(t *testing.T) {
	pool := testPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, users, models.UserRoleUser)

	require.NoError(t, users.SetOTP(ctx, user.ID, "reset-hash", time.Now().Add(time.Minute)))
	assert.ErrorIs(t, users.ResetPassword(ctx, user.ID, "other-hash", "new"), ErrOTPNotPending)
	require.NoError(t, users.ResetPassword(ctx, user.ID, "reset-hash", "new"))
	assert.ErrorIs(t, users.ResetPassword(ctx, user.ID, "reset-hash", "newer"), ErrOTPNotPending)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.PasswordHash)
	assert.Nil(t, stored.OTPCode)
}

func TestUserAndSellerPartialUpdates(t *testing.T) {
	pool := testPool(t)
	users := NewUserRepository(pool)
	sellers := NewSellerRepository(pool)
	ctx := context.Background()
	seller := createUser(t, users, models.UserRoleSeller)
	other := createUser(t, users, models.UserRoleUser)

	nick := "sammy"
	updated, err := users.Update(ctx, seller.ID, models.UserPatch{NickName: &nick})
	require.NoError(t, err)
	assert.Equal(t, "sammy", updated.NickName)
	assert.Equal(t, seller.FirstName, updated.FirstName)

	_, err = users.Update(ctx, seller.ID, models.UserPatch{Email: &other.Email})
	assert.ErrorIs(t, err, ErrDuplicateUser)
	_, err = users.Update(ctx, ids.New(), models.UserPatch{NickName: &nick})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = sellers.Create(ctx, models.SellerProfile{
		ID: ids.New(), UserID: seller.ID, CompanyName: "Acme", CompanyAddress: "1 Main St",
		City: "Dhaka", Country: "BD", Status: models.SellerStatusPending,
	})
	require.NoError(t, err)
	city := "Sylhet"
	profile, err := sellers.Update(ctx, seller.ID, models.SellerPatch{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Sylhet", profile.City)
	assert.Equal(t, "Acme", profile.CompanyName)
}

func TestConversationGetOrCreateIsUniqueUnderConcurrency(t *testing.T) {
	pool := testPool(t)
	users := NewUserRepository(pool)
	conversations := NewConversationRepository(pool)
	buyer := createUser(t, users, models.UserRoleUser)
	seller := createUser(t, users, models.UserRoleSeller)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = make(map[string]struct{})
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := buyer.ID, seller.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, isNew, err := conversations.GetOrCreate(context.Background(), ids.New(), a, b)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[conv.ID] = struct{}{}
			if isNew {
				created++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, seen, 1)
	assert.Equal(t, 1, created)
}

func TestMessagesOrderingReadFlagsAndBlock(t *testing.T) {
	pool := testPool(t)
	users := NewUserRepository(pool)
	conversations := NewConversationRepository(pool)
	messages := NewMessageRepository(pool)
	ctx := context.Background()
	buyer := createUser(t, users, models.UserRoleUser)
	seller := createUser(t, users, models.UserRoleSeller)

	conv, _, err := conversations.GetOrCreate(ctx, ids.New(), buyer.ID, seller.ID)
	require.NoError(t, err)

	text := "Hi"
	first, err := messages.Create(ctx, models.Message{ID: ids.New(), ConversationID: conv.ID, SenderID: buyer.ID, Text: &text})
	require.NoError(t, err)
	require.NotNil(t, first.Sender)
	second, err := messages.Create(ctx, models.Message{ID: ids.New(), ConversationID: conv.ID, SenderID: seller.ID, Text: &text})
	require.NoError(t, err)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	summaries, err := conversations.ListForUser(ctx, seller.ID)
	require.NoError(t, err)
	require.NotEmpty(t, summaries)
	assert.Equal(t, conv.ID, summaries[0].ID)
	assert.Equal(t, buyer.ID, summaries[0].Counterpart.ID)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, second.ID, summaries[0].LastMessage.ID)

	list, err := messages.ListAndMarkRead(ctx, conv.ID, seller.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.True(t, list[0].IsRead)
	assert.False(t, list[1].IsRead)

	_, err = conversations.Block(ctx, conv.ID, buyer.ID)
	require.NoError(t, err)
	_, err = messages.Create(ctx, models.Message{ID: ids.New(), ConversationID: conv.ID, SenderID: seller.ID, Text: &text})
	assert.True(t, errors.Is(err, ErrConversationBlocked))

	_, err = conversations.Block(ctx, conv.ID, seller.ID)
	assert.ErrorIs(t, err, ErrBlockedByOther)
	_, err = conversations.Unblock(ctx, conv.ID, seller.ID)
	assert.ErrorIs(t, err, ErrNotBlockOwner)
	_, err = conversations.Block(ctx, "00000000-0000-0000-0000-000000000000", seller.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	unblocked, err := conversations.Unblock(ctx, conv.ID, buyer.ID)
	require.NoError(t, err)
	assert.Nil(t, unblocked.BlockedByID)

	require.NoError(t, conversations.Delete(ctx, conv.ID))
	_, err = conversations.GetByID(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
