package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/models"
	"bybench/internal/repository/memstore"
)

type countingSweeper struct {
	calls chan time.Time
	err   error
}

func (s *countingSweeper) ClearExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	s.calls <- now
	return 1, s.err
}

func TestSweepClearsOnlyExpiredCodes(t *testing.T) {
	store := memstore.New()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	live := now.Add(time.Minute)
	code := "hash"

	store.Users().Put(models.User{ID: "old", OTPCode: &code, OTPExpiresAt: &expired, OTPAttempts: 3, IsSuspended: true})
	store.Users().Put(models.User{ID: "new", OTPCode: &code, OTPExpiresAt: &live})

	s := NewScheduler(store.Users(), "@every 1h", zerolog.Nop())
	s.now = func() time.Time { return now }
	s.sweepExpiredOTPs()

	old, err := store.Users().GetByID(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, old.OTPCode)
	assert.Nil(t, old.OTPExpiresAt)
	assert.Equal(t, 3, old.OTPAttempts)
	assert.True(t, old.IsSuspended)

	fresh, err := store.Users().GetByID(context.Background(), "new")
	require.NoError(t, err)
	assert.NotNil(t, fresh.OTPCode)
}

func TestSchedulerRunsSweepOnSchedule(t *testing.T) {
	sweeper := &countingSweeper{calls: make(chan time.Time, 4), err: errors.New("db down")}
	s := NewScheduler(sweeper, "* * * * * *", zerolog.Nop())
	require.NoError(t, s.Start())

	select {
	case <-sweeper.calls:
	case <-time.After(3 * time.Second):
		t.Fatal("sweep did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&countingSweeper{calls: make(chan time.Time, 1)}, "not a schedule", zerolog.Nop())
	assert.Error(t, s.Start())

	assert.NoError(t, NewScheduler(nil, "", zerolog.Nop()).Start())
}
