package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/ids"
)

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	seen     []string
}

func (h *flakyHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.ID)
	if h.failures > 0 {
		h.failures--
		return errors.New("transient failure")
	}
	return nil
}

func (h *flakyHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("BYBENCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BYBENCH_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestConsumerRetriesFailedEntries(t *testing.T) {
	client := testRedis(t)
	stream := "test:mail:" + ids.NewSortable()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	handler := &flakyHandler{failures: 1}
	c := NewConsumer(client, stream, "workers", "w1", 200*time.Millisecond, zerolog.Nop(), handler)
	c.block = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.EnsureGroup(ctx))
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]interface{}{"to": "a@example.com"}}).Err())

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, stream, "workers").Result()
		return err == nil && pending.Count == 0 && handler.count() >= 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWithDeadLetterDefaults(t *testing.T) {
	c := NewConsumer(nil, "mail:outbound", "workers", "w1", 0, zerolog.Nop(), &flakyHandler{})
	assert.Equal(t, "mail:outbound:dead", c.deadStream)
	assert.False(t, c.exhausted(4))
	assert.True(t, c.exhausted(5))

	c.WithDeadLetter("", 0)
	assert.Equal(t, "mail:outbound:dead", c.deadStream)
	assert.Equal(t, int64(defaultMaxDeliveries), c.maxDeliveries)

	c.WithDeadLetter("mail:dead", 2)
	assert.Equal(t, "mail:dead", c.deadStream)
	assert.True(t, c.exhausted(2))
}

func TestConsumerDeadLettersExhaustedEntries(t *testing.T) {
	client := testRedis(t)
	stream := "test:mail:" + ids.NewSortable()
	dead := stream + ":dead"
	t.Cleanup(func() { client.Del(context.Background(), stream, dead) })

	handler := &flakyHandler{failures: 1000}
	c := NewConsumer(client, stream, "workers", "w1", 100*time.Millisecond, zerolog.Nop(), handler).WithDeadLetter(dead, 2)
	c.block = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.EnsureGroup(ctx))
	id, err := client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]interface{}{"to": "a@example.com"}}).Result()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool {
		n, err := client.XLen(ctx, dead).Result()
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	entries, err := client.XRange(context.Background(), dead, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].Values["source_id"])
	assert.Equal(t, "a@example.com", entries[0].Values["to"])

	pending, err := client.XPending(context.Background(), stream, "workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
	assert.Equal(t, 2, handler.count())
}
