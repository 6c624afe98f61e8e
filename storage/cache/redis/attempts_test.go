package rediscache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core/user"
	rediscache "github.com/neuromagic/academy/storage/cache/redis"
	testutil "github.com/neuromagic/academy/tests"
)

func TestAttemptStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := rediscache.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := rediscache.NewAttemptStore(client, testutil.NewConfig())
	id := user.AttemptIdentifier("alice", "10.0.0."+time.Now().Format("150405.000"))
	t.Cleanup(func() { _ = store.ResetAttempts(ctx, id) })

	la, err := store.GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.LoginAttempt{Identifier: id}, la)

	now := time.Now().UTC().Truncate(time.Millisecond)
	la.Attempts = 5
	la.LastAttemptAt = now
	la.BlockedUntil = now.Add(15 * time.Minute)
	require.NoError(t, store.SaveAttempt(ctx, la))

	got, err := store.GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Attempts)
	assert.True(t, got.BlockedUntil.Equal(la.BlockedUntil))
	assert.True(t, got.IsBlocked(now))

	ttl, err := client.TTL(ctx, "login_attempt:"+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 14*time.Minute)

	require.NoError(t, store.ResetAttempts(ctx, id))
	got, err = store.GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)
}
