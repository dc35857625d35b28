package fixtree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := &Session{
		ID:        "s1",
		Status:    StatusFixing,
		StartedAt: time.Now().UTC(),
		Strategies: []Strategy{
			{Type: StrategyRetry, MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2},
		},
	}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Strategies, got.Strategies)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := &Session{ID: "s1", Status: StatusFixing, StartedAt: time.Now().UTC()}
	require.NoError(t, store.Save(ctx, sess))

	// Mutating the caller's session must not leak into the store.
	sess.Status = StatusSuccess
	sess.Attempts = append(sess.Attempts, Attempt{Strategy: StrategyRetry, Attempt: 1, Result: AttemptSuccess})

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusFixing, got.Status)
	assert.Empty(t, got.Attempts)
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
