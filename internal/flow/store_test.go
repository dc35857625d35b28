package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := &Flow{
		ID:     "f-1",
		Config: testConfig(),
		Status: FlowRunning,
		Phases: []PhaseInfo{{Name: PhaseInit, Status: PhasePending}},
	}
	require.NoError(t, s.Save(ctx, f))

	got, err := s.Get(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, FlowRunning, got.Status)
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := &Flow{ID: "f-2", Status: FlowRunning}
	f.AppendEvent(PhaseInit, EventInfo, "created", nil)
	require.NoError(t, s.Save(ctx, f))

	// Mutating the original after Save must not change the stored copy.
	f.Status = FlowFailed
	f.AppendEvent(PhaseInit, EventError, "oops", nil)

	got, err := s.Get(ctx, "f-2")
	require.NoError(t, err)
	assert.Equal(t, FlowRunning, got.Status)
	assert.Len(t, got.Timeline, 1)

	// Mutating a fetched copy must not change the store either.
	got.Status = FlowCompleted
	ts := time.Now()
	got.CompletedAt = &ts

	again, err := s.Get(ctx, "f-2")
	require.NoError(t, err)
	assert.Equal(t, FlowRunning, again.Status)
	assert.Nil(t, again.CompletedAt)
}

func TestMemoryStoreList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Flow{ID: "a"}))
	require.NoError(t, s.Save(ctx, &Flow{ID: "b"}))

	flows, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, flows, 2)
}
