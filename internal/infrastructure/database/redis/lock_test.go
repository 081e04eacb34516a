package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_TryLock(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	first := NewMutex(client, "recalculate-all", time.Minute)
	second := NewMutex(client, "recalculate-all", time.Minute)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutex_UnlockOnlyByOwner(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	owner := NewMutex(client, "recalculate-all", time.Minute)
	other := NewMutex(client, "recalculate-all", time.Minute)

	ok, err := owner.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = other.Unlock(ctx)
	assert.ErrorIs(t, err, ErrLockNotHeld)

	assert.NoError(t, owner.Unlock(ctx))
}

func TestMutex_ExpiresByTTL(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	first := NewMutex(client, "recalculate-all", time.Minute)
	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	second := NewMutex(client, "recalculate-all", time.Minute)
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
