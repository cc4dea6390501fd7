package redisclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSlotLockerRejectsNestedAcquire(t *testing.T) {
	l := NewLocalSlotLocker()
	ctx := context.Background()

	err := l.WithSlotLock(ctx, "doc-1", "s1", func(ctx context.Context) error {
		inner := l.WithSlotLock(ctx, "doc-1", "s1", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// other slots stay independent
		return l.WithSlotLock(ctx, "doc-1", "s2", func(context.Context) error { return nil })
	})
	require.NoError(t, err)

	// released after fn returns
	require.NoError(t, l.WithSlotLock(ctx, "doc-1", "s1", func(context.Context) error { return nil }))
}
