package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterStoreEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(60)
	store.now = func() time.Time { return now }
	store.lastSweep = now

	first := store.getLimiter("uid:pat-1")
	store.getLimiter("uid:pat-2")
	assert.Equal(t, 2, store.size())
	assert.Same(t, first, store.getLimiter("uid:pat-1"))

	// pat-1 stays active, pat-2 goes quiet
	now = now.Add(90 * time.Second)
	store.getLimiter("uid:pat-1")

	now = now.Add(time.Minute)
	store.getLimiter("uid:pat-3")
	assert.Equal(t, 2, store.size())

	_, kept := store.limiters["uid:pat-1"]
	assert.True(t, kept)
	_, swept := store.limiters["uid:pat-2"]
	assert.False(t, swept)
}

func TestRateLimiterStoreKeepsBucketsBetweenSweeps(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(1)
	store.now = func() time.Time { return now }
	store.lastSweep = now

	assert.True(t, store.getLimiter("ip:10.0.0.1").Allow())

	now = now.Add(limiterIdle / 2)
	assert.Same(t, store.getLimiter("ip:10.0.0.1"), store.getLimiter("ip:10.0.0.1"))
	assert.Equal(t, 1, store.size())
}
