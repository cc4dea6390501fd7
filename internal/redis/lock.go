package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker guards the booking critical section of a single doctor slot.
// A busy slot fails fast with ErrLockNotAcquired; callers never queue.
type Locker interface {
	WithSlotLock(ctx context.Context, doctorID, slotID string, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client  *redis.Client
	ttl     time.Duration
	maxHold time.Duration
}

// NewRedisSlotLocker creates a locker keyed per doctor slot. The key expires
// after ttl unless the holder is still running, in which case it is renewed
// up to a hold of ten ttls.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client:  client,
		ttl:     ttl,
		maxHold: 10 * ttl,
	}
}

func slotLockKey(doctorID, slotID string) string {
	return fmt.Sprintf("lock:slot:%s:%s", doctorID, slotID)
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, doctorID, slotID string, fn func(ctx context.Context) error) error {
	key := slotLockKey(doctorID, slotID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	holdCtx, cancel := context.WithTimeout(ctx, l.maxHold)
	defer cancel()

	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		l.renew(holdCtx, key, token)
	}()

	defer func() {
		cancel()
		<-renewDone
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	return fn(holdCtx)
}

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// renew keeps the key alive while it still carries our token. It stops when
// ctx ends or the key was taken over after an expiry.
func (l *redisSlotLocker) renew(ctx context.Context, key, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil || n == 0 {
				return
			}
		}
	}
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock %s: %w", key, err)
	}
	return nil
}
