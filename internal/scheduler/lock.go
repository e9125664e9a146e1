package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "leads:protection:sweep:lock"

// releaseScript deletes the key only while it still holds our token, so a
// replica whose lock expired never frees another replica's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock is a single-holder lease stored under one Redis key.
type RedisLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

func NewRedisLock(rdb redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = sweepLockKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

// TryAcquire takes the lease if it is free. The returned release func is nil
// when the lease was not acquired. While held, the lease is extended every
// third of its TTL until release is called or another holder takes the key.
func (l *RedisLock) TryAcquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	keepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(keepCtx, token)
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			stop()
			<-done
		})
		return releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}, nil
}

func (l *RedisLock) keepAlive(ctx context.Context, token string) {
	every := l.ttl / 3
	if every <= 0 {
		every = l.ttl
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := l.extend(ctx, token)
			if err != nil {
				// retried on the next tick; the lease still has two thirds left
				continue
			}
			if !held {
				return
			}
		}
	}
}

// extend resets the TTL if token still holds the key.
func (l *RedisLock) extend(ctx context.Context, token string) (bool, error) {
	n, err := extendScript.Run(ctx, l.rdb, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
