// Package lock serializes writers of a shared destination. The local locker
// covers goroutines of one process; the Redis locker extends that across
// replicas.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the context ends before the lock is held.
var ErrNotAcquired = errors.New("lock not acquired")

// Release frees a held lock. It must be called exactly once.
type Release func()

// Locker hands out exclusive ownership of a named destination.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// LocalLocker keeps one slot per key inside the process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal builds an in-process locker.
func NewLocal() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	slot := l.slot(key)
	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

const renewScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker takes the local lock first and then a Redis SET NX PX lease so
// that only one replica appends to a destination at a time. The lease is
// extended every ttl/3 while held, so ttl only bounds how long a crashed
// holder blocks others.
type RedisLocker struct {
	local  *LocalLocker
	client redisClient
	ttl    time.Duration
	poll   time.Duration
	prefix string
}

// NewRedis builds a cross-replica locker.
func NewRedis(client redisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		local:  NewLocal(),
		client: client,
		ttl:    ttl,
		poll:   50 * time.Millisecond,
		prefix: "teg-intake:lock:",
	}
}

// Acquire blocks until both the local and the Redis lock are held.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	releaseLocal, err := l.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	redisKey := l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			releaseLocal()
			return nil, err
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.poll)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			releaseLocal()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go l.renew(redisKey, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err()
			releaseLocal()
		})
	}, nil
}

// renew extends the lease until stop is closed or the lease is found to
// belong to someone else.
func (l *RedisLocker) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := l.client.Eval(ctx, renewScript, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err == nil && held == 0 {
				return
			}
		}
	}
}
