// Package lock serializes saga executions that target the same user.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTimeout is returned when a lock cannot be acquired before the deadline.
var ErrTimeout = errors.New("lock acquisition timeout")

// Locker acquires a named lock. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Noop never blocks.
type Noop struct{}

func (Noop) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// Local is a keyed mutex for a single process.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch      chan struct{}
	waiters int
}

// NewLocal creates an empty keyed mutex.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.waiters++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *Local) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e.waiters--
	if e.waiters == 0 {
		delete(l.locks, key)
	}
}

// Redis holds locks as SET NX PX keys so several replicas share them.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis creates a Redis-backed locker. ttl bounds how long a crashed
// holder can keep a key; wait bounds how long Lock polls.
func NewRedis(client *redis.Client, ttl, wait time.Duration) *Redis {
	return &Redis{client: client, prefix: "euphony:lock:", ttl: ttl, wait: wait}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := newToken()
	fullKey := r.prefix + key
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	return func() {
		// Release even if the request context was cancelled meanwhile.
		_ = releaseScript.Run(context.WithoutCancel(ctx), r.client, []string{fullKey}, token).Err()
	}, nil
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
