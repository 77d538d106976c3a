// Package redislock provides a cross-process route lock on redis.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/flashloan-arb/business/execution/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
)

// unlockScript deletes the key only while it still holds our token.
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

var _ app.Locker = (*Locker)(nil)

// Locker implements app.Locker with SET NX plus a token-checked release.
type Locker struct {
	client redis.Cmdable
	prefix string
	unlock *redis.Script
}

// New creates a Locker. Keys are namespaced under prefix.
func New(client redis.Cmdable, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		unlock: redis.NewScript(unlockScript),
	}
}

// Key returns the redis key guarding route.
func (l *Locker) Key(route string) string {
	return l.prefix + ":lock:" + route
}

// Acquire takes the lock for ttl.
func (l *Locker) Acquire(ctx context.Context, route string, ttl time.Duration) (func(), error) {
	key := l.Key(route)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContextf("acquire %s", key))
	}
	if !ok {
		return nil, apperror.New(apperror.CodeLockHeld, apperror.WithContext(key))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = l.unlock.Run(rctx, l.client, []string{key}, token).Err()
		})
	}, nil
}
