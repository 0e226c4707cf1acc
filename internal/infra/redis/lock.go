// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/ports/repository"
)

var _ repository.SessionLocker = (*RedisLocker)(nil)

// RedisLocker holds one token-owned key per live session.
type RedisLocker struct {
	cli   RedisClient
	ttl   time.Duration
	tries int
	wait  time.Duration
}

func NewLocker(c RedisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLocker{cli: c, ttl: ttl, tries: 3, wait: 50 * time.Millisecond}
}

// TryLock returns domain.ErrSessionLocked when another owner holds key,
// or the last redis error when the store could not be reached.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl)
		if err == nil && ok {
			return token, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait): // wait before retrying
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrSessionLocked
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, key, token)
	return err
}
