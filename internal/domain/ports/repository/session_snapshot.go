package repository

import (
	"context"

	"telegram-image-studio/internal/domain/model"
)

// SessionSnapshotRepository keeps the last rendered view of each user's session.
type SessionSnapshotRepository interface {
	Save(ctx context.Context, view model.SessionView) error
	Get(ctx context.Context, userID int64) (*model.SessionView, error)
	Clear(ctx context.Context, userID int64) error
}

// SessionLocker guarantees one live session per user across replicas.
type SessionLocker interface {
	TryLock(ctx context.Context, key string) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
