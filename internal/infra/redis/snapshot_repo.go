package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/repository"
)

var _ repository.SessionSnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo keeps the last published view per user so a reopened webview can render it.
type SnapshotRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSnapshotRepo(client RedisClient, ttl time.Duration) *SnapshotRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotRepo{client: client, ttl: ttl}
}

func (s *SnapshotRepo) snapshotKey(userID int64) string {
	return fmt.Sprintf("session_snapshot:%d", userID)
}

func (s *SnapshotRepo) Save(ctx context.Context, view model.SessionView) error {
	// host actions and notices are per-connection and never persisted
	view.Action, view.Notices = nil, nil
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.snapshotKey(view.UserID), data, s.ttl)
}

func (s *SnapshotRepo) Get(ctx context.Context, userID int64) (*model.SessionView, error) {
	data, err := s.client.Get(ctx, s.snapshotKey(userID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var view model.SessionView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *SnapshotRepo) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.snapshotKey(userID))
}
