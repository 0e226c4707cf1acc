package redis

import (
	"context"
	"fmt"
	"time"
)

// Budgeted webview routes.
const (
	RouteEvents  = "events"
	RouteUploads = "uploads"
)

// Verdict is the answer of one EventLimiter check.
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // until the current window closes; set only when refused
}

// EventLimiter budgets webview calls per user and route in clock-aligned windows.
// Each window gets its own key; routes without a budget are never limited.
type EventLimiter struct {
	client RedisClient
	window time.Duration
	limits map[string]int
	now    func() time.Time
}

func NewEventLimiter(client RedisClient, window time.Duration, limits map[string]int) *EventLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &EventLimiter{client: client, window: window, limits: limits, now: time.Now}
}

func eventWindowKey(route string, userID int64, start time.Time) string {
	return fmt.Sprintf("studio:rl:%s:%d:%d", route, userID, start.Unix())
}

func (l *EventLimiter) Allow(ctx context.Context, userID int64, route string) (Verdict, error) {
	limit := l.limits[route]
	if limit <= 0 {
		return Verdict{Allowed: true}, nil
	}
	now := l.now()
	start := now.Truncate(l.window)
	key := eventWindowKey(route, userID, start)

	count, err := l.client.Incr(ctx, key)
	if err != nil {
		return Verdict{}, err
	}
	if count == 1 {
		// TTL covers the window plus replica clock skew
		if err := l.client.Expire(ctx, key, l.window+5*time.Second); err != nil {
			return Verdict{}, err
		}
	}

	v := Verdict{Allowed: count <= int64(limit), Remaining: limit - int(count)}
	if v.Remaining < 0 {
		v.Remaining = 0
	}
	if !v.Allowed {
		v.RetryAfter = start.Add(l.window).Sub(now)
	}
	return v, nil
}
