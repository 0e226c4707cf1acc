package usecase

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
)

// HostProvider returns the host bridge of one user.
type HostProvider interface {
	HostFor(userID int64) adapter.HostPlatform
}

// SessionManager owns one SessionMachine per user.
type SessionManager interface {
	Dispatch(ctx context.Context, userID int64, ev Event) (model.ModalStep, error)
	View(userID int64) model.SessionView
	// Sweep drops machines that have been closed and idle longer than the idle TTL,
	// and closes sessions parked on a result for that long.
	Sweep(ctx context.Context) (int, error)
	// Shutdown closes every live session.
	Shutdown(ctx context.Context)
}

// Compile-time check
var _ SessionManager = (*sessionManager)(nil)

type sessionManager struct {
	base  context.Context
	deps  MachineDeps
	hosts HostProvider
	idle  time.Duration
	log   *zerolog.Logger

	mu       sync.Mutex
	machines map[int64]*SessionMachine
}

// NewSessionManager builds the registry. deps.Host is ignored; hosts supplies a bridge per user.
func NewSessionManager(ctx context.Context, deps MachineDeps, hosts HostProvider, idleTTL time.Duration, log *zerolog.Logger) SessionManager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = log
	}
	return &sessionManager{
		base:     ctx,
		deps:     deps,
		hosts:    hosts,
		idle:     idleTTL,
		log:      log,
		machines: make(map[int64]*SessionMachine),
	}
}

func (sm *sessionManager) machine(userID int64) *SessionMachine {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if m, ok := sm.machines[userID]; ok {
		return m
	}
	deps := sm.deps
	deps.Host = sm.hosts.HostFor(userID)
	m := NewSessionMachine(sm.base, userID, deps)
	sm.machines[userID] = m
	return m
}

func (sm *sessionManager) Dispatch(ctx context.Context, userID int64, ev Event) (model.ModalStep, error) {
	return sm.machine(userID).Dispatch(ctx, ev)
}

func (sm *sessionManager) View(userID int64) model.SessionView {
	sm.mu.Lock()
	m, ok := sm.machines[userID]
	sm.mu.Unlock()
	if !ok {
		return model.SessionView{UserID: userID, Step: model.StepClosed, UpdatedAt: sm.deps.Now()}
	}
	return m.View()
}

func (sm *sessionManager) Sweep(ctx context.Context) (int, error) {
	cutoff := sm.deps.Now().Add(-sm.idle)
	sm.mu.Lock()
	snapshot := make(map[int64]*SessionMachine, len(sm.machines))
	for id, m := range sm.machines {
		snapshot[id] = m
	}
	sm.mu.Unlock()

	swept := 0
	for id, m := range snapshot {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		closed, last := m.IdleSince()
		if last.After(cutoff) {
			continue
		}
		if !closed {
			if m.Step() != model.StepResult {
				continue
			}
			m.Close(ctx)
		}
		sm.mu.Lock()
		if sm.machines[id] == m {
			delete(sm.machines, id)
			swept++
		}
		sm.mu.Unlock()
	}
	if swept > 0 {
		sm.log.Debug().Int("count", swept).Msg("idle session machines swept")
	}
	return swept, nil
}

func (sm *sessionManager) Shutdown(ctx context.Context) {
	sm.mu.Lock()
	all := make([]*SessionMachine, 0, len(sm.machines))
	for _, m := range sm.machines {
		all = append(all, m)
	}
	sm.mu.Unlock()
	for _, m := range all {
		m.Close(ctx)
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSessionID returns a fresh ULID.
func NewSessionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
