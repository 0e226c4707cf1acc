package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is the minimal interface the scheduler needs from the session registry.
type Sweeper interface {
	// Sweep drops idle sessions and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// Scheduler periodically runs a Sweeper's Sweep method.
type Scheduler struct {
	interval time.Duration
	sweeper  Sweeper
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs sweeper.Sweep every interval.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(interval time.Duration, sweeper Sweeper, log *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		sweeper:  sweeper,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("[scheduler] started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("[scheduler] context cancelled; stopping")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one sweep with a bounded timeout.
func (s *Scheduler) tick() {
	runCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	swept, err := s.sweeper.Sweep(runCtx)
	if err != nil {
		s.log.Warn().Err(err).Msg("[scheduler] sweep error")
		return
	}
	if swept > 0 {
		s.log.Debug().Int("swept", swept).Msg("[scheduler] idle sessions removed")
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	// reset for potential restart
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("[scheduler] stopped")
}
