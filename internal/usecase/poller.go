package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/infra/logging"
	"telegram-image-studio/internal/infra/metrics"
)

const (
	// ProgressStart is shown as soon as generation is entered.
	ProgressStart = 10
	// ProgressCeiling is never exceeded before a confirmed completion.
	ProgressCeiling = 90
	ProgressDone    = 100
)

type PollerConfig struct {
	Interval      time.Duration
	ErrorInterval time.Duration
	MaxAttempts   int
}

// GenerationPoller queries job status until it is terminal or the attempt budget runs out.
type GenerationPoller struct {
	backend adapter.BackendClient
	cfg     PollerConfig
	log     *zerolog.Logger
}

func NewGenerationPoller(backend adapter.BackendClient, cfg PollerConfig, log *zerolog.Logger) *GenerationPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.ErrorInterval <= 0 {
		cfg.ErrorInterval = 3 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	return &GenerationPoller{backend: backend, cfg: cfg, log: log}
}

// ProgressFor is the synthetic progress shown after n non-terminal ticks.
func ProgressFor(attempts int) int {
	p := 40 + attempts*5
	if p > ProgressCeiling {
		return ProgressCeiling
	}
	return p
}

// Poll blocks until requestID reaches a terminal status, the budget is exhausted or ctx ends.
// onProgress receives non-decreasing values below 100.
func (p *GenerationPoller) Poll(ctx context.Context, requestID int64, onProgress func(int)) (*model.GenerationResult, error) {
	log := logging.With(logging.WithRequestID(ctx, requestID), p.log)
	progress := 0
	attempts := 0

	for {
		if attempts >= p.cfg.MaxAttempts {
			metrics.IncPollOutcome("timeout")
			log.Warn().Int("attempts", attempts).Msg("generation polling budget exhausted")
			return nil, domain.E(domain.KindGenerationFailure, "poll", "", domain.ErrPollTimeout)
		}

		st, err := p.backend.GetGenerationStatus(ctx, requestID)
		if err != nil {
			if ctx.Err() != nil {
				metrics.IncPollOutcome("cancelled")
				return nil, ctx.Err()
			}
			if domain.KindOf(err) != domain.KindTransport {
				metrics.IncPollTick("rejected")
				metrics.IncPollOutcome("rejected")
				log.Error().Err(err).Int("attempt", attempts).Msg("status tick rejected, not retrying")
				return nil, err
			}
			metrics.IncPollTick("transport_error")
			log.Warn().Err(err).Int("attempt", attempts).Msg("status tick failed, retrying")
			attempts++
			if err := sleepCtx(ctx, p.cfg.ErrorInterval); err != nil {
				metrics.IncPollOutcome("cancelled")
				return nil, err
			}
			continue
		}

		switch {
		case st.Status == model.StatusCompleted:
			if st.ResultURL == "" {
				metrics.IncPollTick("completed")
				metrics.IncPollOutcome("protocol_violation")
				log.Error().Msg("COMPLETED status without result url")
				return nil, domain.E(domain.KindProtocolViolation, "poll", "", domain.ErrMissingResult)
			}
			metrics.IncPollTick("completed")
			metrics.IncPollOutcome("completed")
			return &model.GenerationResult{RequestID: requestID, ResultURL: st.ResultURL, Attempts: attempts + 1}, nil

		case st.Status.IsFailure():
			metrics.IncPollTick("failed")
			metrics.IncPollOutcome("failed")
			log.Info().Str("reason", st.Reason()).Msg("generation failed")
			return nil, domain.E(domain.KindGenerationFailure, "poll", st.Reason(), nil)
		}

		metrics.IncPollTick("pending")
		if next := ProgressFor(attempts); next > progress {
			progress = next
			if onProgress != nil {
				onProgress(progress)
			}
		}
		attempts++
		if err := sleepCtx(ctx, p.cfg.Interval); err != nil {
			metrics.IncPollOutcome("cancelled")
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
