//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/usecase"
)

func TestProgressFor(t *testing.T) {
	cases := map[int]int{0: 40, 1: 45, 5: 65, 10: 90, 11: 90, 59: 90}
	for n, want := range cases {
		if got := usecase.ProgressFor(n); got != want {
			t.Errorf("ProgressFor(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestGenerationPoller(t *testing.T) {
	ctx := context.Background()

	t.Run("completes with monotonic progress", func(t *testing.T) {
		backend := &MockBackend{GetGenerationStatusFunc: statusSequence(
			model.GenerationState{Status: model.StatusPending},
			model.GenerationState{Status: model.StatusProcessing},
			model.GenerationState{Status: model.StatusProcessing},
			model.GenerationState{Status: model.StatusCompleted, ResultURL: "https://cdn/x.png"},
		)}
		p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

		var seen []int
		res, err := p.Poll(ctx, 11, func(v int) { seen = append(seen, v) })
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if res.ResultURL != "https://cdn/x.png" || res.RequestID != 11 || res.Attempts != 4 {
			t.Errorf("unexpected result %+v", res)
		}
		want := []int{40, 45, 50}
		if len(seen) != len(want) {
			t.Fatalf("progress = %v, want %v", seen, want)
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Fatalf("progress = %v, want %v", seen, want)
			}
		}
	})

	t.Run("times out after the attempt budget", func(t *testing.T) {
		backend := &MockBackend{GetGenerationStatusFunc: statusSequence(model.GenerationState{Status: model.StatusProcessing})}
		p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

		max := 0
		_, err := p.Poll(ctx, 1, func(v int) { max = v })
		if !errors.Is(err, domain.ErrPollTimeout) {
			t.Fatalf("got %v, want ErrPollTimeout", err)
		}
		if n := backend.Calls("GetGenerationStatus"); n != 60 {
			t.Errorf("ticks = %d, want 60", n)
		}
		if max != usecase.ProgressCeiling {
			t.Errorf("progress peaked at %d, want %d", max, usecase.ProgressCeiling)
		}
	})

	t.Run("transport errors consume attempts and retry", func(t *testing.T) {
		calls := 0
		backend := &MockBackend{GetGenerationStatusFunc: func(context.Context, int64) (*model.GenerationState, error) {
			calls++
			if calls <= 2 {
				return nil, transportErr()
			}
			return &model.GenerationState{Status: model.StatusCompleted, ResultURL: "https://cdn/y.png"}, nil
		}}
		p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

		res, err := p.Poll(ctx, 2, nil)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if res.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", res.Attempts)
		}
	})

	t.Run("non-transport status errors are not retried", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			err  error
		}{
			{"undecodable body", domain.E(domain.KindProtocolViolation, "get-generation-status", "", errors.New("decode response: EOF"))},
			{"unknown request", domain.E(domain.KindUpstreamRejection, "get-generation-status", "generation not found", nil)},
		} {
			t.Run(tc.name, func(t *testing.T) {
				backend := &MockBackend{GetGenerationStatusFunc: func(context.Context, int64) (*model.GenerationState, error) {
					return nil, tc.err
				}}
				p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

				_, err := p.Poll(ctx, 5, nil)
				if n := backend.Calls("GetGenerationStatus"); n != 1 {
					t.Errorf("ticks = %d, want 1", n)
				}
				if errors.Is(err, domain.ErrPollTimeout) || domain.KindOf(err) != domain.KindOf(tc.err) {
					t.Fatalf("got %v, want %v", err, tc.err)
				}
			})
		}
	})

	t.Run("completed without url is a protocol violation", func(t *testing.T) {
		backend := &MockBackend{GetGenerationStatusFunc: statusSequence(model.GenerationState{Status: model.StatusCompleted})}
		p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

		_, err := p.Poll(ctx, 3, nil)
		if !errors.Is(err, domain.ErrMissingResult) || domain.KindOf(err) != domain.KindProtocolViolation {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("failure carries the upstream reason", func(t *testing.T) {
		backend := &MockBackend{GetGenerationStatusFunc: statusSequence(
			model.GenerationState{Status: model.StatusError, Message: "quota exceeded"},
		)}
		p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

		_, err := p.Poll(ctx, 4, nil)
		if domain.KindOf(err) != domain.KindGenerationFailure || domain.MessageOf(err) != "quota exceeded" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		backend := &MockBackend{GetGenerationStatusFunc: func(context.Context, int64) (*model.GenerationState, error) {
			cancel()
			return &model.GenerationState{Status: model.StatusProcessing}, nil
		}}
		p := usecase.NewGenerationPoller(backend, fastPoll, newTestLogger())

		if _, err := p.Poll(cctx, 5, nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v", err)
		}
	})
}
