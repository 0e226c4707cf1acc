//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/usecase"
)

func paidEligibility(context.Context, int64, int64) (*model.Eligibility, error) {
	return &model.Eligibility{RequiresPayment: true, Price: model.TemplatePrice{Stars: 50, Uzs: 9900}}, nil
}

func containsAlert(alerts []string, want string) bool {
	for _, a := range alerts {
		if a == want {
			return true
		}
	}
	return false
}

func TestSessionMachine_FreeFlow(t *testing.T) {
	var gotReq model.GenerationRequest
	backend := &MockBackend{
		CreateGenerationFunc: func(_ context.Context, req model.GenerationRequest) (*model.GenerationTicket, error) {
			gotReq = req
			return &model.GenerationTicket{Status: model.StatusGenerating, RequestID: 901}, nil
		},
		GetGenerationStatusFunc: statusSequence(
			model.GenerationState{Status: model.StatusProcessing},
			model.GenerationState{Status: model.StatusProcessing},
			model.GenerationState{Status: model.StatusProcessing},
			model.GenerationState{Status: model.StatusCompleted, ResultURL: "https://cdn/901.png"},
		),
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)

	step, err := m.Dispatch(context.Background(), usecase.Simple(usecase.EvProceed))
	if err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if step != model.StepGenerating && step != model.StepResult {
		t.Fatalf("expected generating after free check, got %q", step)
	}
	waitForStep(t, m, model.StepResult)

	if !gotReq.PaymentVerified || gotReq.Gateway != model.GatewayFree {
		t.Errorf("free generation must be pre-verified, got %+v", gotReq)
	}
	if gotReq.UserID != 4242 || gotReq.TemplateID != testTemplate.ID || len(gotReq.Images) != 1 {
		t.Errorf("unexpected generation request %+v", gotReq)
	}
	if n := backend.Calls("ConfirmPayment"); n != 0 {
		t.Errorf("confirm-payment called %d times on free path", n)
	}

	v := m.View()
	if v.Progress != usecase.ProgressDone || v.ResultURL != "https://cdn/901.png" || v.RequestID != 901 {
		t.Errorf("unexpected result view %+v", v)
	}

	last := 0
	for _, view := range h.presenter.Views() {
		if view.Step != model.StepGenerating && view.Step != model.StepResult {
			continue
		}
		if view.Progress < last {
			t.Fatalf("progress went backwards: %d after %d", view.Progress, last)
		}
		if view.Step == model.StepGenerating && view.Progress > usecase.ProgressCeiling {
			t.Fatalf("progress %d above ceiling before completion", view.Progress)
		}
		last = view.Progress
	}

	wantSteps := []model.ModalStep{model.StepUpload, model.StepChecking, model.StepGenerating, model.StepResult}
	if got := h.presenter.Steps(); !equalSteps(got, wantSteps) {
		t.Errorf("steps = %v, want %v", got, wantSteps)
	}
	eventually(t, "usage increment", func() bool { return h.usage.Count(testTemplate.ID) == 1 })
	eventually(t, "result notification", func() bool {
		h.notifier.mu.Lock()
		defer h.notifier.mu.Unlock()
		return len(h.notifier.urls) == 1
	})
}

func equalSteps(a, b []model.ModalStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSessionMachine_SponsorRecheck(t *testing.T) {
	var mu sync.Mutex
	checks := 0
	backend := &MockBackend{
		CheckEligibilityFunc: func(context.Context, int64, int64) (*model.Eligibility, error) {
			mu.Lock()
			defer mu.Unlock()
			checks++
			if checks == 1 {
				return &model.Eligibility{Sponsors: []model.Sponsor{
					{ResourceName: "@channel", Link: "https://t.me/channel", Status: "unsubscribed"},
					{ResourceName: "@done", Status: "subscribed"},
				}}, nil
			}
			return &model.Eligibility{HasFreeCredit: true, Subscribed: true}, nil
		},
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)

	step, err := m.Dispatch(context.Background(), usecase.Simple(usecase.EvProceed))
	if err != nil || step != model.StepSubscription {
		t.Fatalf("expected subscription step, got %q (%v)", step, err)
	}
	v := m.View()
	if v.Gateway != model.GatewaySponsor || len(v.Sponsors) != 1 || v.Sponsors[0].ResourceName != "@channel" {
		t.Fatalf("expected one unsatisfied sponsor, got %+v", v)
	}
	if backend.Calls("CreateGeneration") != 0 {
		t.Fatal("generation must not start while sponsors are unsatisfied")
	}

	if _, err := m.Dispatch(context.Background(), usecase.Simple(usecase.EvRecheck)); err != nil {
		t.Fatalf("recheck: %v", err)
	}
	waitForStep(t, m, model.StepResult)
	if got := m.View().Gateway; got != model.GatewayFree {
		t.Errorf("gateway after recheck = %q, want free", got)
	}
}

func TestSessionMachine_StarsPaid(t *testing.T) {
	var gotReq model.GenerationRequest
	backend := &MockBackend{
		CheckEligibilityFunc: paidEligibility,
		CreateGenerationFunc: func(_ context.Context, req model.GenerationRequest) (*model.GenerationTicket, error) {
			gotReq = req
			return &model.GenerationTicket{Status: model.StatusAwaitingPayment, RequestID: 314}, nil
		},
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	if step, _ := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed)); step != model.StepPayment {
		t.Fatalf("expected payment step, got %q", step)
	}
	if v := m.View(); v.PriceStars != 50 || v.Gateway != model.GatewayPaymentRequired {
		t.Fatalf("unexpected payment view %+v", v)
	}
	step, err := m.Dispatch(ctx, usecase.SelectPayment(model.PaymentStars))
	if err != nil || step != model.StepPaymentWaiting {
		t.Fatalf("expected payment waiting, got %q (%v)", step, err)
	}
	if gotReq.PaymentVerified || gotReq.Gateway != model.GatewayStars {
		t.Errorf("stars upload must be unverified, got %+v", gotReq)
	}
	if m.View().RequestID != 314 {
		t.Errorf("request id not recorded")
	}

	h.host.Resolve(model.InvoicePaid)
	waitForStep(t, m, model.StepResult)
	if n := backend.Calls("ConfirmPayment"); n != 1 {
		t.Errorf("confirm-payment called %d times, want 1", n)
	}
}

func TestSessionMachine_StarsCancelled(t *testing.T) {
	backend := &MockBackend{CheckEligibilityFunc: paidEligibility}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	m.Dispatch(ctx, usecase.SelectPayment(model.PaymentStars))
	h.host.Resolve(model.InvoiceCancelled)

	waitForStep(t, m, model.StepPayment)
	if n := backend.Calls("ConfirmPayment"); n != 0 {
		t.Errorf("confirm-payment called %d times after cancel", n)
	}
	v := m.View()
	if v.RequestID != 0 || v.PaymentMethod != "" || v.Gateway != model.GatewayPaymentRequired {
		t.Errorf("abandoned attempt leaked into view: %+v", v)
	}
	if !containsAlert(h.presenter.Alerts(), "payment.cancelled") {
		t.Errorf("expected cancelled alert, got %v", h.presenter.Alerts())
	}
	if backend.Calls("GetGenerationStatus") != 0 {
		t.Error("no polling expected without payment")
	}
}

func TestSessionMachine_StarsConfirmRejected(t *testing.T) {
	backend := &MockBackend{
		CheckEligibilityFunc: paidEligibility,
		ConfirmPaymentFunc: func(context.Context, int64, model.PaymentMethod) (*model.PaymentConfirmation, error) {
			return &model.PaymentConfirmation{Status: "error", Message: "not paid"}, nil
		},
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	m.Dispatch(ctx, usecase.SelectPayment(model.PaymentStars))
	h.host.Resolve(model.InvoicePaid)

	waitForStep(t, m, model.StepPayment)
	if !containsAlert(h.presenter.Alerts(), "payment.confirm_failed") {
		t.Errorf("expected confirm_failed alert, got %v", h.presenter.Alerts())
	}
}

func TestSessionMachine_InvoiceUnsupported(t *testing.T) {
	backend := &MockBackend{CheckEligibilityFunc: paidEligibility}
	h := newHarness(backend)
	h.host.OpenInvoiceFunc = func(context.Context, string) (adapter.Invoice, error) {
		return nil, domain.ErrInvoiceUnsupported
	}
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	step, err := m.Dispatch(ctx, usecase.SelectPayment(model.PaymentStars))
	if !errors.Is(err, domain.ErrInvoiceUnsupported) || step != model.StepPayment {
		t.Fatalf("expected to stay in payment with unsupported error, got %q (%v)", step, err)
	}
	if !containsAlert(h.presenter.Alerts(), "payment.invoice_unsupported") {
		t.Errorf("alerts = %v", h.presenter.Alerts())
	}
}

func TestSessionMachine_ClickWebhook(t *testing.T) {
	backend := &MockBackend{
		CheckEligibilityFunc: paidEligibility,
		GetGenerationStatusFunc: statusSequence(
			model.GenerationState{Status: model.StatusWaitingPayment},
			model.GenerationState{Status: model.StatusWaitingPayment},
			model.GenerationState{Status: model.StatusWaitingPayment},
			model.GenerationState{Status: model.StatusCompleted, ResultURL: "https://cdn/click.png"},
		),
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	step, err := m.Dispatch(ctx, usecase.SelectPayment(model.PaymentClick))
	if err != nil || step != model.StepPaymentWaiting {
		t.Fatalf("expected payment waiting, got %q (%v)", step, err)
	}
	h.host.mu.Lock()
	links := append([]string(nil), h.host.links...)
	h.host.mu.Unlock()
	if len(links) != 1 || links[0] != "https://my.click.uz/pay" {
		t.Fatalf("payment link not opened: %v", links)
	}

	if _, err := m.Dispatch(ctx, usecase.Simple(usecase.EvCheckPayment)); err != nil {
		t.Fatalf("check payment: %v", err)
	}
	waitForStep(t, m, model.StepResult)

	if n := backend.Calls("ConfirmPayment"); n != 0 {
		t.Errorf("click path called confirm-payment %d times", n)
	}
	pending := 0
	for _, a := range h.presenter.Alerts() {
		if a == "payment.pending" {
			pending++
		}
	}
	if pending != 3 {
		t.Errorf("pending notices = %d, want 3", pending)
	}
	want := []model.ModalStep{model.StepUpload, model.StepChecking, model.StepPayment, model.StepPaymentWaiting, model.StepGenerating, model.StepResult}
	if got := h.presenter.Steps(); !equalSteps(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestSessionMachine_ClickUnknownStatus(t *testing.T) {
	backend := &MockBackend{
		CheckEligibilityFunc: paidEligibility,
		GetGenerationStatusFunc: statusSequence(
			model.GenerationState{Status: "REFUNDED"},
		),
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	m.Dispatch(ctx, usecase.SelectPayment(model.PaymentClick))
	m.Dispatch(ctx, usecase.Simple(usecase.EvCheckPayment))

	waitForStep(t, m, model.StepPayment)
	if !containsAlert(h.presenter.Alerts(), "payment.unknown_status") {
		t.Errorf("alerts = %v", h.presenter.Alerts())
	}
}

func TestSessionMachine_ContentSafetyFailure(t *testing.T) {
	backend := &MockBackend{
		GetGenerationStatusFunc: statusSequence(
			model.GenerationState{Status: model.StatusProcessing},
			model.GenerationState{Status: model.StatusFailed, Error: "Request blocked: content flagged by SAFETY filter"},
		),
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)

	m.Dispatch(context.Background(), usecase.Simple(usecase.EvProceed))
	eventually(t, "session close", func() bool {
		return m.Step() == model.StepClosed && backend.Calls("GetGenerationStatus") >= 2
	})

	if !containsAlert(h.presenter.Alerts(), "error.content_safety") {
		t.Errorf("expected safety alert, got %v", h.presenter.Alerts())
	}
	if v := m.View(); v.RequestID != 0 || v.ResultURL != "" || v.Progress != 0 {
		t.Errorf("closed view carries stale fields: %+v", v)
	}
}

func TestSessionMachine_PollTimeout(t *testing.T) {
	backend := &MockBackend{
		GetGenerationStatusFunc: statusSequence(model.GenerationState{Status: model.StatusPending}),
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)

	m.Dispatch(context.Background(), usecase.Simple(usecase.EvProceed))
	eventually(t, "timeout close", func() bool {
		return containsAlert(h.presenter.Alerts(), "error.poll_timeout")
	})
	waitForStep(t, m, model.StepClosed)
	if n := backend.Calls("GetGenerationStatus"); n != fastPoll.MaxAttempts {
		t.Errorf("status polled %d times, want %d", n, fastPoll.MaxAttempts)
	}
}

func TestSessionMachine_CancelDuringGeneration(t *testing.T) {
	backend := &MockBackend{
		GetGenerationStatusFunc: statusSequence(model.GenerationState{Status: model.StatusProcessing}),
	}
	h := newHarness(backend)
	locker := &MockLocker{}
	h.deps.Locker = locker
	h.deps.Poller = usecase.NewGenerationPoller(backend, usecase.PollerConfig{Interval: 5 * time.Millisecond, MaxAttempts: 1000}, newTestLogger())
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	waitForStep(t, m, model.StepGenerating)

	if step, err := m.Dispatch(ctx, usecase.Simple(usecase.EvCancel)); err != nil || step != model.StepClosed {
		t.Fatalf("cancel: %q (%v)", step, err)
	}
	calls := backend.Calls("GetGenerationStatus")
	time.Sleep(30 * time.Millisecond)
	if after := backend.Calls("GetGenerationStatus"); after > calls+1 {
		t.Errorf("poller kept running after cancel: %d -> %d", calls, after)
	}
	views := h.presenter.Views()
	if last := views[len(views)-1]; last.Step != model.StepClosed {
		t.Errorf("stale write after cancel: %+v", last)
	}
	eventually(t, "lock release", func() bool {
		locker.mu.Lock()
		defer locker.mu.Unlock()
		return len(locker.unlocked) == 1
	})

	if _, err := m.Dispatch(ctx, usecase.SelectTemplate(testTemplate)); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v := m.View(); v.RequestID != 0 || v.Progress != 0 || len(v.Assets) != 0 || v.Gateway != model.GatewayNone {
		t.Errorf("new session inherited state: %+v", v)
	}
}

func TestSessionMachine_CancelWhileChecking(t *testing.T) {
	for i := 0; i < 200; i++ {
		var zeroUser atomic.Bool
		backend := &MockBackend{
			CheckEligibilityFunc: func(ctx context.Context, userID, templateID int64) (*model.Eligibility, error) {
				if userID == 0 {
					zeroUser.Store(true)
				}
				return paidEligibility(ctx, userID, templateID)
			},
		}
		h := newHarness(backend)
		m := h.machine(t)
		openWithImage(t, m)
		ctx := context.Background()

		cancelled := make(chan struct{})
		var once sync.Once
		h.presenter.OnStep = func(v model.SessionView) {
			if v.Step != model.StepChecking {
				return
			}
			once.Do(func() {
				go func() {
					defer close(cancelled)
					m.Dispatch(ctx, usecase.Simple(usecase.EvCancel))
				}()
			})
		}

		m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
		<-cancelled
		if step := m.Step(); step != model.StepClosed {
			t.Fatalf("round %d: expected closed after cancel, got %q", i, step)
		}
		if zeroUser.Load() {
			t.Fatalf("round %d: eligibility checked without a user", i)
		}
	}
}

func TestSessionMachine_DuplicateProceedIgnored(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	backend := &MockBackend{
		CheckEligibilityFunc: func(context.Context, int64, int64) (*model.Eligibility, error) {
			entered <- struct{}{}
			<-release
			return &model.Eligibility{HasFreeCredit: true}, nil
		},
	}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
		done <- err
	}()
	<-entered

	if _, err := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed)); !errors.Is(err, domain.ErrTransitionInFlight) {
		t.Errorf("second proceed: got %v, want ErrTransitionInFlight", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first proceed: %v", err)
	}
	waitForStep(t, m, model.StepResult)
	if n := backend.Calls("CreateGeneration"); n != 1 {
		t.Errorf("create-generation called %d times, want 1", n)
	}
}

func TestSessionMachine_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("not enough images", func(t *testing.T) {
		h := newHarness(&MockBackend{})
		m := h.machine(t)
		tpl := testTemplate
		tpl.RequiredImages = 2
		m.Dispatch(ctx, usecase.SelectTemplate(tpl))
		m.Dispatch(ctx, usecase.AddAsset(testAsset()))

		step, err := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
		if !errors.Is(err, domain.ErrNotEnoughImages) || step != model.StepUpload {
			t.Fatalf("got %q (%v)", step, err)
		}
		if !containsAlert(h.presenter.Alerts(), "error.not_enough_images:2") {
			t.Errorf("alerts = %v", h.presenter.Alerts())
		}
		if h.backend.Calls("CheckEligibility") != 0 {
			t.Error("backend contacted before validation passed")
		}
	})

	t.Run("missing identity in production", func(t *testing.T) {
		h := newHarness(&MockBackend{})
		h.host.NoUser = true
		m := h.machine(t)
		openWithImage(t, m)

		step, err := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
		if !errors.Is(err, domain.ErrNoIdentity) || step != model.StepUpload {
			t.Fatalf("got %q (%v)", step, err)
		}
		if !containsAlert(h.presenter.Alerts(), "error.open_in_telegram") {
			t.Errorf("alerts = %v", h.presenter.Alerts())
		}
	})

	t.Run("missing identity in development", func(t *testing.T) {
		var gotUser int64
		backend := &MockBackend{
			CheckEligibilityFunc: func(_ context.Context, userID, _ int64) (*model.Eligibility, error) {
				gotUser = userID
				return &model.Eligibility{RequiresPayment: true}, nil
			},
		}
		h := newHarness(backend)
		h.host.NoUser = true
		h.deps.Dev = true
		h.deps.FallbackUserID = 1046805799
		m := h.machine(t)
		openWithImage(t, m)

		if step, _ := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed)); step != model.StepPayment {
			t.Fatalf("expected payment, got %q", step)
		}
		if gotUser != 1046805799 {
			t.Errorf("eligibility checked for %d", gotUser)
		}
	})

	t.Run("remove asset out of range", func(t *testing.T) {
		h := newHarness(&MockBackend{})
		m := h.machine(t)
		openWithImage(t, m)
		if _, err := m.Dispatch(ctx, usecase.RemoveAsset(3)); domain.KindOf(err) != domain.KindValidation {
			t.Errorf("expected validation error, got %v", err)
		}
		if _, err := m.Dispatch(ctx, usecase.RemoveAsset(0)); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if n := len(m.View().Assets); n != 0 {
			t.Errorf("assets left: %d", n)
		}
	})

	t.Run("template required", func(t *testing.T) {
		h := newHarness(&MockBackend{})
		m := h.machine(t)
		if _, err := m.Dispatch(ctx, usecase.SelectTemplate(model.Template{})); !errors.Is(err, domain.ErrNoTemplate) {
			t.Errorf("got %v", err)
		}
		if m.Step() != model.StepClosed {
			t.Errorf("session opened without template")
		}
	})

	t.Run("eligibility transport error returns to upload", func(t *testing.T) {
		backend := &MockBackend{
			CheckEligibilityFunc: func(context.Context, int64, int64) (*model.Eligibility, error) {
				return nil, domain.E(domain.KindTransport, "check-eligibility", "dial tcp: refused", nil)
			},
		}
		h := newHarness(backend)
		m := h.machine(t)
		openWithImage(t, m)
		step, _ := m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
		if step != model.StepUpload {
			t.Fatalf("got %q", step)
		}
		if v := m.View(); v.LastError != "error.transport" {
			t.Errorf("last error = %q", v.LastError)
		}
	})
}

func TestSessionMachine_BackToUpload(t *testing.T) {
	backend := &MockBackend{CheckEligibilityFunc: paidEligibility}
	h := newHarness(backend)
	m := h.machine(t)
	openWithImage(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, usecase.Simple(usecase.EvProceed))
	step, err := m.Dispatch(ctx, usecase.Simple(usecase.EvBackToUpload))
	if err != nil || step != model.StepUpload {
		t.Fatalf("got %q (%v)", step, err)
	}
	if v := m.View(); v.Gateway != model.GatewayNone || len(v.Assets) != 1 {
		t.Errorf("unexpected view %+v", v)
	}
	if _, err := m.Dispatch(ctx, usecase.Simple(usecase.EvRecheck)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("recheck from upload: %v", err)
	}
}

func TestSessionMachine_SessionLockedElsewhere(t *testing.T) {
	h := newHarness(&MockBackend{})
	h.deps.Locker = &MockLocker{TryLockFunc: func(context.Context, string) (string, error) {
		return "", domain.ErrSessionLocked
	}}
	m := h.machine(t)
	_, err := m.Dispatch(context.Background(), usecase.SelectTemplate(testTemplate))
	if !errors.Is(err, domain.ErrSessionLocked) {
		t.Fatalf("got %v", err)
	}
	if m.Step() != model.StepClosed {
		t.Error("session opened despite foreign lock")
	}
	if alerts := h.presenter.Alerts(); len(alerts) != 1 || !strings.HasPrefix(alerts[0], "error.session_locked") {
		t.Errorf("alerts = %v", alerts)
	}
}

func TestEventKind_Parse(t *testing.T) {
	k, ok := usecase.ParseEventKind("select_payment")
	if !ok || k != usecase.EvSelectPayment {
		t.Errorf("got %v %v", k, ok)
	}
	if _, ok := usecase.ParseEventKind("generation_done"); ok {
		t.Error("internal events must not be parseable")
	}
	if _, ok := usecase.ParseEventKind("bogus"); ok {
		t.Error("unknown event parsed")
	}
}
