//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// keyTranslator echoes message keys so assertions do not depend on locale files.
type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	return key + ":" + fmt.Sprint(args...)
}

// --- Mock Backend

type MockBackend struct {
	mu    sync.Mutex
	calls map[string]int

	ListTemplatesFunc       func(ctx context.Context, page, limit int) (*model.TemplatePage, error)
	CheckEligibilityFunc    func(ctx context.Context, userID, templateID int64) (*model.Eligibility, error)
	CreateGenerationFunc    func(ctx context.Context, req model.GenerationRequest) (*model.GenerationTicket, error)
	CreatePaymentFunc       func(ctx context.Context, userID, templateID, requestID int64, method model.PaymentMethod) (*model.PaymentIntent, error)
	ConfirmPaymentFunc      func(ctx context.Context, requestID int64, method model.PaymentMethod) (*model.PaymentConfirmation, error)
	GetGenerationStatusFunc func(ctx context.Context, requestID int64) (*model.GenerationState, error)
}

var _ adapter.BackendClient = (*MockBackend)(nil)

func (m *MockBackend) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *MockBackend) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockBackend) ListTemplates(ctx context.Context, page, limit int) (*model.TemplatePage, error) {
	m.record("ListTemplates")
	if m.ListTemplatesFunc != nil {
		return m.ListTemplatesFunc(ctx, page, limit)
	}
	return &model.TemplatePage{Page: page}, nil
}

func (m *MockBackend) CheckEligibility(ctx context.Context, userID, templateID int64) (*model.Eligibility, error) {
	m.record("CheckEligibility")
	if m.CheckEligibilityFunc != nil {
		return m.CheckEligibilityFunc(ctx, userID, templateID)
	}
	return &model.Eligibility{HasFreeCredit: true}, nil
}

func (m *MockBackend) CreateGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationTicket, error) {
	m.record("CreateGeneration")
	if m.CreateGenerationFunc != nil {
		return m.CreateGenerationFunc(ctx, req)
	}
	return &model.GenerationTicket{Status: model.StatusGenerating, RequestID: 77}, nil
}

func (m *MockBackend) CreatePayment(ctx context.Context, userID, templateID, requestID int64, method model.PaymentMethod) (*model.PaymentIntent, error) {
	m.record("CreatePayment")
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, userID, templateID, requestID, method)
	}
	return &model.PaymentIntent{
		Status:     "success",
		Method:     method,
		InvoiceURL: "https://t.me/$invoice",
		PaymentURL: "https://my.click.uz/pay",
	}, nil
}

func (m *MockBackend) ConfirmPayment(ctx context.Context, requestID int64, method model.PaymentMethod) (*model.PaymentConfirmation, error) {
	m.record("ConfirmPayment")
	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, requestID, method)
	}
	return &model.PaymentConfirmation{Status: "success"}, nil
}

func (m *MockBackend) GetGenerationStatus(ctx context.Context, requestID int64) (*model.GenerationState, error) {
	m.record("GetGenerationStatus")
	if m.GetGenerationStatusFunc != nil {
		return m.GetGenerationStatusFunc(ctx, requestID)
	}
	return &model.GenerationState{Status: model.StatusCompleted, ResultURL: "https://cdn/result.png"}, nil
}

// statusSequence answers GetGenerationStatus from a script; the last entry repeats.
func statusSequence(states ...model.GenerationState) func(context.Context, int64) (*model.GenerationState, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, int64) (*model.GenerationState, error) {
		mu.Lock()
		defer mu.Unlock()
		st := states[i]
		if i < len(states)-1 {
			i++
		}
		return &st, nil
	}
}

// --- Mock Host

type fakeInvoice struct {
	ch chan model.InvoiceOutcome
}

func newFakeInvoice() *fakeInvoice { return &fakeInvoice{ch: make(chan model.InvoiceOutcome, 1)} }

func (f *fakeInvoice) Wait(ctx context.Context) (model.InvoiceOutcome, error) {
	select {
	case o := <-f.ch:
		return o, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type MockHost struct {
	User    model.HostUser
	NoUser  bool
	mu      sync.Mutex
	links   []string
	invoice *fakeInvoice

	OpenLinkFunc    func(ctx context.Context, url string) error
	OpenInvoiceFunc func(ctx context.Context, url string) (adapter.Invoice, error)
}

var _ adapter.HostPlatform = (*MockHost)(nil)

func (h *MockHost) CurrentUser(context.Context) (model.HostUser, bool) {
	if h.NoUser {
		return model.HostUser{}, false
	}
	return h.User, true
}

func (h *MockHost) OpenLink(ctx context.Context, url string) error {
	h.mu.Lock()
	h.links = append(h.links, url)
	h.mu.Unlock()
	if h.OpenLinkFunc != nil {
		return h.OpenLinkFunc(ctx, url)
	}
	return nil
}

func (h *MockHost) OpenInvoice(ctx context.Context, url string) (adapter.Invoice, error) {
	if h.OpenInvoiceFunc != nil {
		return h.OpenInvoiceFunc(ctx, url)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invoice = newFakeInvoice()
	return h.invoice, nil
}

// Resolve settles the most recently opened invoice.
func (h *MockHost) Resolve(o model.InvoiceOutcome) {
	h.mu.Lock()
	inv := h.invoice
	h.mu.Unlock()
	inv.ch <- o
}

// --- Recording Presenter

type RecordingPresenter struct {
	// OnStep runs for every published view, under the machine lock.
	OnStep func(v model.SessionView)

	mu     sync.Mutex
	views  []model.SessionView
	alerts []string
}

var _ adapter.Presenter = (*RecordingPresenter)(nil)

func (p *RecordingPresenter) StepChanged(_ context.Context, v model.SessionView) {
	p.mu.Lock()
	p.views = append(p.views, v)
	p.mu.Unlock()
	if p.OnStep != nil {
		p.OnStep(v)
	}
}

func (p *RecordingPresenter) Alert(_ context.Context, _ int64, msg string) {
	p.mu.Lock()
	p.alerts = append(p.alerts, msg)
	p.mu.Unlock()
}

func (p *RecordingPresenter) Views() []model.SessionView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SessionView(nil), p.views...)
}

func (p *RecordingPresenter) Alerts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.alerts...)
}

func (p *RecordingPresenter) Steps() []model.ModalStep {
	var out []model.ModalStep
	for _, v := range p.Views() {
		if len(out) == 0 || out[len(out)-1] != v.Step {
			out = append(out, v.Step)
		}
	}
	return out
}

// --- Mock Notifier / Usage

type MockNotifier struct {
	mu   sync.Mutex
	urls []string
}

func (n *MockNotifier) NotifyResult(_ context.Context, _ int64, _, url string) error {
	n.mu.Lock()
	n.urls = append(n.urls, url)
	n.mu.Unlock()
	return nil
}

type countingUsage struct {
	mu     sync.Mutex
	counts map[int64]int
}

func (u *countingUsage) IncrementUsage(id int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts == nil {
		u.counts = make(map[int64]int)
	}
	u.counts[id]++
}

func (u *countingUsage) Count(id int64) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[id]
}

// --- Mock Locker

type MockLocker struct {
	TryLockFunc func(ctx context.Context, key string) (string, error)
	mu          sync.Mutex
	unlocked    []string
}

func (l *MockLocker) TryLock(ctx context.Context, key string) (string, error) {
	if l.TryLockFunc != nil {
		return l.TryLockFunc(ctx, key)
	}
	return "token-" + key, nil
}

func (l *MockLocker) Unlock(_ context.Context, key, _ string) error {
	l.mu.Lock()
	l.unlocked = append(l.unlocked, key)
	l.mu.Unlock()
	return nil
}

// --- Fixtures

var fastPoll = usecase.PollerConfig{Interval: time.Millisecond, ErrorInterval: time.Millisecond, MaxAttempts: 60}

type harness struct {
	backend   *MockBackend
	host      *MockHost
	presenter *RecordingPresenter
	notifier  *MockNotifier
	usage     *countingUsage
	deps      usecase.MachineDeps
}

func newHarness(backend *MockBackend) *harness {
	log := newTestLogger()
	tr := keyTranslator{}
	h := &harness{
		backend:   backend,
		host:      &MockHost{User: model.HostUser{ID: 4242, FirstName: "Ali"}},
		presenter: &RecordingPresenter{},
		notifier:  &MockNotifier{},
		usage:     &countingUsage{},
	}
	h.deps = usecase.MachineDeps{
		Backend:    backend,
		Host:       h.host,
		Presenter:  h.presenter,
		Notifier:   h.notifier,
		Usage:      h.usage,
		Poller:     usecase.NewGenerationPoller(backend, fastPoll, log),
		Stars:      usecase.NewStarsFlow(backend, log),
		Click:      usecase.NewClickFlow(backend, time.Millisecond, log),
		Classifier: usecase.NewErrorClassifier(tr),
		Translator: tr,
		Log:        log,
	}
	return h
}

func (h *harness) machine(t *testing.T) *usecase.SessionMachine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return usecase.NewSessionMachine(ctx, 4242, h.deps)
}

var testTemplate = model.Template{ID: 5, Title: "Anime portrait", RequiredImages: 1}

func testAsset() model.Asset {
	return model.Asset{Name: "me.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
}

// openWithImage selects the test template and uploads one image.
func openWithImage(t *testing.T, m *usecase.SessionMachine) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.Dispatch(ctx, usecase.SelectTemplate(testTemplate)); err != nil {
		t.Fatalf("select template: %v", err)
	}
	if _, err := m.Dispatch(ctx, usecase.AddAsset(testAsset())); err != nil {
		t.Fatalf("add asset: %v", err)
	}
}

func waitForStep(t *testing.T, m *usecase.SessionMachine, want model.ModalStep) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if m.Step() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for step %q, still in %q", want, m.Step())
		case <-time.After(time.Millisecond):
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func transportErr() error {
	return domain.E(domain.KindTransport, "get-generation-status", "connection reset", nil)
}
