package webapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/domain/ports/repository"
	"telegram-image-studio/internal/infra/worker"
	"telegram-image-studio/internal/usecase"
)

const maxNotices = 20

var (
	_ adapter.Presenter    = (*Hub)(nil)
	_ usecase.HostProvider = (*Hub)(nil)
	_ adapter.HostPlatform = (*bridge)(nil)
	_ adapter.Invoice      = (*invoice)(nil)
)

// Hub connects the session machines to the webviews. The webview polls the
// session view; the hub adds whatever the machine asked the host to do.
type Hub struct {
	snapshots repository.SessionSnapshotRepository
	pool      *worker.Pool
	log       *zerolog.Logger

	mu      sync.Mutex
	bridges map[int64]*bridge
}

// NewHub builds a hub. snapshots and pool may be nil.
func NewHub(snapshots repository.SessionSnapshotRepository, pool *worker.Pool, log *zerolog.Logger) *Hub {
	return &Hub{snapshots: snapshots, pool: pool, log: log, bridges: make(map[int64]*bridge)}
}

func (h *Hub) bridge(userID int64) *bridge {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.bridges[userID]
	if !ok {
		b = &bridge{userID: userID}
		h.bridges[userID] = b
	}
	return b
}

// HostFor returns the host bridge of userID.
func (h *Hub) HostFor(userID int64) adapter.HostPlatform { return h.bridge(userID) }

// Attach records the authenticated host user and whether the host can show invoices.
func (h *Hub) Attach(user model.HostUser, invoices bool) {
	b := h.bridge(user.ID)
	b.mu.Lock()
	u := user
	b.user = &u
	b.invoices = invoices
	b.mu.Unlock()
}

func (h *Hub) StepChanged(ctx context.Context, view model.SessionView) {
	b := h.bridge(view.UserID)
	b.mu.Lock()
	prev := b.step
	b.step = view.Step
	switch view.Step {
	case model.StepPayment, model.StepPaymentWaiting:
	default:
		b.action = nil
	}
	if view.Step == model.StepResult {
		v := view
		b.lastResult = &v
	}
	b.mu.Unlock()

	h.persist(ctx, view, prev)
}

// persist queues a snapshot write for the user. Writes of one user run one at a
// time and only the latest pending one is kept, so a close never races an older save.
// A session closed from its result keeps the result snapshot.
func (h *Hub) persist(ctx context.Context, view model.SessionView, prev model.ModalStep) {
	if h.snapshots == nil {
		return
	}
	if view.Step == model.StepClosed && prev == model.StepResult {
		return
	}
	b := h.bridge(view.UserID)
	b.mu.Lock()
	b.snapNext = &snapshotWrite{view: view, clear: view.Step == model.StepClosed}
	if b.flushing {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	b.mu.Unlock()

	if h.pool == nil {
		h.flush(ctx, b)
		return
	}
	if err := h.pool.Submit(func(ctx context.Context) error {
		h.flush(ctx, b)
		return nil
	}); err != nil {
		// the pending write stays queued for the next transition
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
		h.log.Warn().Err(err).Int64("user_id", view.UserID).Msg("snapshot write deferred")
	}
}

func (h *Hub) flush(ctx context.Context, b *bridge) {
	for {
		b.mu.Lock()
		w := b.snapNext
		b.snapNext = nil
		if w == nil {
			b.flushing = false
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		var err error
		if w.clear {
			err = h.snapshots.Clear(ctx, b.userID)
		} else {
			err = h.snapshots.Save(ctx, w.view)
		}
		if err != nil {
			h.log.Warn().Err(err).Int64("user_id", b.userID).Str("step", string(w.view.Step)).Msg("snapshot write failed")
		}
	}
}

type snapshotWrite struct {
	view  model.SessionView
	clear bool
}

func (h *Hub) Alert(_ context.Context, userID int64, message string) {
	b := h.bridge(userID)
	b.mu.Lock()
	b.notices = append(b.notices, message)
	if n := len(b.notices); n > maxNotices {
		b.notices = append([]string(nil), b.notices[n-maxNotices:]...)
	}
	b.mu.Unlock()
}

// Decorate attaches the pending host action and drains queued notices into view.
func (h *Hub) Decorate(view model.SessionView) model.SessionView {
	b := h.bridge(view.UserID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.action != nil {
		a := *b.action
		view.Action = &a
	}
	view.Notices = b.notices
	b.notices = nil
	return view
}

// AckAction clears the pending action once the webview has performed it.
func (h *Hub) AckAction(userID int64, kind string) {
	b := h.bridge(userID)
	b.mu.Lock()
	if b.action != nil && b.action.Kind == kind {
		b.action = nil
	}
	b.mu.Unlock()
}

// LastResult returns the latest result of userID, from memory or the snapshot store.
func (h *Hub) LastResult(ctx context.Context, userID int64) (*model.SessionView, error) {
	b := h.bridge(userID)
	b.mu.Lock()
	if b.lastResult != nil {
		v := *b.lastResult
		b.mu.Unlock()
		return &v, nil
	}
	b.mu.Unlock()
	if h.snapshots == nil {
		return nil, domain.ErrNotFound
	}
	v, err := h.snapshots.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v.Step != model.StepResult {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

// ResolveInvoice forwards the status the host reported for the open invoice.
// Pending notifications are ignored.
func (h *Hub) ResolveInvoice(userID int64, status string) error {
	outcome := model.InvoiceOutcome(status)
	switch outcome {
	case model.InvoicePending:
		return nil
	case model.InvoicePaid, model.InvoiceCancelled, model.InvoiceFailed:
	default:
		return domain.E(domain.KindValidation, "invoice-status", "", fmt.Errorf("unknown invoice status %q", status))
	}
	b := h.bridge(userID)
	b.mu.Lock()
	inv := b.invoice
	b.invoice = nil
	if b.action != nil && b.action.Kind == model.ActionOpenInvoice {
		b.action = nil
	}
	b.mu.Unlock()
	if inv == nil {
		return domain.E(domain.KindValidation, "invoice-status", "", errors.New("no open invoice"))
	}
	inv.resolve(outcome)
	return nil
}

// bridge is the HostPlatform of one user.
type bridge struct {
	userID int64

	mu         sync.Mutex
	user       *model.HostUser
	invoices   bool
	step       model.ModalStep
	action     *model.HostAction
	notices    []string
	invoice    *invoice
	lastResult *model.SessionView

	snapNext *snapshotWrite
	flushing bool
}

func (b *bridge) CurrentUser(context.Context) (model.HostUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.user == nil || b.user.ID == 0 {
		return model.HostUser{}, false
	}
	return *b.user, true
}

func (b *bridge) OpenLink(_ context.Context, url string) error {
	if url == "" {
		return errors.New("empty link")
	}
	b.mu.Lock()
	b.action = &model.HostAction{Kind: model.ActionOpenLink, URL: url}
	b.mu.Unlock()
	return nil
}

func (b *bridge) OpenInvoice(_ context.Context, invoiceURL string) (adapter.Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.invoices {
		return nil, domain.ErrInvoiceUnsupported
	}
	inv := &invoice{done: make(chan model.InvoiceOutcome, 1)}
	b.invoice = inv
	b.action = &model.HostAction{Kind: model.ActionOpenInvoice, URL: invoiceURL}
	return inv, nil
}

type invoice struct {
	once sync.Once
	done chan model.InvoiceOutcome
}

func (i *invoice) resolve(o model.InvoiceOutcome) {
	i.once.Do(func() { i.done <- o })
}

func (i *invoice) Wait(ctx context.Context) (model.InvoiceOutcome, error) {
	select {
	case o := <-i.done:
		return o, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
