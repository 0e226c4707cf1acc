package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/domain/ports/repository"
	"telegram-image-studio/internal/infra/logging"
	"telegram-image-studio/internal/infra/metrics"
)

// UsageRecorder is told about every template that produced a result.
type UsageRecorder interface {
	IncrementUsage(templateID int64)
}

// MachineDeps wires a SessionMachine. Notifier, Locker and Usage are optional.
type MachineDeps struct {
	Backend    adapter.BackendClient
	Host       adapter.HostPlatform
	Presenter  adapter.Presenter
	Notifier   adapter.ResultNotifier
	Locker     repository.SessionLocker
	Usage      UsageRecorder
	Poller     *GenerationPoller
	Stars      *StarsFlow
	Click      *ClickFlow
	Classifier *ErrorClassifier
	Translator Translator
	Log        *zerolog.Logger

	// Dev allows proceeding without a host identity by using FallbackUserID.
	Dev            bool
	FallbackUserID int64

	Now   func() time.Time
	NewID func() string
}

// SessionMachine owns the generation session of one user.
//
// User events are serialized: while one transition is in flight, further user
// events are rejected with domain.ErrTransitionInFlight. Cancel is never rejected.
// Background loops (invoice wait, click status, generation poll) report back through
// internal events and every write checks that the session it belongs to is still live.
type SessionMachine struct {
	deps  MachineDeps
	owner int64
	base  context.Context
	log   zerolog.Logger

	op sync.Mutex // held for the duration of one transition

	mu          sync.Mutex
	sess        *model.GenerationSession
	sessCtx     context.Context
	sessCancel  context.CancelFunc
	lockToken   string
	attempt     uint64
	attemptCtx  context.Context
	attemptStop context.CancelFunc
	clickActive bool
	lastActive  time.Time
}

// NewSessionMachine creates a machine for owner. Every session context derives from ctx.
func NewSessionMachine(ctx context.Context, owner int64, deps MachineDeps) *SessionMachine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = NewSessionID
	}
	log := zerolog.Nop()
	if deps.Log != nil {
		log = deps.Log.With().Int64("user_id", owner).Logger()
	}
	return &SessionMachine{deps: deps, owner: owner, base: ctx, log: log, lastActive: deps.Now()}
}

func lockKey(userID int64) string { return "session:lock:" + strconv.FormatInt(userID, 10) }

// Dispatch feeds one event into the machine and returns the step it settled in.
func (m *SessionMachine) Dispatch(ctx context.Context, ev Event) (model.ModalStep, error) {
	if ev.Kind == EvCancel {
		m.touch()
		m.Close(ctx)
		return model.StepClosed, nil
	}
	if ev.Kind.internal() {
		m.op.Lock()
	} else if !m.op.TryLock() {
		m.log.Debug().Stringer("event", ev.Kind).Msg("event ignored, transition in flight")
		return m.Step(), domain.ErrTransitionInFlight
	} else {
		m.touch()
	}
	defer m.op.Unlock()

	err := m.handle(ctx, ev)
	return m.Step(), err
}

func (m *SessionMachine) handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EvSelectTemplate:
		return m.selectTemplate(ctx, ev.Template)
	case EvAddAsset:
		return m.addAsset(ev.Asset)
	case EvRemoveAsset:
		return m.removeAsset(ev.Index)
	case EvProceed:
		return m.proceed(ctx)
	case EvRecheck:
		return m.recheck()
	case EvBackToUpload:
		return m.backToUpload()
	case EvSelectPayment:
		return m.selectPayment(ev.Method)
	case EvCheckPayment:
		return m.checkPayment()
	case EvCancelPayment:
		return m.cancelPayment()
	case evInvoiceSettled:
		m.onInvoiceSettled(ev)
		return nil
	case evWebhookSettled:
		m.onWebhookSettled(ev)
		return nil
	case evGenerationDone:
		m.onGenerationDone(ev)
		return nil
	}
	return domain.ErrInvalidTransition
}

// Step is the current modal step.
func (m *SessionMachine) Step() model.ModalStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return model.StepClosed
	}
	return m.sess.Step
}

// View renders the live session, or a closed view.
func (m *SessionMachine) View() model.SessionView {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return m.closedView()
	}
	return m.sess.View()
}

// IdleSince reports whether the machine holds no session and when it was last used.
func (m *SessionMachine) IdleSince() (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess == nil, m.lastActive
}

func (m *SessionMachine) touch() {
	m.mu.Lock()
	m.lastActive = m.deps.Now()
	m.mu.Unlock()
}

func (m *SessionMachine) closedView() model.SessionView {
	return model.SessionView{UserID: m.owner, Step: model.StepClosed, UpdatedAt: m.deps.Now()}
}

// Close ends the session from any step: background loops are cancelled,
// every field is discarded and a closed view is published.
func (m *SessionMachine) Close(ctx context.Context) {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return
	}
	m.closeLocked(ctx)
	m.mu.Unlock()
}

func (m *SessionMachine) closeSession(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live(sid) == nil {
		return
	}
	m.closeLocked(m.base)
}

func (m *SessionMachine) closeLocked(ctx context.Context) {
	s := m.sess
	m.stopAttemptLocked()
	m.sessCancel()
	token := m.lockToken
	metrics.IncStepTransition(string(s.Step), string(model.StepClosed))
	m.log.Info().Str("session_id", s.ID).Str("from", string(s.Step)).Msg("session closed")

	m.sess, m.sessCtx, m.sessCancel, m.lockToken = nil, nil, nil, ""
	metrics.SessionClosed()
	m.deps.Presenter.StepChanged(ctx, m.closedView())

	if m.deps.Locker != nil && token != "" {
		go func() {
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := m.deps.Locker.Unlock(uctx, lockKey(m.owner), token); err != nil {
				m.log.Warn().Err(err).Msg("session lock release failed")
			}
		}()
	}
}

// live returns the session if sid is still the current one. Caller holds mu.
func (m *SessionMachine) live(sid string) *model.GenerationSession {
	if m.sess == nil || m.sess.ID != sid {
		return nil
	}
	return m.sess
}

// update applies fn to session sid and publishes the result when fn reports a change.
func (m *SessionMachine) update(sid string, fn func(s *model.GenerationSession) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.live(sid)
	if s == nil || !fn(s) {
		return false
	}
	s.UpdatedAt = m.deps.Now()
	m.deps.Presenter.StepChanged(m.sessCtx, s.View())
	return true
}

// moveTo changes the step. Caller holds mu.
func (m *SessionMachine) moveTo(s *model.GenerationSession, to model.ModalStep) {
	if s.Step == to {
		return
	}
	metrics.IncStepTransition(string(s.Step), string(to))
	m.log.Info().Str("session_id", s.ID).Str("from", string(s.Step)).Str("to", string(to)).Msg("step changed")
	s.Step = to
}

// current returns the live session id when the step is one of allowed.
func (m *SessionMachine) current(allowed ...model.ModalStep) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return "", domain.ErrNoSession
	}
	for _, st := range allowed {
		if m.sess.Step == st {
			return m.sess.ID, nil
		}
	}
	return "", domain.ErrInvalidTransition
}

func (m *SessionMachine) alert(msg string) {
	if msg == "" {
		return
	}
	m.deps.Presenter.Alert(m.base, m.owner, msg)
}

// recoverTo surfaces err and parks the session in step.
func (m *SessionMachine) recoverTo(sid string, step model.ModalStep, err error) {
	msg := m.deps.Classifier.Message(err)
	m.log.Warn().Err(err).Str("session_id", sid).Str("step", string(step)).Msg("transition failed")
	m.update(sid, func(s *model.GenerationSession) bool {
		s.LastError = msg
		m.moveTo(s, step)
		return true
	})
	m.alert(msg)
}

func (m *SessionMachine) selectTemplate(ctx context.Context, tpl model.Template) error {
	if tpl.ID <= 0 {
		m.alert(m.deps.Classifier.Message(domain.ErrNoTemplate))
		return domain.E(domain.KindValidation, "select-template", "", domain.ErrNoTemplate)
	}
	m.mu.Lock()
	busy := m.sess != nil
	m.mu.Unlock()
	if busy {
		return domain.ErrInvalidTransition
	}

	var token string
	if m.deps.Locker != nil {
		t, err := m.deps.Locker.TryLock(ctx, lockKey(m.owner))
		switch {
		case errors.Is(err, domain.ErrSessionLocked):
			m.alert(m.deps.Classifier.Message(err))
			return domain.E(domain.KindValidation, "select-template", "", err)
		case err != nil:
			m.log.Warn().Err(err).Msg("session lock unavailable, continuing unlocked")
		default:
			token = t
		}
	}

	required := tpl.RequiredImages
	if required < 1 {
		required = 1
	}
	now := m.deps.Now()
	sctx, cancel := context.WithCancel(m.base)
	s := &model.GenerationSession{
		ID:             m.deps.NewID(),
		UserID:         m.owner,
		TemplateID:     tpl.ID,
		TemplateTitle:  tpl.Title,
		RequiredImages: required,
		Step:           model.StepClosed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m.mu.Lock()
	m.sess, m.sessCtx, m.sessCancel, m.lockToken = s, sctx, cancel, token
	m.moveTo(s, model.StepUpload)
	m.deps.Presenter.StepChanged(sctx, s.View())
	m.mu.Unlock()
	metrics.SessionOpened()
	return nil
}

func (m *SessionMachine) addAsset(a model.Asset) error {
	sid, err := m.current(model.StepUpload)
	if err != nil {
		return err
	}
	if len(a.Data) == 0 {
		return domain.E(domain.KindValidation, "add-asset", "empty image", nil)
	}
	m.update(sid, func(s *model.GenerationSession) bool {
		s.Assets = append(s.Assets, a)
		s.LastError = ""
		return true
	})
	return nil
}

func (m *SessionMachine) removeAsset(i int) error {
	sid, err := m.current(model.StepUpload)
	if err != nil {
		return err
	}
	var ok bool
	m.update(sid, func(s *model.GenerationSession) bool {
		if i < 0 || i >= len(s.Assets) {
			return false
		}
		s.Assets = append(s.Assets[:i:i], s.Assets[i+1:]...)
		ok = true
		return true
	})
	if !ok {
		return domain.E(domain.KindValidation, "remove-asset", "no image at index "+strconv.Itoa(i), nil)
	}
	return nil
}

func (m *SessionMachine) proceed(ctx context.Context) error {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return domain.ErrNoSession
	}
	if s.Step != model.StepUpload {
		m.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	sid, tplID, required, got := s.ID, s.TemplateID, s.RequiredImages, len(s.Assets)
	m.mu.Unlock()

	if tplID == 0 {
		err := domain.E(domain.KindValidation, "proceed", "", domain.ErrNoTemplate)
		m.recoverTo(sid, model.StepUpload, err)
		return err
	}
	if got < required {
		err := domain.E(domain.KindValidation, "proceed", "", &domain.ImageCountError{Required: required, Got: got})
		m.recoverTo(sid, model.StepUpload, err)
		return err
	}

	user, ok := m.deps.Host.CurrentUser(ctx)
	uid := user.ID
	if !ok || uid == 0 {
		if !m.deps.Dev {
			err := domain.E(domain.KindValidation, "proceed", "", domain.ErrNoIdentity)
			m.recoverTo(sid, model.StepUpload, err)
			return err
		}
		uid = m.deps.FallbackUserID
		m.log.Warn().Int64("fallback_user_id", uid).Msg("no host identity, using development fallback")
	}

	m.update(sid, func(s *model.GenerationSession) bool {
		s.UserID = uid
		s.LastError = ""
		m.moveTo(s, model.StepChecking)
		return true
	})
	return m.check(sid)
}

func (m *SessionMachine) recheck() error {
	sid, err := m.current(model.StepSubscription)
	if err != nil {
		return err
	}
	m.update(sid, func(s *model.GenerationSession) bool {
		s.LastError = ""
		m.moveTo(s, model.StepChecking)
		return true
	})
	return m.check(sid)
}

// check asks the backend for eligibility and routes the session. Caller is in Checking.
func (m *SessionMachine) check(sid string) error {
	m.mu.Lock()
	s := m.live(sid)
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	sctx, uid, tplID := m.sessCtx, s.UserID, s.TemplateID
	m.mu.Unlock()

	elig, err := m.deps.Backend.CheckEligibility(sctx, uid, tplID)
	if err != nil {
		if sctx.Err() != nil {
			return nil
		}
		m.recoverTo(sid, model.StepUpload, err)
		return err
	}

	gw, fallback := resolveGateway(*elig)
	metrics.IncGatewayResolved(string(gw), fallback)
	if fallback {
		m.log.Warn().Str("session_id", sid).Msg("eligibility matched no rule, treating as free")
	}

	switch gw {
	case model.GatewaySponsor:
		m.update(sid, func(s *model.GenerationSession) bool {
			s.Gateway = model.GatewaySponsor
			s.Sponsors = elig.UnsatisfiedSponsors()
			s.Price = elig.Price
			m.moveTo(s, model.StepSubscription)
			return true
		})
		return nil
	case model.GatewayPaymentRequired:
		m.update(sid, func(s *model.GenerationSession) bool {
			s.Gateway = model.GatewayPaymentRequired
			s.Sponsors = nil
			s.Price = elig.Price
			m.moveTo(s, model.StepPayment)
			return true
		})
		return nil
	}

	m.update(sid, func(s *model.GenerationSession) bool {
		s.Gateway = model.GatewayFree
		s.Sponsors = nil
		s.Price = elig.Price
		return true
	})
	return m.startFree(sctx, sid)
}

// startFree creates an already-verified generation and enters Generating once a request id exists.
func (m *SessionMachine) startFree(sctx context.Context, sid string) error {
	m.mu.Lock()
	s := m.live(sid)
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	req := model.GenerationRequest{
		TemplateID:      s.TemplateID,
		UserID:          s.UserID,
		Images:          append([]model.Asset(nil), s.Assets...),
		PaymentVerified: true,
		Gateway:         model.GatewayFree,
	}
	m.mu.Unlock()

	ticket, err := m.deps.Backend.CreateGeneration(sctx, req)
	if err == nil && ticket.Status.IsFailure() {
		err = domain.E(domain.KindUpstreamRejection, "create-generation", firstNonEmpty(ticket.Error, ticket.Message), nil)
	}
	if err == nil && ticket.RequestID == 0 {
		err = domain.E(domain.KindProtocolViolation, "create-generation", "", domain.ErrMissingRequestID)
	}
	if err != nil {
		if sctx.Err() != nil {
			return nil
		}
		m.recoverTo(sid, model.StepUpload, err)
		return err
	}
	m.enterGenerating(sid, ticket.RequestID, model.StepChecking)
	return nil
}

// enterGenerating moves to Generating with a known request id and starts polling.
func (m *SessionMachine) enterGenerating(sid string, requestID int64, from model.ModalStep) {
	var sctx context.Context
	ok := m.update(sid, func(s *model.GenerationSession) bool {
		if s.Step != from || requestID == 0 {
			return false
		}
		s.RequestID = requestID
		s.LastError = ""
		if s.Progress < ProgressStart {
			s.Progress = ProgressStart
		}
		m.moveTo(s, model.StepGenerating)
		sctx = m.sessCtx
		return true
	})
	if !ok {
		return
	}
	go m.runPoll(logging.WithSessID(sctx, sid), sid, requestID)
}

func (m *SessionMachine) runPoll(ctx context.Context, sid string, requestID int64) {
	res, err := m.deps.Poller.Poll(ctx, requestID, func(p int) {
		m.update(sid, func(s *model.GenerationSession) bool {
			if s.Step != model.StepGenerating || s.RequestID != requestID || p <= s.Progress {
				return false
			}
			s.Progress = p
			return true
		})
	})
	if ctx.Err() != nil {
		return
	}
	m.dispatchInternal(Event{Kind: evGenerationDone, sessionID: sid, requestID: requestID, result: res, err: err})
}

func (m *SessionMachine) dispatchInternal(ev Event) {
	if _, err := m.Dispatch(m.base, ev); err != nil {
		m.log.Debug().Err(err).Stringer("event", ev.Kind).Msg("internal event dropped")
	}
}

func (m *SessionMachine) onGenerationDone(ev Event) {
	m.mu.Lock()
	s := m.live(ev.sessionID)
	valid := s != nil && s.Step == model.StepGenerating && s.RequestID == ev.requestID
	m.mu.Unlock()
	if !valid {
		m.log.Debug().Int64("request_id", ev.requestID).Msg("stale generation result ignored")
		return
	}

	if ev.err != nil {
		msg := m.deps.Classifier.Message(ev.err)
		m.log.Warn().Err(ev.err).Str("session_id", ev.sessionID).Int64("request_id", ev.requestID).Msg("generation failed")
		m.alert(msg)
		m.closeSession(ev.sessionID)
		return
	}

	var uid, tplID int64
	var title string
	m.update(ev.sessionID, func(s *model.GenerationSession) bool {
		s.Progress = ProgressDone
		s.ResultURL = ev.result.ResultURL
		m.moveTo(s, model.StepResult)
		uid, tplID, title = s.UserID, s.TemplateID, s.TemplateTitle
		return true
	})
	if m.deps.Usage != nil {
		m.deps.Usage.IncrementUsage(tplID)
	}
	if m.deps.Notifier != nil {
		if err := m.deps.Notifier.NotifyResult(m.base, uid, title, ev.result.ResultURL); err != nil {
			m.log.Warn().Err(err).Msg("result notification failed")
		}
	}
}

func (m *SessionMachine) backToUpload() error {
	sid, err := m.current(model.StepSubscription, model.StepPayment)
	if err != nil {
		return err
	}
	m.update(sid, func(s *model.GenerationSession) bool {
		m.stopAttemptLocked()
		s.Gateway = model.GatewayNone
		s.PaymentMethod = ""
		s.Sponsors = nil
		s.RequestID = 0
		s.LastError = ""
		m.moveTo(s, model.StepUpload)
		return true
	})
	return nil
}

// stopAttemptLocked cancels the running payment attempt. Caller holds mu.
func (m *SessionMachine) stopAttemptLocked() {
	if m.attemptStop != nil {
		m.attemptStop()
	}
	m.attempt++
	m.attemptCtx, m.attemptStop = nil, nil
	m.clickActive = false
}

func (m *SessionMachine) selectPayment(method model.PaymentMethod) error {
	if !method.Valid() {
		return domain.E(domain.KindValidation, "select-payment", "unknown payment method", domain.ErrInvalidTransition)
	}
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return domain.ErrNoSession
	}
	if s.Step != model.StepPayment {
		m.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	m.stopAttemptLocked()
	att := m.attempt
	actx, stop := context.WithCancel(m.sessCtx)
	m.attemptCtx, m.attemptStop = actx, stop
	sid := s.ID
	in := AttemptInput{UserID: s.UserID, TemplateID: s.TemplateID, Images: append([]model.Asset(nil), s.Assets...)}
	s.Gateway = method.Gateway()
	s.PaymentMethod = method
	s.RequestID = 0
	s.LastError = ""
	s.UpdatedAt = m.deps.Now()
	m.deps.Presenter.StepChanged(m.sessCtx, s.View())
	m.mu.Unlock()

	var pa *PaymentAttempt
	var err error
	if method == model.PaymentStars {
		pa, err = m.deps.Stars.Begin(actx, m.deps.Host, in)
	} else {
		pa, err = m.deps.Click.Begin(actx, m.deps.Host, in)
	}
	if err != nil {
		if actx.Err() != nil {
			return nil
		}
		metrics.IncPaymentAttempt(string(method), "failed")
		m.backToPayment(sid, att, err)
		return err
	}
	metrics.IncPaymentAttempt(string(method), "opened")

	ok := m.update(sid, func(s *model.GenerationSession) bool {
		if s.Step != model.StepPayment || m.attempt != att {
			return false
		}
		s.RequestID = pa.RequestID
		m.moveTo(s, model.StepPaymentWaiting)
		return true
	})
	if !ok {
		stop()
		return nil
	}
	if pa.LinkErr != nil {
		m.alert(m.deps.Translator.T("payment.link_blocked"))
	}
	if pa.Invoice != nil {
		go m.awaitInvoice(actx, sid, att, pa.Invoice)
	}
	return nil
}

// backToPayment abandons attempt att and returns to method selection.
// The request id of the abandoned attempt is dropped and never reused.
func (m *SessionMachine) backToPayment(sid string, att uint64, cause error) {
	msg := ""
	if cause != nil {
		msg = m.deps.Classifier.Message(cause)
		m.log.Warn().Err(cause).Str("session_id", sid).Msg("payment attempt abandoned")
	}
	ok := m.update(sid, func(s *model.GenerationSession) bool {
		if m.attempt != att {
			return false
		}
		m.stopAttemptLocked()
		s.Gateway = model.GatewayPaymentRequired
		s.PaymentMethod = ""
		s.RequestID = 0
		s.LastError = msg
		m.moveTo(s, model.StepPayment)
		return true
	})
	if ok {
		m.alert(msg)
	}
}

func (m *SessionMachine) awaitInvoice(ctx context.Context, sid string, att uint64, inv adapter.Invoice) {
	outcome, err := inv.Wait(ctx)
	if err != nil {
		return
	}
	m.dispatchInternal(Event{Kind: evInvoiceSettled, sessionID: sid, attempt: att, outcome: outcome})
}

// waiting returns the attempt context and request id when ev still belongs to the
// live waiting step of the given method.
func (m *SessionMachine) waiting(ev Event, method model.PaymentMethod) (context.Context, int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.live(ev.sessionID)
	if s == nil || s.Step != model.StepPaymentWaiting || s.PaymentMethod != method || m.attempt != ev.attempt {
		return nil, 0, false
	}
	return m.attemptCtx, s.RequestID, true
}

func (m *SessionMachine) onInvoiceSettled(ev Event) {
	actx, rid, ok := m.waiting(ev, model.PaymentStars)
	if !ok {
		m.log.Debug().Str("outcome", string(ev.outcome)).Msg("stale invoice outcome ignored")
		return
	}
	if err := m.deps.Stars.Settle(actx, rid, ev.outcome); err != nil {
		if actx.Err() != nil {
			return
		}
		m.backToPayment(ev.sessionID, ev.attempt, err)
		return
	}
	m.enterGenerating(ev.sessionID, rid, model.StepPaymentWaiting)
}

func (m *SessionMachine) checkPayment() error {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return domain.ErrNoSession
	}
	if s.Step != model.StepPaymentWaiting || s.PaymentMethod != model.PaymentClick {
		m.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if m.clickActive {
		m.mu.Unlock()
		return nil
	}
	m.clickActive = true
	sid, att, actx, rid := s.ID, m.attempt, m.attemptCtx, s.RequestID
	m.mu.Unlock()

	go func() {
		err := m.deps.Click.AwaitWebhook(actx, rid, func() {
			m.alert(m.deps.Translator.T("payment.pending"))
		})
		m.mu.Lock()
		if m.attempt == att {
			m.clickActive = false
		}
		m.mu.Unlock()
		if actx.Err() != nil {
			return
		}
		m.dispatchInternal(Event{Kind: evWebhookSettled, sessionID: sid, attempt: att, requestID: rid, err: err})
	}()
	return nil
}

func (m *SessionMachine) onWebhookSettled(ev Event) {
	_, rid, ok := m.waiting(ev, model.PaymentClick)
	if !ok || rid != ev.requestID {
		m.log.Debug().Int64("request_id", ev.requestID).Msg("stale click status ignored")
		return
	}
	if ev.err != nil {
		m.backToPayment(ev.sessionID, ev.attempt, ev.err)
		return
	}
	m.enterGenerating(ev.sessionID, rid, model.StepPaymentWaiting)
}

func (m *SessionMachine) cancelPayment() error {
	sid, err := m.current(model.StepPaymentWaiting)
	if err != nil {
		return err
	}
	m.mu.Lock()
	att := m.attempt
	m.mu.Unlock()
	m.backToPayment(sid, att, nil)
	return nil
}
