package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/infra/metrics"
)

// AttemptInput is what a payment subflow needs from the session.
type AttemptInput struct {
	UserID     int64
	TemplateID int64
	Images     []model.Asset
}

// PaymentAttempt is a started payment whose UI is open on the host.
type PaymentAttempt struct {
	Method    model.PaymentMethod
	RequestID int64
	Invoice   adapter.Invoice // stars only
	LinkErr   error           // click only: the external link could not be opened
}

// submitUnpaid uploads the images with payment_verified=false and returns the request id.
func submitUnpaid(ctx context.Context, backend adapter.BackendClient, in AttemptInput, gw model.Gateway) (int64, error) {
	ticket, err := backend.CreateGeneration(ctx, model.GenerationRequest{
		TemplateID:      in.TemplateID,
		UserID:          in.UserID,
		Images:          in.Images,
		PaymentVerified: false,
		Gateway:         gw,
	})
	if err != nil {
		return 0, err
	}
	if ticket.Status.IsFailure() {
		return 0, domain.E(domain.KindUpstreamRejection, "create-generation", firstNonEmpty(ticket.Error, ticket.Message), nil)
	}
	if ticket.RequestID == 0 {
		return 0, domain.E(domain.KindProtocolViolation, "create-generation", "", domain.ErrMissingRequestID)
	}
	return ticket.RequestID, nil
}

func createPayment(ctx context.Context, backend adapter.BackendClient, in AttemptInput, requestID int64, method model.PaymentMethod) (*model.PaymentIntent, error) {
	intent, err := backend.CreatePayment(ctx, in.UserID, in.TemplateID, requestID, method)
	if err != nil {
		return nil, err
	}
	if intent.Status != "success" {
		return nil, domain.E(domain.KindUpstreamRejection, "create-payment", "", domain.ErrPaymentNotCreated)
	}
	return intent, nil
}

// StarsFlow is the callback-confirmed payment path.
type StarsFlow struct {
	backend adapter.BackendClient
	log     *zerolog.Logger
}

func NewStarsFlow(backend adapter.BackendClient, log *zerolog.Logger) *StarsFlow {
	return &StarsFlow{backend: backend, log: log}
}

// Begin uploads, creates the invoice and opens it on the host.
func (f *StarsFlow) Begin(ctx context.Context, host adapter.HostPlatform, in AttemptInput) (*PaymentAttempt, error) {
	rid, err := submitUnpaid(ctx, f.backend, in, model.GatewayStars)
	if err != nil {
		return nil, err
	}
	intent, err := createPayment(ctx, f.backend, in, rid, model.PaymentStars)
	if err != nil {
		return nil, err
	}
	if intent.InvoiceURL == "" {
		return nil, domain.E(domain.KindProtocolViolation, "create-payment", "", domain.ErrMissingInvoiceURL)
	}
	inv, err := host.OpenInvoice(ctx, intent.InvoiceURL)
	if err != nil {
		return nil, err
	}
	f.log.Info().Int64("request_id", rid).Msg("stars invoice opened")
	return &PaymentAttempt{Method: model.PaymentStars, RequestID: rid, Invoice: inv}, nil
}

// Settle acts on the terminal invoice outcome. Only a paid invoice reaches confirm-payment.
func (f *StarsFlow) Settle(ctx context.Context, requestID int64, outcome model.InvoiceOutcome) error {
	metrics.IncInvoiceOutcome(string(outcome))
	switch outcome {
	case model.InvoicePaid:
	case model.InvoiceCancelled:
		return domain.E(domain.KindPaymentOutcome, "invoice", "", domain.ErrInvoiceCancelled)
	default:
		return domain.E(domain.KindPaymentOutcome, "invoice", "", domain.ErrInvoiceFailed)
	}

	conf, err := f.backend.ConfirmPayment(ctx, requestID, model.PaymentStars)
	if err != nil {
		metrics.IncPaymentConfirmation(string(model.PaymentStars), "error")
		return err
	}
	if !conf.OK() {
		metrics.IncPaymentConfirmation(string(model.PaymentStars), "rejected")
		return domain.E(domain.KindPaymentOutcome, "confirm-payment", "", domain.ErrPaymentNotConfirmed)
	}
	metrics.IncPaymentConfirmation(string(model.PaymentStars), "ok")
	return nil
}

// ClickFlow is the webhook-confirmed payment path. It never calls confirm-payment.
type ClickFlow struct {
	backend  adapter.BackendClient
	interval time.Duration
	log      *zerolog.Logger
}

func NewClickFlow(backend adapter.BackendClient, interval time.Duration, log *zerolog.Logger) *ClickFlow {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &ClickFlow{backend: backend, interval: interval, log: log}
}

// Begin uploads, creates the payment page and opens it out-of-band.
// A link that fails to open is reported in LinkErr; the attempt still proceeds.
func (f *ClickFlow) Begin(ctx context.Context, host adapter.HostPlatform, in AttemptInput) (*PaymentAttempt, error) {
	rid, err := submitUnpaid(ctx, f.backend, in, model.GatewayClick)
	if err != nil {
		return nil, err
	}
	intent, err := createPayment(ctx, f.backend, in, rid, model.PaymentClick)
	if err != nil {
		return nil, err
	}
	if intent.PaymentURL == "" {
		return nil, domain.E(domain.KindProtocolViolation, "create-payment", "", domain.ErrMissingPaymentURL)
	}
	att := &PaymentAttempt{Method: model.PaymentClick, RequestID: rid}
	if err := host.OpenLink(ctx, intent.PaymentURL); err != nil {
		f.log.Warn().Err(err).Int64("request_id", rid).Msg("click payment link not opened")
		att.LinkErr = err
	}
	return att, nil
}

// AwaitWebhook polls the job status until the webhook has moved it past payment.
// It re-polls every interval while the job still awaits payment, retrying transport
// errors with no attempt cap. Any other error ends the wait. onPending is called for every awaiting-payment answer.
func (f *ClickFlow) AwaitWebhook(ctx context.Context, requestID int64, onPending func()) error {
	log := f.log.With().Int64("request_id", requestID).Logger()
	for {
		st, err := f.backend.GetGenerationStatus(ctx, requestID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if domain.KindOf(err) != domain.KindTransport {
				metrics.IncClickCheck("rejected")
				log.Warn().Err(err).Msg("click status check rejected")
				return err
			}
			metrics.IncClickCheck("transport_error")
			log.Warn().Err(err).Msg("click status check failed, retrying")

		case st.Status.PastPayment():
			metrics.IncClickCheck("confirmed")
			log.Info().Str("status", string(st.Status)).Msg("click payment confirmed by webhook")
			return nil

		case st.Status == model.StatusWaitingPayment || st.Status == model.StatusAwaitingPayment:
			metrics.IncClickCheck("waiting")
			if onPending != nil {
				onPending()
			}

		case st.Status.IsFailure():
			metrics.IncClickCheck("failed")
			return domain.E(domain.KindPaymentOutcome, "click-status", st.Reason(), nil)

		default:
			metrics.IncClickCheck("unknown")
			return domain.E(domain.KindPaymentOutcome, "click-status", "", domain.ErrUnknownStatus)
		}

		if err := sleepCtx(ctx, f.interval); err != nil {
			return err
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
