package usecase

import (
	"context"
	"errors"
	"strings"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/infra/metrics"
)

// FailureClass is the classified kind of a free-form upstream failure message.
type FailureClass string

const (
	ClassContentSafety FailureClass = "content_safety"
	ClassModeration    FailureClass = "moderation"
	ClassRateLimit     FailureClass = "rate_limit"
	ClassInvalidInput  FailureClass = "invalid_input"
	ClassTimeout       FailureClass = "timeout"
	ClassBilling       FailureClass = "billing"
	ClassUnknown       FailureClass = "unknown"
)

type classRule struct {
	class    FailureClass
	key      string
	patterns []string
}

// Order matters: the first matching rule wins ("blocked by safety filter" is a safety failure).
var classRules = []classRule{
	{ClassContentSafety, "error.content_safety", []string{"safety", "nsfw", "content policy", "inappropriate", "unsafe"}},
	{ClassModeration, "error.moderation", []string{"moderation", "moderated", "blocked", "flagged", "prohibited"}},
	{ClassRateLimit, "error.rate_limit", []string{"rate limit", "rate_limit", "ratelimit", "too many requests", "429"}},
	{ClassInvalidInput, "error.invalid_input", []string{"invalid image", "corrupt", "malformed", "cannot decode", "unsupported format", "invalid input", "bad image"}},
	{ClassTimeout, "error.timeout", []string{"timeout", "timed out", "deadline exceeded"}},
	{ClassBilling, "error.billing", []string{"billing", "quota", "insufficient", "balance", "credit"}},
}

// ErrorClassifier is the single place where upstream failures become user-facing text.
type ErrorClassifier struct {
	tr Translator
}

func NewErrorClassifier(tr Translator) *ErrorClassifier {
	return &ErrorClassifier{tr: tr}
}

// Classify maps a raw upstream message by case-insensitive substring matching.
// Unmatched messages come back verbatim; empty ones get the generic failure text.
func (c *ErrorClassifier) Classify(raw string) (FailureClass, string) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	for _, r := range classRules {
		for _, p := range r.patterns {
			if strings.Contains(lower, p) {
				metrics.IncErrorClassified(string(r.class))
				return r.class, c.tr.T(r.key)
			}
		}
	}
	metrics.IncErrorClassified(string(ClassUnknown))
	if trimmed == "" {
		return ClassUnknown, c.tr.T("error.generation_failed")
	}
	return ClassUnknown, trimmed
}

var sentinelKeys = []struct {
	err error
	key string
}{
	{domain.ErrNoTemplate, "error.no_template"},
	{domain.ErrNoIdentity, "error.open_in_telegram"},
	{domain.ErrSessionLocked, "error.session_locked"},
	{domain.ErrMissingRequestID, "error.missing_request_id"},
	{domain.ErrPollTimeout, "error.poll_timeout"},
	{domain.ErrMissingResult, "error.missing_result"},
	{domain.ErrMissingPaymentURL, "payment.missing_url"},
	{domain.ErrMissingInvoiceURL, "payment.missing_invoice"},
	{domain.ErrPaymentNotCreated, "payment.create_failed"},
	{domain.ErrInvoiceUnsupported, "payment.invoice_unsupported"},
	{domain.ErrPaymentNotConfirmed, "payment.confirm_failed"},
	{domain.ErrUnknownStatus, "payment.unknown_status"},
	{domain.ErrInvoiceCancelled, "payment.cancelled"},
	{domain.ErrInvoiceFailed, "payment.failed"},
	{context.DeadlineExceeded, "error.request_timeout"},
}

// Message renders any orchestration error as a localized message.
func (c *ErrorClassifier) Message(err error) string {
	if err == nil {
		return ""
	}
	var ice *domain.ImageCountError
	if errors.As(err, &ice) {
		return c.tr.T("error.not_enough_images", ice.Required)
	}
	for _, s := range sentinelKeys {
		if errors.Is(err, s.err) {
			return c.tr.T(s.key)
		}
	}
	switch domain.KindOf(err) {
	case domain.KindTransport:
		return c.tr.T("error.transport")
	case domain.KindUpstreamRejection, domain.KindGenerationFailure, domain.KindPaymentOutcome:
		if msg := domain.MessageOf(err); msg != "" {
			_, text := c.Classify(msg)
			return text
		}
		if domain.KindOf(err) == domain.KindGenerationFailure {
			return c.tr.T("error.generation_failed")
		}
		if domain.KindOf(err) == domain.KindPaymentOutcome {
			return c.tr.T("payment.failed")
		}
	}
	return c.tr.T("error.generic")
}
