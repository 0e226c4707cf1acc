package adapter

import (
	"context"

	"telegram-image-studio/internal/domain/model"
)

// Invoice is a one-shot future for the host invoice dialog.
// Wait resolves to exactly one of paid, cancelled or failed; pending notifications never surface.
type Invoice interface {
	Wait(ctx context.Context) (model.InvoiceOutcome, error)
}

// HostPlatform is the mini-app host capability set.
type HostPlatform interface {
	// CurrentUser returns the authenticated user, ok=false when the host delivered none.
	CurrentUser(ctx context.Context) (model.HostUser, bool)
	OpenLink(ctx context.Context, url string) error
	// OpenInvoice returns domain.ErrInvoiceUnsupported when the host cannot show invoices.
	OpenInvoice(ctx context.Context, invoiceURL string) (Invoice, error)
}

// Presenter receives everything the state machine surfaces to the user.
type Presenter interface {
	StepChanged(ctx context.Context, view model.SessionView)
	Alert(ctx context.Context, userID int64, message string)
}

// ResultNotifier delivers a finished image out-of-band (e.g. a chat message).
type ResultNotifier interface {
	NotifyResult(ctx context.Context, userID int64, templateTitle, resultURL string) error
}
