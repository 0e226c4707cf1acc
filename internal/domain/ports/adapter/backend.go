package adapter

import (
	"context"

	"telegram-image-studio/internal/domain/model"
)

// BackendClient is the port for the generation/payment backend.
// Implementations return *domain.Error values classified as transport or upstream rejection.
type BackendClient interface {
	ListTemplates(ctx context.Context, page, limit int) (*model.TemplatePage, error)
	CheckEligibility(ctx context.Context, userID, templateID int64) (*model.Eligibility, error)
	CreateGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationTicket, error)
	CreatePayment(ctx context.Context, userID, templateID, requestID int64, method model.PaymentMethod) (*model.PaymentIntent, error)
	// ConfirmPayment is Stars only; the Click webhook is the sole source of truth for Click.
	ConfirmPayment(ctx context.Context, requestID int64, method model.PaymentMethod) (*model.PaymentConfirmation, error)
	GetGenerationStatus(ctx context.Context, requestID int64) (*model.GenerationState, error)
}
