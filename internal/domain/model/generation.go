package model

import "strings"

type GenerationStatus string

const (
	StatusGenerating      GenerationStatus = "generating"
	StatusAwaitingPayment GenerationStatus = "awaiting_payment"
	StatusPending         GenerationStatus = "PENDING"
	StatusProcessing      GenerationStatus = "PROCESSING"
	StatusCompleted       GenerationStatus = "COMPLETED"
	StatusFailed          GenerationStatus = "FAILED"
	StatusWaitingPayment  GenerationStatus = "WAITING_PAYMENT"
	StatusError           GenerationStatus = "error"
)

// IsFailure reports FAILED or the lowercase error status.
func (s GenerationStatus) IsFailure() bool {
	return s == StatusFailed || strings.EqualFold(string(s), string(StatusError))
}

// PastPayment reports whether the webhook already moved the job beyond awaiting payment.
func (s GenerationStatus) PastPayment() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusCompleted
}

// GenerationRequest is the create-generation input.
type GenerationRequest struct {
	TemplateID      int64
	UserID          int64
	Images          []Asset
	PaymentVerified bool
	Gateway         Gateway
}

// GenerationTicket is the create-generation answer.
type GenerationTicket struct {
	Status    GenerationStatus
	RequestID int64
	Error     string
	Message   string
}

// GenerationState is one get-generation-status answer.
type GenerationState struct {
	Status    GenerationStatus
	ResultURL string
	Error     string
	Message   string
}

// Reason returns the upstream failure reason, preferring error over message.
func (s GenerationState) Reason() string {
	if s.Error != "" {
		return s.Error
	}
	return s.Message
}

// GenerationResult is the terminal success of a polling run.
type GenerationResult struct {
	RequestID int64
	ResultURL string
	Attempts  int
}
