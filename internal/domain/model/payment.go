package model

// PaymentIntent is the create-payment answer.
type PaymentIntent struct {
	Status     string
	Method     PaymentMethod
	InvoiceURL string // stars
	PaymentURL string // click
	Price      int64
}

type PaymentConfirmation struct {
	Status  string
	Message string
}

func (c PaymentConfirmation) OK() bool { return c.Status == "success" }

// InvoiceOutcome is what the host invoice dialog reports.
type InvoiceOutcome string

const (
	InvoicePaid      InvoiceOutcome = "paid"
	InvoiceCancelled InvoiceOutcome = "cancelled"
	InvoiceFailed    InvoiceOutcome = "failed"
	InvoicePending   InvoiceOutcome = "pending"
)

// Terminal is false only for the transient pending notification.
func (o InvoiceOutcome) Terminal() bool {
	return o == InvoicePaid || o == InvoiceCancelled || o == InvoiceFailed
}
