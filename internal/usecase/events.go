package usecase

import "telegram-image-studio/internal/domain/model"

// EventKind enumerates everything the session state machine reacts to.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvSelectTemplate
	EvAddAsset
	EvRemoveAsset
	EvProceed
	EvRecheck
	EvBackToUpload
	EvSelectPayment
	EvCheckPayment  // click: user asserts "I paid"
	EvCancelPayment // leave the waiting step
	EvCancel        // close the modal from any step

	// Delivered by the machine's own background loops.
	evInvoiceSettled
	evWebhookSettled
	evGenerationDone
)

var eventNames = map[EventKind]string{
	EvSelectTemplate: "select_template",
	EvAddAsset:       "add_asset",
	EvRemoveAsset:    "remove_asset",
	EvProceed:        "proceed",
	EvRecheck:        "recheck",
	EvBackToUpload:   "back_to_upload",
	EvSelectPayment:  "select_payment",
	EvCheckPayment:   "check_payment",
	EvCancelPayment:  "cancel_payment",
	EvCancel:         "cancel",
	evInvoiceSettled: "invoice_settled",
	evWebhookSettled: "webhook_settled",
	evGenerationDone: "generation_done",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k EventKind) internal() bool { return k >= evInvoiceSettled }

// ParseEventKind resolves a user-facing event name; internal kinds are never returned.
func ParseEventKind(name string) (EventKind, bool) {
	for k, n := range eventNames {
		if n == name && !k.internal() {
			return k, true
		}
	}
	return EvUnknown, false
}

// Event is one input to SessionMachine.Dispatch.
type Event struct {
	Kind     EventKind
	Template model.Template
	Asset    model.Asset
	Index    int
	Method   model.PaymentMethod

	sessionID string
	attempt   uint64
	requestID int64
	outcome   model.InvoiceOutcome
	result    *model.GenerationResult
	err       error
}

func SelectTemplate(t model.Template) Event { return Event{Kind: EvSelectTemplate, Template: t} }
func AddAsset(a model.Asset) Event { return Event{Kind: EvAddAsset, Asset: a} }
func RemoveAsset(i int) Event { return Event{Kind: EvRemoveAsset, Index: i} }
func SelectPayment(m model.PaymentMethod) Event { return Event{Kind: EvSelectPayment, Method: m} }
func Simple(kind EventKind) Event { return Event{Kind: kind} }
