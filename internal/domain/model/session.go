package model

import "time"

// ModalStep is the state of the generation modal.
type ModalStep string

const (
	StepClosed         ModalStep = "closed"
	StepUpload         ModalStep = "upload"
	StepChecking       ModalStep = "checking"
	StepSubscription   ModalStep = "subscription"
	StepPayment        ModalStep = "payment"
	StepPaymentWaiting ModalStep = "payment_waiting"
	StepGenerating     ModalStep = "generating"
	StepResult         ModalStep = "result"
)

// Gateway is the monetization path chosen for one attempt.
type Gateway string

const (
	GatewayNone    Gateway = ""
	GatewayFree    Gateway = "free"
	GatewaySponsor Gateway = "sponsor"
	GatewayStars   Gateway = "stars"
	GatewayClick   Gateway = "click"
	// GatewayPaymentRequired is the resolver outcome before the user picks Stars or Click.
	GatewayPaymentRequired Gateway = "payment_required"
)

type PaymentMethod string

const (
	PaymentStars PaymentMethod = "stars"
	PaymentClick PaymentMethod = "click"
)

// Gateway maps the payment method onto the concrete paid gateway.
func (m PaymentMethod) Gateway() Gateway {
	switch m {
	case PaymentStars:
		return GatewayStars
	case PaymentClick:
		return GatewayClick
	}
	return GatewayNone
}

func (m PaymentMethod) Valid() bool { return m == PaymentStars || m == PaymentClick }

// Asset is a locally held image waiting to be uploaded.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// GenerationSession is the single live attempt of one user.
// Only the session state machine writes to it.
type GenerationSession struct {
	ID             string // ULID, new for every session
	UserID         int64
	TemplateID     int64
	TemplateTitle  string
	RequiredImages int
	Assets         []Asset

	Gateway       Gateway
	PaymentMethod PaymentMethod
	Sponsors      []Sponsor
	Price         TemplatePrice

	RequestID int64 // 0 until create-generation answers
	Step      ModalStep
	Progress  int
	ResultURL string
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// View renders the session without asset payloads.
func (s *GenerationSession) View() SessionView {
	v := SessionView{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Step:           s.Step,
		TemplateID:     s.TemplateID,
		TemplateTitle:  s.TemplateTitle,
		RequiredImages: s.RequiredImages,
		Gateway:        s.Gateway,
		PaymentMethod:  s.PaymentMethod,
		RequestID:      s.RequestID,
		Progress:       s.Progress,
		ResultURL:      s.ResultURL,
		LastError:      s.LastError,
		PriceStars:     s.Price.Stars,
		PriceUzs:       s.Price.Uzs,
		UpdatedAt:      s.UpdatedAt,
	}
	for _, a := range s.Assets {
		v.Assets = append(v.Assets, a.Name)
	}
	v.Sponsors = append(v.Sponsors, s.Sponsors...)
	return v
}

// SessionView is what the webview renders and what gets snapshotted.
type SessionView struct {
	SessionID      string        `json:"session_id,omitempty"`
	UserID         int64         `json:"user_id,omitempty"`
	Step           ModalStep     `json:"step"`
	TemplateID     int64         `json:"template_id,omitempty"`
	TemplateTitle  string        `json:"template_title,omitempty"`
	RequiredImages int           `json:"required_images,omitempty"`
	Assets         []string      `json:"assets,omitempty"`
	Gateway        Gateway       `json:"gateway,omitempty"`
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty"`
	Sponsors       []Sponsor     `json:"sponsors,omitempty"`
	PriceStars     int64         `json:"price_stars,omitempty"`
	PriceUzs       int64         `json:"price_uzs,omitempty"`
	RequestID      int64         `json:"request_id,omitempty"`
	Progress       int           `json:"progress"`
	ResultURL      string        `json:"result_url,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`

	Action  *HostAction `json:"action,omitempty"`
	Notices []string    `json:"notices,omitempty"`
}

// HostAction is a pending instruction for the webview (open a link or an invoice).
type HostAction struct {
	Kind string `json:"kind"` // open_link | open_invoice
	URL  string `json:"url"`
}

const (
	ActionOpenLink    = "open_link"
	ActionOpenInvoice = "open_invoice"
)

// HostUser is the ambient identity delivered by the host platform.
type HostUser struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}
