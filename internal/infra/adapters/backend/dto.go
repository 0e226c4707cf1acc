package backend

import (
	"encoding/json"
	"strings"

	"telegram-image-studio/internal/domain/model"
)

// Wire shapes of the generation backend. Field names follow the backend, not Go.

type templateDTO struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Image          string `json:"image"`
	RequiredImages int    `json:"requiredImages"`
	UsageCount     int    `json:"usageCount"`
	PriceStars     int64  `json:"priceStars"`
	PriceUzs       int64  `json:"priceUzs"`
	Size           string `json:"size"`
}

type templatesDTO struct {
	Templates  []templateDTO `json:"templates"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

func (d templatesDTO) toModel() *model.TemplatePage {
	out := &model.TemplatePage{Total: d.Total, Page: d.Page, TotalPages: d.TotalPages}
	for _, t := range d.Templates {
		out.Templates = append(out.Templates, model.Template{
			ID:             t.ID,
			Title:          t.Title,
			Description:    t.Description,
			Image:          t.Image,
			RequiredImages: t.RequiredImages,
			UsageCount:     t.UsageCount,
			PriceStars:     t.PriceStars,
			PriceUzs:       t.PriceUzs,
			Size:           t.Size,
		})
	}
	return out
}

type eligibilityRequest struct {
	UserID     int64 `json:"user_id"`
	TemplateID int64 `json:"template_id"`
}

type eligibilityDTO struct {
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	Subscribed      bool            `json:"subscribed"`
	RequiresPayment bool            `json:"requires_payment"`
	HasFreeImages   bool            `json:"has_free_images"`
	Sponsors        []model.Sponsor `json:"sponsors"`
	TemplatePrice   *struct {
		PriceStars float64 `json:"price_stars"`
		PriceUzs   float64 `json:"price_uzs"`
	} `json:"template_price"`
}

func (d eligibilityDTO) toModel() *model.Eligibility {
	e := &model.Eligibility{
		RequiresPayment: d.RequiresPayment,
		HasFreeCredit:   d.HasFreeImages,
		Subscribed:      d.Subscribed,
		Sponsors:        d.Sponsors,
	}
	if d.TemplatePrice != nil {
		e.Price = model.TemplatePrice{Stars: int64(d.TemplatePrice.PriceStars), Uzs: int64(d.TemplatePrice.PriceUzs)}
	}
	return e
}

type ticketDTO struct {
	Status    string `json:"status"`
	RequestID int64  `json:"request_id"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

type paymentRequest struct {
	UserID              int64  `json:"user_id"`
	TemplateID          int64  `json:"template_id"`
	GenerationRequestID int64  `json:"generation_request_id"`
	PaymentMethod       string `json:"payment_method"`
}

type paymentDTO struct {
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
	InvoiceURL    string  `json:"invoice_url"`
	PaymentURL    string  `json:"payment_url"`
	Price         float64 `json:"price"`
}

type confirmRequest struct {
	GenerationRequestID int64  `json:"generation_request_id"`
	PaymentMethod       string `json:"payment_method"`
}

type confirmDTO struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type stateDTO struct {
	Status   string `json:"status"`
	ImageURL string `json:"image_url"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

// errorDTO is any error body; detail may be a string or a validation list.
type errorDTO struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

// errorMessage extracts message, then error, then detail from an error body.
func errorMessage(body []byte) string {
	var e errorDTO
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	if len(e.Detail) == 0 || string(e.Detail) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(e.Detail))
}
