package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/infra/logging"
	"telegram-image-studio/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// statusFor maps orchestration errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTransitionInFlight),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSessionLocked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindTransport:
		return http.StatusBadGateway
	case domain.KindUpstreamRejection, domain.KindPaymentOutcome, domain.KindGenerationFailure:
		return http.StatusUnprocessableEntity
	case domain.KindProtocolViolation:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ---- auth ----

type authRequest struct {
	InitData string `json:"init_data"`
	Invoices bool   `json:"invoices"` // host supports openInvoice
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name,omitempty"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	l := logging.With(r.Context(), s.log)

	user, err := ValidateInitData(req.InitData, s.opts.BotToken, s.opts.InitDataMaxAge, time.Now())
	anonymous := false
	if err != nil && s.opts.Dev {
		// dev hosts (plain browser) deliver unsigned or no init data
		if u, uerr := ParseInitDataUnsigned(req.InitData); uerr == nil {
			user, err = u, nil
		} else {
			user, err, anonymous = model.HostUser{ID: s.opts.FallbackUserID}, nil, true
		}
	}
	if err != nil {
		l.Warn().Err(err).Str("init_data", logging.Redact(req.InitData, s.opts.Dev)).Msg("init data rejected")
		writeError(w, http.StatusUnauthorized, "invalid init data")
		return
	}

	token, exp, err := s.auth.Mint(user, req.Invoices, anonymous)
	if err != nil {
		l.Error().Err(err).Msg("mint session token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !anonymous {
		s.hub.Attach(user, req.Invoices)
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, ExpiresAt: exp, UserID: user.ID, FirstName: user.FirstName})
}

// ---- templates ----

type templateJSON struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Image          string `json:"image,omitempty"`
	RequiredImages int    `json:"required_images"`
	UsageCount     int    `json:"usage_count"`
	PriceStars     int64  `json:"price_stars"`
	PriceUzs       int64  `json:"price_uzs"`
	Size           string `json:"size,omitempty"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if page < 1 || limit < 1 || limit > 100 {
		writeError(w, http.StatusBadRequest, "invalid paging")
		return
	}
	p, err := s.catalog.List(r.Context(), page, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]templateJSON, 0, len(p.Templates))
	for _, t := range p.Templates {
		items = append(items, templateJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"templates":   items,
		"total":       p.Total,
		"page":        p.Page,
		"total_pages": p.TotalPages,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

// ---- session ----

func (s *Server) view(r *http.Request) model.SessionView {
	uid := claimsFrom(r.Context()).UserID()
	return s.hub.Decorate(s.sessions.View(uid))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(r))
}

func (s *Server) handleLastResult(w http.ResponseWriter, r *http.Request) {
	v, err := s.hub.LastResult(r.Context(), claimsFrom(r.Context()).UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type eventRequest struct {
	Event      string `json:"event"`
	TemplateID int64  `json:"template_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Index      int    `json:"index,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := usecase.ParseEventKind(req.Event)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown event")
		return
	}

	var ev usecase.Event
	switch kind {
	case usecase.EvSelectTemplate:
		tpl, err := s.catalog.Get(r.Context(), req.TemplateID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ev = usecase.SelectTemplate(*tpl)
	case usecase.EvAddAsset:
		writeError(w, http.StatusBadRequest, "upload images to /api/v1/session/assets")
		return
	case usecase.EvRemoveAsset:
		ev = usecase.RemoveAsset(req.Index)
	case usecase.EvSelectPayment:
		ev = usecase.SelectPayment(model.PaymentMethod(strings.ToLower(req.Method)))
	default:
		ev = usecase.Simple(kind)
	}
	s.dispatch(w, r, ev)
}

// dispatch runs ev and answers with the settled view, or the error plus the view.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev usecase.Event) {
	uid := claimsFrom(r.Context()).UserID()
	_, err := s.sessions.Dispatch(r.Context(), uid, ev)
	if err != nil {
		code := statusFor(err)
		l := logging.With(r.Context(), s.log)
		l.Debug().Err(err).Stringer("event", ev.Kind).Int("status", code).Msg("event rejected")
		writeJSON(w, code, map[string]any{
			"success": false,
			"message": s.classifier.Message(err),
			"session": s.view(r),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.view(r))
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	file, hdr, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image")
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !allowedImageTypes[ct] {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported image type")
		return
	}
	s.dispatch(w, r, usecase.AddAsset(model.Asset{
		Name:        filepath.Base(hdr.Filename),
		ContentType: ct,
		Data:        data,
	}))
}

func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	s.dispatch(w, r, usecase.RemoveAsset(idx))
}

type invoiceStatusRequest struct {
	Status string `json:"status"`
}

// handleInvoiceStatus receives the invoice dialog callback of the host.
func (s *Server) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req invoiceStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	uid := claimsFrom(r.Context()).UserID()
	if err := s.hub.ResolveInvoice(uid, strings.ToLower(strings.TrimSpace(req.Status))); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.view(r))
}

type actionAckRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) handleActionAck(w http.ResponseWriter, r *http.Request) {
	var req actionAckRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.hub.AckAction(claimsFrom(r.Context()).UserID(), req.Kind)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, usecase.Simple(usecase.EvCancel))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
	}
	writeError(w, code, s.classifier.Message(err))
}
