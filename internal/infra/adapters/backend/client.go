// File: internal/infra/adapters/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-image-studio/internal/config"
	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/infra/logging"
	"telegram-image-studio/internal/infra/metrics"
)

var _ adapter.BackendClient = (*Client)(nil)

const maxBody = 1 << 20

// Client implements adapter.BackendClient over the backend REST API.
type Client struct {
	base           string
	http           *http.Client
	limiter        *rate.Limiter
	secret         []byte
	timeout        time.Duration
	uploadTimeout  time.Duration
	paymentTimeout time.Duration
	log            *zerolog.Logger
}

func NewClient(cfg config.BackendConfig, log *zerolog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	rps := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		rps = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &Client{
		base:           strings.TrimRight(cfg.BaseURL, "/"),
		http:           &http.Client{},
		limiter:        rate.NewLimiter(rps, burst),
		timeout:        orDefault(cfg.Timeout, 30*time.Second),
		uploadTimeout:  orDefault(cfg.UploadTimeout, 60*time.Second),
		paymentTimeout: orDefault(cfg.PaymentTimeout, 60*time.Second),
		log:            log,
	}
	if cfg.JWTSecret != "" {
		c.secret = []byte(cfg.JWTSecret)
	}
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

type call struct {
	op          string
	method      string
	path        string
	timeout     time.Duration
	userID      int64
	body        io.Reader
	contentType string
}

// do executes one request and decodes a 2xx body into out.
// Network failures, timeouts and 5xx become transport errors; 4xx become upstream rejections.
func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	defer logging.TraceDuration(c.log, "Backend."+cl.op)()
	start := time.Now()
	result := "ok"
	defer func() {
		if err != nil {
			result = string(domain.KindOf(err))
		}
		metrics.ObserveBackendRequest(cl.op, result, time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.E(domain.KindTransport, cl.op, "", err)
	}
	ctx, cancel := context.WithTimeout(ctx, cl.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, cl.method, c.base+cl.path, cl.body)
	if err != nil {
		return domain.E(domain.KindTransport, cl.op, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if tok, err := c.serviceToken(cl.userID); err != nil {
		return domain.E(domain.KindTransport, cl.op, "", fmt.Errorf("sign service token: %w", err))
	} else if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = context.DeadlineExceeded
		}
		return domain.E(domain.KindTransport, cl.op, "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.E(domain.KindTransport, cl.op, "", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return domain.E(domain.KindTransport, cl.op, errorMessage(body), fmt.Errorf("http %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("server error (%d)", resp.StatusCode)
		}
		return domain.E(domain.KindUpstreamRejection, cl.op, msg, nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.E(domain.KindProtocolViolation, cl.op, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// serviceToken signs a short-lived HS256 token for userID, or returns "" when no secret is configured.
func (c *Client) serviceToken(userID int64) (string, error) {
	if c.secret == nil {
		return "", nil
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    "image-studio",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func (c *Client) ListTemplates(ctx context.Context, page, limit int) (*model.TemplatePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out templatesDTO
	err := c.do(ctx, call{op: "list-templates", method: http.MethodGet, path: "/api/v1/templates?" + q.Encode(), timeout: c.timeout}, &out)
	if err != nil {
		return nil, err
	}
	return out.toModel(), nil
}

func (c *Client) CheckEligibility(ctx context.Context, userID, templateID int64) (*model.Eligibility, error) {
	var out eligibilityDTO
	err := c.do(ctx, call{
		op:          "check-subscription",
		method:      http.MethodPost,
		path:        "/api/v1/check-subscription",
		timeout:     c.timeout,
		userID:      userID,
		body:        jsonBody(eligibilityRequest{UserID: userID, TemplateID: templateID}),
		contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(out.Status, "error") {
		return nil, domain.E(domain.KindUpstreamRejection, "check-subscription", out.Message, nil)
	}
	return out.toModel(), nil
}

func (c *Client) CreateGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationTicket, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"template_id", strconv.FormatInt(req.TemplateID, 10)},
		{"user_id", strconv.FormatInt(req.UserID, 10)},
		{"payment_verified", strconv.FormatBool(req.PaymentVerified)},
		{"gateway", string(req.Gateway)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, domain.E(domain.KindTransport, "generate", "", err)
		}
	}
	for i, img := range req.Images {
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image_%d.jpg", i+1)
		}
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, name))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, domain.E(domain.KindTransport, "generate", "", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, domain.E(domain.KindTransport, "generate", "", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, domain.E(domain.KindTransport, "generate", "", err)
	}

	var out ticketDTO
	err := c.do(ctx, call{
		op:          "generate",
		method:      http.MethodPost,
		path:        "/api/v1/generate",
		timeout:     c.uploadTimeout,
		userID:      req.UserID,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int64("request_id", out.RequestID).Str("status", out.Status).Int("images", len(req.Images)).Msg("generation created")
	return &model.GenerationTicket{
		Status:    model.GenerationStatus(out.Status),
		RequestID: out.RequestID,
		Error:     out.Error,
		Message:   out.Message,
	}, nil
}

func (c *Client) CreatePayment(ctx context.Context, userID, templateID, requestID int64, method model.PaymentMethod) (*model.PaymentIntent, error) {
	var out paymentDTO
	err := c.do(ctx, call{
		op:      "create-payment",
		method:  http.MethodPost,
		path:    "/api/v1/create-payment",
		timeout: c.paymentTimeout,
		userID:  userID,
		body: jsonBody(paymentRequest{
			UserID:              userID,
			TemplateID:          templateID,
			GenerationRequestID: requestID,
			PaymentMethod:       string(method),
		}),
		contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	pm := model.PaymentMethod(out.PaymentMethod)
	if pm == "" {
		pm = method
	}
	return &model.PaymentIntent{
		Status:     out.Status,
		Method:     pm,
		InvoiceURL: out.InvoiceURL,
		PaymentURL: out.PaymentURL,
		Price:      int64(out.Price),
	}, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, requestID int64, method model.PaymentMethod) (*model.PaymentConfirmation, error) {
	var out confirmDTO
	err := c.do(ctx, call{
		op:          "confirm-payment",
		method:      http.MethodPost,
		path:        "/api/v1/confirm-payment",
		timeout:     c.timeout,
		body:        jsonBody(confirmRequest{GenerationRequestID: requestID, PaymentMethod: string(method)}),
		contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &model.PaymentConfirmation{Status: out.Status, Message: out.Message}, nil
}

func (c *Client) GetGenerationStatus(ctx context.Context, requestID int64) (*model.GenerationState, error) {
	var out stateDTO
	err := c.do(ctx, call{
		op:      "generation-status",
		method:  http.MethodGet,
		path:    "/api/v1/generation/" + strconv.FormatInt(requestID, 10),
		timeout: c.timeout,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &model.GenerationState{
		Status:    model.GenerationStatus(out.Status),
		ResultURL: out.ImageURL,
		Error:     out.Error,
		Message:   out.Message,
	}, nil
}
