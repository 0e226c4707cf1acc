package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-image-studio/internal/infra/adapters/webapp"
	"telegram-image-studio/internal/infra/logging"
	"telegram-image-studio/internal/infra/metrics"
	"telegram-image-studio/internal/infra/redis"
	"telegram-image-studio/internal/usecase"
)

// Limiter budgets webview calls per user and route; redis.EventLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, userID int64, route string) (redis.Verdict, error)
}

type Options struct {
	BotToken       string
	Dev            bool
	FallbackUserID int64
	InitDataMaxAge time.Duration
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server exposes the session machine to the mini-app webview.
type Server struct {
	sessions   usecase.SessionManager
	catalog    usecase.TemplateCatalog
	hub        *webapp.Hub
	auth       *AuthManager
	limiter    Limiter
	classifier *usecase.ErrorClassifier
	opts       Options
	log        *zerolog.Logger
}

// NewServer constructs the HTTP layer. limiter may be nil.
func NewServer(
	sessions usecase.SessionManager,
	catalog usecase.TemplateCatalog,
	hub *webapp.Hub,
	auth *AuthManager,
	limiter Limiter,
	classifier *usecase.ErrorClassifier,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	return &Server{
		sessions:   sessions,
		catalog:    catalog,
		hub:        hub,
		auth:       auth,
		limiter:    limiter,
		classifier: classifier,
		opts:       opts,
		log:        logger,
	}
}

// Routes builds the router with the guard chain applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/telegram", s.handleAuth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser, Timeout(s.opts.RequestTimeout))
			r.Get("/templates", s.handleTemplates)
			r.Get("/session", s.handleSession)
			r.Get("/session/result", s.handleLastResult)
			r.With(s.rateLimit(redis.RouteEvents)).Post("/session/events", s.handleEvent)
			r.With(s.rateLimit(redis.RouteUploads)).Post("/session/assets", s.handleAddAsset)
			r.Delete("/session/assets/{index}", s.handleRemoveAsset)
			r.Post("/session/invoice", s.handleInvoiceStatus)
			r.Post("/session/action/ack", s.handleActionAck)
			r.Delete("/session", s.handleCancel)
		})
	})

	return Chain(r, Recover(s.log), TraceID())
}

type ctxKey struct{}

func claimsFrom(ctx context.Context) *UserClaims {
	c, _ := ctx.Value(ctxKey{}).(*UserClaims)
	return c
}

// requireUser authenticates the webview token and attaches the host user to its bridge.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.Anonymous {
			s.hub.Attach(claims.HostUser(), claims.Invoices)
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, claims)
		ctx = logging.WithUserID(ctx, claims.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit fails open when the limiter store is unreachable.
func (s *Server) rateLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			v, err := s.limiter.Allow(r.Context(), claimsFrom(r.Context()).UserID(), route)
			switch {
			case err != nil:
				logging.With(r.Context(), s.log).Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
			case !v.Allowed:
				metrics.IncRateLimited(route)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(v.RetryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			default:
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}
