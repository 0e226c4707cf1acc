// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"telegram-image-studio/internal/config"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/domain/ports/repository"
	"telegram-image-studio/internal/infra/adapters/backend"
	tele "telegram-image-studio/internal/infra/adapters/telegram"
	"telegram-image-studio/internal/infra/adapters/webapp"
	"telegram-image-studio/internal/infra/api"
	"telegram-image-studio/internal/infra/i18n"
	"telegram-image-studio/internal/infra/logging"
	"telegram-image-studio/internal/infra/metrics"
	red "telegram-image-studio/internal/infra/redis"
	"telegram-image-studio/internal/infra/scheduler"
	"telegram-image-studio/internal/infra/worker"
	"telegram-image-studio/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (unsigned init data, fallback identity)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.I18n.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Backend ----
	backendClient, err := backend.NewClient(cfg.Backend, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}

	// ---- Redis (optional in dev) ----
	var (
		redisClient red.RedisClient
		locker      repository.SessionLocker
		snapshots   repository.SessionSnapshotRepository
		limiter     api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		locker = red.NewLocker(redisClient, cfg.Redis.TTL)
		snapshots = red.NewSnapshotRepo(redisClient, cfg.Redis.TTL)
		limiter = red.NewEventLimiter(redisClient, time.Minute, map[string]int{
			red.RouteEvents:  cfg.HTTP.EventsPerMinute,
			red.RouteUploads: cfg.HTTP.UploadsPerMinute,
		})
	} else if !cfg.Runtime.Dev {
		logger.Fatal().Msg("redis.url is required outside dev mode")
	} else {
		logger.Warn().Msg("redis disabled: no session lock, snapshots or rate limiting")
	}

	// ---- Background pool ----
	pool := worker.NewPool("background", cfg.Session.Workers, logger)
	pool.Start(context.WithoutCancel(ctx))

	// ---- Telegram result delivery ----
	var notifier adapter.ResultNotifier = tele.NewNoopNotifier(logger)
	if cfg.Bot.Token != "" {
		bot, err := tele.NewBotSender(&cfg.Bot)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		notifier = tele.NewResultNotifier(bot, pool, tr, cfg.Bot.Username, logger)
	}

	// ---- Use cases ----
	catalog := usecase.NewTemplateCatalog(backendClient, cfg.Session.CatalogTTL, logger)
	hub := webapp.NewHub(snapshots, pool, logger)
	deps := usecase.MachineDeps{
		Backend:   backendClient,
		Presenter: hub,
		Notifier:  notifier,
		Locker:    locker,
		Usage:     catalog,
		Poller: usecase.NewGenerationPoller(backendClient, usecase.PollerConfig{
			Interval:      cfg.Poller.Interval,
			ErrorInterval: cfg.Poller.ErrorInterval,
			MaxAttempts:   cfg.Poller.MaxAttempts,
		}, logger),
		Stars:          usecase.NewStarsFlow(backendClient, logger),
		Click:          usecase.NewClickFlow(backendClient, cfg.Poller.ClickInterval, logger),
		Classifier:     usecase.NewErrorClassifier(tr),
		Translator:     tr,
		Log:            logger,
		Dev:            cfg.Runtime.Dev,
		FallbackUserID: cfg.Runtime.FallbackUserID,
	}
	sessions := usecase.NewSessionManager(ctx, deps, hub, cfg.Session.IdleTTL, logger)

	// ---- HTTP ----
	secret := cfg.HTTP.JWTSecret
	if secret == "" {
		logger.Warn().Msg("http.jwt_secret not set; using dev secret (INSECURE)")
		secret = "dev-secret-change-me"
	}
	srv := api.NewServer(sessions, catalog, hub, api.NewAuthManager(secret, cfg.HTTP.TokenTTL), limiter, deps.Classifier, api.Options{
		BotToken:       cfg.Bot.Token,
		Dev:            cfg.Runtime.Dev,
		FallbackUserID: cfg.Runtime.FallbackUserID,
		InitDataMaxAge: cfg.HTTP.InitDataMaxAge,
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---- Idle session sweeper ----
	sweeper := scheduler.NewScheduler(cfg.Session.SweepInterval, sessions, logger)
	sweeper.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
		sweeper.Stop()
		sessions.Shutdown(shutdownCtx)
		pool.Stop()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logger.Info().Msg("bye")
}
