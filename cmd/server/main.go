package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/artifact"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/backends"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/config"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/db"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/handlers"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/model"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/ratelimit"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/server"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/telemetry"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/web"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	logger := server.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "super-otp", cfg.OTelEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "err", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	// The classifier is built once and shared read-only by every request.
	predictor, err := buildPredictor(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build classifier", "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	adapter := classify.NewAdapter(predictor,
		classify.WithName(cfg.Backend),
		classify.WithLogger(logger),
	)
	logger.Info("classifier ready", "backend", adapter.Name(), "confidence", adapter.SupportsConfidence())

	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Error("failed to load templates", "err", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(map[string]ratelimit.Bucket{
		"predict": {MaxRequests: cfg.RateLimit.PredictPerMinute, Window: time.Minute},
		"preview": {MaxRequests: cfg.RateLimit.PreviewPerMinute, Window: time.Minute},
	})

	decisionHandler := handlers.NewDecisionHandler(adapter, renderer, limiter, cfg.DecisionDelay, logger)
	wsManager := ws.NewManager(adapter, limiter, logger)

	// Build router
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})

	// Form
	r.Get("/", decisionHandler.Page)
	r.Post("/", decisionHandler.Submit)

	// JSON API
	r.Route("/v1", func(api chi.Router) {
		api.Use(corsMiddleware)
		api.Post("/predict", decisionHandler.Predict)
		api.Get("/options", decisionHandler.Options)
	})

	// Live preview
	r.Get("/ws", wsManager.HandleWS)

	go server.RunWithRecovery(ctx, logger, "ratelimit-sweep", func(ctx context.Context) {
		limiter.SweepLoop(ctx, time.Minute)
	})

	err = server.ListenAndServe(ctx, server.Options{
		Port:            cfg.Port,
		TLSDomains:      cfg.TLS.Domains,
		ACMEEmail:       cfg.TLS.Email,
		Production:      cfg.Production(),
		ShutdownTimeout: 10 * time.Second,
	}, r, logger)
	wsManager.CloseAll()
	if err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildPredictor constructs the configured classifier backend.
func buildPredictor(ctx context.Context, cfg config.Config, logger *slog.Logger) (classify.Predictor, error) {
	switch cfg.Backend {
	case config.BackendRemote:
		return backends.NewRemote(backends.RemoteConfig{
			URL:        cfg.Remote.URL,
			APIKey:     cfg.Remote.APIKey,
			Confidence: cfg.Remote.Confidence,
			Timeout:    cfg.Remote.Timeout,
		})
	case config.BackendClaude:
		return backends.NewClaude(ctx, backends.ClaudeConfig{Model: cfg.Claude.Model}), nil
	}

	src, closeSrc, err := artifactSource(ctx, cfg.Model, logger)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	doc, err := artifact.Load(ctx, src, logger)
	if err != nil {
		return nil, err
	}
	return model.FromDocument(doc)
}

// artifactSource opens the configured artifact location. The returned close
// function releases anything opened only for loading.
func artifactSource(ctx context.Context, mc config.ModelConfig, logger *slog.Logger) (artifact.Source, func(), error) {
	format := artifact.Format(mc.Format)
	noop := func() {}

	switch mc.Source {
	case config.SourcePostgres:
		var opts []db.ConnectOption
		if mc.Migrate {
			opts = append(opts, db.WithMigrations())
		}
		database, err := db.Connect(ctx, mc.DatabaseURL, logger, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("connect model registry: %w", err)
		}
		return artifact.PostgresSource{Registry: database, Name: mc.Name, Version: mc.Version}, database.Close, nil
	case config.SourceGitHub:
		src, err := artifact.NewGitHubSource(ctx, artifact.GitHubConfig{
			Owner:   mc.GitHubOwner,
			Repo:    mc.GitHubRepo,
			Path:    mc.GitHubPath,
			Ref:     mc.GitHubRef,
			Token:   mc.GitHubToken,
			BaseURL: mc.GitHubBaseURL,
			Format:  format,
		})
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	default:
		return artifact.FileSource{Path: mc.Path, Format: format}, noop, nil
	}
}

// corsMiddleware lets browser clients on other origins call the JSON API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
