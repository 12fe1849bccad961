package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/config"
	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/handler"
	"github.com/pocketshop/vendor-bff-go/internal/infra/cache"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/infra/realtime"
	"github.com/pocketshop/vendor-bff-go/internal/infra/resilience"
	"github.com/pocketshop/vendor-bff-go/internal/infra/supabase"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("supabase_url", cfg.SupabaseURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("session_recovery_timeout", cfg.SessionRecoveryTimeout),
	)

	if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
		logger.Fatal("SUPABASE_URL and SUPABASE_ANON_KEY are required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "pocketshop-vendor-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	statusCache := cache.New[domain.OnboardingStatus](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Supabase clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	authClient := supabase.NewAuthClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, logger)
	feed := realtime.NewSubscriber(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.RealtimeHeartbeat, resilienceCfg, logger)

	// --- Services ---
	sessionCfg := service.SessionConfig{
		RecoveryTimeout: cfg.SessionRecoveryTimeout,
		PollAttempts:    cfg.OAuthPollAttempts,
		PollInterval:    cfg.OAuthPollInterval,
		PollDeadline:    cfg.OAuthPollDeadline,
	}

	guard := service.NewGuard(store, statusCache, metrics, logger)
	onboarding := service.NewOnboarding(store, statusCache, metrics, logger)
	boards := service.NewBoardManager(store, feed, metrics, logger)
	defer boards.Close()
	analytics := service.NewAnalytics(boards)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Auth: authClient,
		Sessions: func() *service.SessionStore {
			return service.NewSessionStore(authClient, store, sessionCfg, logger)
		},
		Guard:      guard,
		Onboarding: onboarding,
		Boards:     boards,
		Analytics:  analytics,
		JWTSecret:  cfg.SupabaseJWTSecret,
		Metrics:    metrics,
		Logger:     logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
