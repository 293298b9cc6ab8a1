package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/stripe-wallet/api"
	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/config"
	"github.com/josh-kwaku/stripe-wallet/internal/handler"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
	"github.com/josh-kwaku/stripe-wallet/internal/middleware"
	"github.com/josh-kwaku/stripe-wallet/internal/repository"
	"github.com/josh-kwaku/stripe-wallet/internal/router"
	"github.com/josh-kwaku/stripe-wallet/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init("stripe-wallet", cfg.LogLevel, cfg.AppEnv)

	if cfg.APIKey == "" {
		slog.Warn("API_KEY is not set; gated routes will answer 500 until it is configured")
	}

	db, err := connectDB(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		slog.Info("migrations applied")
	}

	tokens := auth.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}

	walletRepo := repository.NewWalletRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	stripeClient := service.NewStripeClient(service.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		APIURL:        cfg.StripeAPIURL,
		Currency:      cfg.StripeCurrency,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
		Tolerance:     cfg.WebhookTolerance,
	})

	walletSvc := service.NewWalletService(stripeClient, walletRepo)
	reconciler := service.NewReconciler(stripeClient, walletRepo, eventRepo, service.ReconcilerConfig{
		Tokens:   tokens,
		Currency: cfg.StripeCurrency,
	})

	retrier := service.NewWebhookRetrier(eventRepo, reconciler, slog.Default(), service.WebhookRetryConfig{
		Interval:    cfg.WebhookRetryInterval,
		MaxAttempts: cfg.WebhookRetryMaxAttempts,
	})
	stopRetrier := retrier.Run(context.Background())
	defer stopRetrier()

	opts := router.Options{
		APIKey:  cfg.APIKey,
		Tokens:  tokens,
		OpenAPI: api.OpenAPI,
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = repository.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer cache.Close()

		opts.Idempotency = middleware.Idempotency(repository.NewIdempotencyRepository(cache, cfg.IdempotencyTTL))
		opts.LoginLimiter = middleware.RateLimit(repository.NewRateLimiter(cache, "ratelimit:login:", cfg.LoginRateLimit, time.Minute))
		slog.Info("redis connected; idempotency cache and login rate limit enabled")
	} else {
		slog.Warn("REDIS_URL is not set; idempotency cache and login rate limit disabled")
	}

	health := handler.NewHealthHandler(db, nil)
	if cache != nil {
		health = handler.NewHealthHandler(db, repository.RedisPinger{Client: cache})
	}

	mux := router.New(router.Handlers{
		Auth: handler.NewAuthHandler(handler.Credentials{
			Username:     cfg.LoginUsername,
			PasswordHash: cfg.LoginPasswordHash,
		}, tokens),
		Wallet:  handler.NewWalletHandler(walletSvc),
		Webhook: handler.NewWebhookHandler(reconciler),
		Health:  health,
	}, opts)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("run: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	stopRetrier()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("run: shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, openErr := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if openErr == nil {
			return db, nil
		}
		err = openErr
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
