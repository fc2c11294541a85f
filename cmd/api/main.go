package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/sneakpeak/internal/address"
	"github.com/fjod/sneakpeak/internal/cart"
	"github.com/fjod/sneakpeak/internal/checkout"
	"github.com/fjod/sneakpeak/internal/config"
	h "github.com/fjod/sneakpeak/internal/http"
	"github.com/fjod/sneakpeak/internal/payment"
	"github.com/fjod/sneakpeak/internal/projection"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/fjod/sneakpeak/internal/stock"
	"github.com/fjod/sneakpeak/internal/telemetry"
	"github.com/fjod/sneakpeak/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "sneakpeak-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, serviceName, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTracing(context.Background())

	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.Name,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info("database migrations completed")

	mongoDB, err := projection.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())
	log.Info("connected to MongoDB", "database", cfg.Mongo.Database)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	formatter, err := address.NewGoogleFormatter(cfg.MapsAPIKey, cfg.CallTimeout)
	if err != nil {
		return err
	}

	stripe := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Currency:   cfg.Stripe.Currency,
		SessionTTL: cfg.Stripe.SessionTTL,
		Timeout:    cfg.CallTimeout,
	})
	payments := payment.NewBreakerProvider(stripe, payment.BreakerSettings{
		Name:        "stripe",
		OpenTimeout: 30 * time.Second,
	})

	resolver := cart.NewResolver(repo)
	reader := projection.NewReader(
		projection.NewMongoStore(mongoDB),
		projection.NewRedisCache(redisClient, 5*time.Minute),
		log,
	)
	checkoutService := checkout.NewService(
		repo,
		resolver,
		stock.NewValidator(repo),
		address.NewNormalizer(formatter),
		payments,
		cfg.Stripe.SessionTTL,
		log,
	)
	cartService := cart.NewService(repo, cfg.CartWindow, log)

	router := h.NewRouter(
		h.NewCartHandler(cartService, reader, resolver, cfg.RequestTimeout, log),
		h.NewCheckoutHandler(checkoutService, reader, cfg.RequestTimeout, log),
		repo,
		cfg.RequestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("api starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
