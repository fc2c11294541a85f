package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/sneakpeak/internal/cart"
	"github.com/fjod/sneakpeak/internal/config"
	"github.com/fjod/sneakpeak/internal/projection"
	"github.com/fjod/sneakpeak/internal/publisher"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/fjod/sneakpeak/internal/telemetry"
	"github.com/fjod/sneakpeak/pkg/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const serviceName = "sneakpeak-projector"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, serviceName, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("projector stopped with error", "error", err)
		os.Exit(1)
	}
}

// run relays the cart outbox to Kafka and applies the topic to the Mongo projection
// until SIGINT or SIGTERM.
func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTracing(context.Background())

	repo, err := repository.NewRepository(&repository.Credentials{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.Name,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	mongoDB, err := projection.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())

	store := projection.NewMongoStore(mongoDB)
	if err := store.CreateIndexes(ctx); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()

	writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	defer writer.Close()

	poller := publisher.NewOutboxPoller(repo, writer, publisher.Settings{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		Lease:        cfg.Outbox.Lease,
	}, log)

	consumer := projection.NewConsumer(
		projection.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...),
		cart.NewResolver(repo),
		store,
		projection.NewRedisCache(redisClient, 5*time.Minute),
		log,
	)
	defer consumer.Close()

	log.Info("projector starting", "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		consumer.Run(gctx)
		return nil
	})
	err = g.Wait()

	log.Info("projector stopped")
	return err
}
