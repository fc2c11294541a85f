package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/segmentio/kafka-go"
)

var errUnknownEvent = errors.New("unknown cart event type")

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CartResolver interface {
	ResolveByID(ctx context.Context, cartID int64) (*domain.CartProjection, error)
}

// Consumer applies cart events to the projection. Every upsert is rebuilt from
// the primary store, so duplicated or reordered events converge on the same document.
type Consumer struct {
	reader     MessageReader
	resolver   CartResolver
	store      CartStore
	cache      CartCache
	log        *slog.Logger
	retryMax   time.Duration
	fetchRetry time.Duration // pause after a failed fetch
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(reader MessageReader, resolver CartResolver, store CartStore, cache CartCache, log *slog.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		resolver:   resolver,
		store:      store,
		cache:      cache,
		log:        log,
		retryMax:   30 * time.Second,
		fetchRetry: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.ErrorContext(ctx, "error reading message", "error", err, "retry_in", c.fetchRetry)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.fetchRetry):
			}
			continue
		}
		if err := c.handle(ctx, m); err != nil {
			// only cancellation gets here; the message is redelivered to the next consumer
			return
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing reader", "error", err)
	}
}

// handle applies one message, retrying until it succeeds or ctx is done, then commits it.
// Messages that can never be applied are logged and committed.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var event domain.CartEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.ErrorContext(ctx, "dropping unparseable cart event", "offset", m.Offset, "error", err)
		return c.commit(ctx, m)
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         c.retryMax,
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.apply(ctx, event)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.WarnContext(ctx, "projection apply failed, retrying",
				"cart_id", event.CartID, "type", event.Type, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.ErrorContext(ctx, "dropping cart event", "cart_id", event.CartID, "type", event.Type, "error", err)
	}
	return c.commit(ctx, m)
}

func (c *Consumer) apply(ctx context.Context, event domain.CartEvent) error {
	// a deleted cart is cached as an empty projection stamped with the deletion time
	current := &domain.CartProjection{UserID: event.UserID, UpdatedAt: event.OccurredAt, CartProduct: []domain.CartItem{}}

	switch event.Type {
	case domain.CartEventUpserted:
		p, err := c.resolver.ResolveByID(ctx, event.CartID)
		if errors.Is(err, repository.ErrCartNotFound) {
			// deleted after this event was written; the tombstone follows
			if err := c.store.Delete(ctx, event.CartID); err != nil {
				return err
			}
			break
		}
		if err != nil {
			return fmt.Errorf("resolve cart %d: %w", event.CartID, err)
		}
		if err := c.store.Replace(ctx, p); err != nil {
			return err
		}
		current = p
	case domain.CartEventDeleted:
		if err := c.store.Delete(ctx, event.CartID); err != nil {
			return err
		}
	default:
		return backoff.Permanent(fmt.Errorf("%w: %q", errUnknownEvent, event.Type))
	}

	c.refreshCache(ctx, current)
	return nil
}

// refreshCache writes the projection just applied. Readers filling the cache
// from an older Mongo read cannot overwrite it.
func (c *Consumer) refreshCache(ctx context.Context, p *domain.CartProjection) {
	err := c.cache.Set(ctx, p.UserID, p)
	if err == nil {
		return
	}
	c.log.WarnContext(ctx, "failed to refresh cache", "user_id", p.UserID, "error", err)
	if err := c.cache.Delete(ctx, p.UserID); err != nil {
		c.log.WarnContext(ctx, "failed to delete cache", "user_id", p.UserID, "error", err)
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.ErrorContext(ctx, "failed to commit message", "offset", m.Offset, "error", err)
	}
	return nil
}
