package publisher

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	r "github.com/fjod/sneakpeak/internal/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type OutboxStore interface {
	LeaseEvents(ctx context.Context, limit, maxAttempts int, leaseUntil time.Time) ([]*r.OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, id uuid.UUID) error
	MarkEventFailed(ctx context.Context, id uuid.UUID, reason string, nextAttempt time.Time) error
	CountParkedEvents(ctx context.Context, maxAttempts int) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Settings struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Lease        time.Duration
	// RetryBase is the delay before the first retry; it doubles per attempt up to RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
}

// OutboxPoller relays committed cart events to Kafka.
type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	settings     Settings
	repo         OutboxStore
	writer       MessageWriter
	log          *slog.Logger
	now          func() time.Time
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo OutboxStore, writer MessageWriter, s Settings, log *slog.Logger) *OutboxPoller {
	if s.PollInterval <= 0 {
		s.PollInterval = time.Second
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 10
	}
	if s.Lease <= 0 {
		s.Lease = 30 * time.Second
	}
	if s.RetryBase <= 0 {
		s.RetryBase = time.Second
	}
	if s.RetryMax <= 0 {
		s.RetryMax = 5 * time.Minute
	}
	return &OutboxPoller{
		eventTick:    s.PollInterval,
		recoveryTick: time.Minute,
		settings:     s,
		repo:         repo,
		writer:       writer,
		log:          log,
		now:          time.Now,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.reportParkedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.LeaseEvents(ctx, p.settings.BatchSize, p.settings.MaxAttempts, p.now().Add(p.settings.Lease))
	if err != nil {
		p.log.ErrorContext(ctx, "failed to lease outbox events", "error", err)
		return
	}

	for _, event := range events {
		if errPublish := p.publishToKafka(ctx, event); errPublish != nil {
			p.fail(ctx, event, errPublish)
			continue
		}

		if errMark := p.repo.MarkEventProcessed(ctx, event.ID); errMark != nil {
			// the lease expires and the event is published again; the projector tolerates duplicates
			p.log.ErrorContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", errMark)
		}
	}
}

func (p *OutboxPoller) fail(ctx context.Context, event *r.OutboxEvent, cause error) {
	attempt := event.Attempts + 1
	if attempt >= p.settings.MaxAttempts {
		p.log.ErrorContext(ctx, "outbox event parked after max attempts",
			"event_id", event.ID, "cart_id", event.AggregateID, "attempts", attempt, "error", cause)
	} else {
		p.log.WarnContext(ctx, "failed to publish event",
			"event_id", event.ID, "cart_id", event.AggregateID, "attempts", attempt, "error", cause)
	}

	next := p.now().Add(p.retryDelay(event.Attempts))
	if err := p.repo.MarkEventFailed(ctx, event.ID, cause.Error(), next); err != nil {
		p.log.ErrorContext(ctx, "failed to record publish failure", "event_id", event.ID, "error", err)
	}
}

// retryDelay is the exponential backoff delay for an event that already failed attempts times.
func (p *OutboxPoller) retryDelay(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.settings.RetryBase,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         p.settings.RetryMax,
	}
	b.Reset()
	var d time.Duration
	for i := 0; i <= attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (p *OutboxPoller) reportParkedEvents(ctx context.Context) {
	n, err := p.repo.CountParkedEvents(ctx, p.settings.MaxAttempts)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to count parked events", "error", err)
		return
	}
	if n > 0 {
		p.log.WarnContext(ctx, "parked outbox events need attention", "count", n)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AggregateID, 10)), // cart id for per-cart ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
