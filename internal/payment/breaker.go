package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("payment provider unavailable")

type Provider interface {
	CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.PaymentSession, error)
	GetSession(ctx context.Context, id string) (*domain.PaymentSession, error)
}

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
}

// BreakerProvider stops calling the provider after consecutive failures and
// lets a single probe through once OpenTimeout has elapsed.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[*domain.PaymentSession]
}

func NewBreakerProvider(next Provider, s BreakerSettings) *BreakerProvider {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	return &BreakerProvider{
		next: next,
		cb: gobreaker.NewCircuitBreaker[*domain.PaymentSession](gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: 1,
			Interval:    s.Interval,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.FailureThreshold
			},
			// a missing session is an answer, not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrSessionNotFound)
			},
		}),
	}
}

func (b *BreakerProvider) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.PaymentSession, error) {
	return b.execute(func() (*domain.PaymentSession, error) {
		return b.next.CreateSession(ctx, req)
	})
}

func (b *BreakerProvider) GetSession(ctx context.Context, id string) (*domain.PaymentSession, error) {
	return b.execute(func() (*domain.PaymentSession, error) {
		return b.next.GetSession(ctx, id)
	})
}

func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerProvider) execute(fn func() (*domain.PaymentSession, error)) (*domain.PaymentSession, error) {
	s, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, err
}
