package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrSessionNotFound = errors.New("payment session not found")

type StripeConfig struct {
	SecretKey  string
	SuccessURL string // "{reference}" is replaced with the order reference
	CancelURL  string
	Currency   string
	SessionTTL time.Duration
	Timeout    time.Duration
	// BaseURL overrides the API endpoint, used against a local stub.
	BaseURL string
}

// StripeProvider opens and reads Stripe Checkout sessions.
type StripeProvider struct {
	sessions session.Client
	cfg      StripeConfig
	now      func() time.Time
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxNetworkRetries: stripe.Int64(1),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	if cfg.SessionTTL < 30*time.Minute {
		// the API rejects sessions expiring sooner than this
		cfg.SessionTTL = 30 * time.Minute
	}
	return &StripeProvider{
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		cfg: cfg,
		now: time.Now,
	}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.PaymentSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = p.cfg.Currency
	}

	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(withReference(p.cfg.SuccessURL, req.Reference)),
		CancelURL:         stripe.String(withReference(p.cfg.CancelURL, req.Reference)),
		ExpiresAt:         stripe.Int64(p.now().Add(p.cfg.SessionTTL).Unix()),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for _, line := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Name),
		}
		if line.Image != "" {
			product.Images = stripe.StringSlice([]string{line.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(line.MinorUnits()),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}
	params.AddMetadata("reference", req.Reference)

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return toSession(s), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, id string) (*domain.PaymentSession, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	s, err := p.sessions.Get(id, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) &&
			(stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *domain.PaymentSession {
	out := &domain.PaymentSession{
		ID:            s.ID,
		Amount:        s.AmountTotal,
		Currency:      string(s.Currency),
		URL:           s.URL,
		PaymentStatus: domain.PaymentStatus(s.PaymentStatus),
		Status:        domain.SessionStatus(s.Status),
	}
	if s.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return out
}

func withReference(template, reference string) string {
	return strings.ReplaceAll(template, "{reference}", reference)
}
