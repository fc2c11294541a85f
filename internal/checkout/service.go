package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/stock"
	"github.com/shopspring/decimal"
)

type CartResolver interface {
	ResolveForUser(ctx context.Context, userID int64) (*domain.CartProjection, error)
}

type StockValidator interface {
	Validate(ctx context.Context, requests []stock.Request) error
}

type AddressNormalizer interface {
	Normalize(ctx context.Context, in domain.AddressInput) (domain.FormattedAddress, error)
}

type PaymentProvider interface {
	CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.PaymentSession, error)
	GetSession(ctx context.Context, id string) (*domain.PaymentSession, error)
}

// Store is the part of the primary store the orchestrator writes to.
type Store interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateOrder(ctx context.Context, order *domain.Order, reservedUntil time.Time) error
	GetOrderByReference(ctx context.Context, reference string, userID int64) (*domain.Order, error)
	UpdateOrderSession(ctx context.Context, orderID int64, prevSessionID, sessionID string, reservedUntil time.Time) error
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) error
	UpsertAddress(ctx context.Context, a *domain.Address) error
	GetOrderAddress(ctx context.Context, orderID int64, role domain.AddressRole) (*domain.Address, error)
}

// Result is what a successful checkout or reorder hands back to the client.
type Result struct {
	Reference string          `json:"reference"`
	URL       string          `json:"url"`
	Total     decimal.Decimal `json:"total"`
	Billing   *domain.Address `json:"billing"`
	Shipping  *domain.Address `json:"shipping"`
}

type Service struct {
	store      Store
	carts      CartResolver
	stock      StockValidator
	addresses  AddressNormalizer
	payments   PaymentProvider
	log        *slog.Logger
	sessionTTL time.Duration
	now        func() time.Time
	reference  func() string
}

func NewService(
	store Store,
	carts CartResolver,
	stock StockValidator,
	addresses AddressNormalizer,
	payments PaymentProvider,
	sessionTTL time.Duration,
	log *slog.Logger,
) *Service {
	return &Service{
		store:      store,
		carts:      carts,
		stock:      stock,
		addresses:  addresses,
		payments:   payments,
		log:        log,
		sessionTTL: sessionTTL,
		now:        time.Now,
		reference:  NewReference,
	}
}

// reservedUntil is how long stock stays held for a session.
func (s *Service) reservedUntil(session *domain.PaymentSession) time.Time {
	if !session.ExpiresAt.IsZero() {
		return session.ExpiresAt
	}
	return s.now().Add(s.sessionTTL)
}
