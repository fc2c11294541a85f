package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/sneakpeak/internal/address"
	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/payment"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/fjod/sneakpeak/internal/stock"
)

// Checkout turns the user's cart into a pending order backed by a new payment session.
// Nothing is written until stock and both addresses have been checked.
func (s *Service) Checkout(ctx context.Context, userID int64, billing, shipping *domain.AddressInput) (*Result, error) {
	if missing(billing) || missing(shipping) {
		return nil, ErrMissingAddress
	}

	cart, err := s.carts.ResolveForUser(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("resolve cart: %w", err)
	}
	if len(cart.CartProduct) == 0 {
		return nil, ErrEmptyCart
	}

	// stock is checked for every cart, expired or not
	if err := s.stock.Validate(ctx, stock.FromCart(cart.CartProduct)); err != nil {
		return nil, err
	}

	formattedBilling, formattedShipping, err := s.normalizeBoth(ctx, *billing, *shipping)
	if err != nil {
		return nil, err
	}

	return s.placeOrder(ctx, userID, domain.OrderProductsFromCart(cart.CartProduct), formattedBilling, formattedShipping)
}

// referenceAttempts bounds how many fresh references placeOrder tries after a collision.
const referenceAttempts = 3

// placeOrder opens the payment session, persists the order with its lines and
// reservations, then snapshots both addresses onto it.
func (s *Service) placeOrder(ctx context.Context, userID int64, products []domain.OrderProduct,
	billing, shipping domain.FormattedAddress) (*Result, error) {
	email := s.email(ctx, userID)

	var order *domain.Order
	var session *domain.PaymentSession
	var err error
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		order, session, err = s.openOrder(ctx, userID, email, products)
		if !errors.Is(err, repository.ErrDuplicateOrder) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, ErrExternalService) || errors.Is(err, domain.ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	result := &Result{Reference: order.Reference, URL: session.URL, Total: order.Total}
	if result.Billing, err = s.saveAddress(ctx, order, domain.RoleBilling, billing); err != nil {
		return nil, err
	}
	if result.Shipping, err = s.saveAddress(ctx, order, domain.RoleShipping, shipping); err != nil {
		return nil, err
	}
	return result, nil
}

// openOrder creates a payment session under a new reference and persists the pending
// order bound to it. The session and the order share the reference, so a collision
// on insert needs both to be opened again.
func (s *Service) openOrder(ctx context.Context, userID int64, email string,
	products []domain.OrderProduct) (*domain.Order, *domain.PaymentSession, error) {
	reference := s.reference()

	session, err := s.payments.CreateSession(ctx, domain.SessionRequest{
		Reference: reference,
		UserID:    userID,
		Email:     email,
		Lines:     domain.SessionLinesFromOrder(products),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "payment session creation failed", "reference", reference, "error", err)
		return nil, nil, ErrExternalService
	}

	order := &domain.Order{
		Reference: reference,
		UserID:    userID,
		Total:     session.Total(),
		SessionID: session.ID,
		Status:    domain.OrderStatusPending,
		Products:  products,
	}
	if err := s.store.CreateOrder(ctx, order, s.reservedUntil(session)); err != nil {
		// the unused session expires on its own
		s.log.WarnContext(ctx, "order not created", "reference", reference, "session_id", session.ID, "error", err)
		return nil, nil, err
	}
	s.log.InfoContext(ctx, "order created", "reference", reference, "order_id", order.ID,
		"session_id", session.ID, "total", order.Total.String())
	return order, session, nil
}

func (s *Service) saveAddress(ctx context.Context, order *domain.Order, role domain.AddressRole,
	formatted domain.FormattedAddress) (*domain.Address, error) {
	a := domain.NewAddress(order.ID, role, formatted)
	if err := s.store.UpsertAddress(ctx, &a); err != nil {
		s.log.ErrorContext(ctx, "address snapshot not saved", "reference", order.Reference, "role", role, "error", err)
		return nil, &AddressNotSavedError{Reference: order.Reference, Role: role, Err: err}
	}
	return &a, nil
}

func (s *Service) normalizeBoth(ctx context.Context, billing, shipping domain.AddressInput) (domain.FormattedAddress, domain.FormattedAddress, error) {
	b, err := s.normalize(ctx, domain.RoleBilling, billing)
	if err != nil {
		return domain.FormattedAddress{}, domain.FormattedAddress{}, err
	}
	sh, err := s.normalize(ctx, domain.RoleShipping, shipping)
	if err != nil {
		return domain.FormattedAddress{}, domain.FormattedAddress{}, err
	}
	return b, sh, nil
}

func (s *Service) normalize(ctx context.Context, role domain.AddressRole, in domain.AddressInput) (domain.FormattedAddress, error) {
	f, err := s.addresses.Normalize(ctx, in)
	if err != nil {
		s.log.WarnContext(ctx, "address normalization failed", "role", role, "error", err)
		if errors.Is(err, address.ErrUnprocessable) {
			return domain.FormattedAddress{}, fmt.Errorf("%s: %w", role, ErrAddressUnprocessable)
		}
		return domain.FormattedAddress{}, ErrExternalService
	}
	return f, nil
}

// email looks up the contact address for the payment session. Unknown users get none.
func (s *Service) email(ctx context.Context, userID int64) string {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.WarnContext(ctx, "user lookup failed", "user_id", userID, "error", err)
		}
		return ""
	}
	return u.Email
}

// session fetches the provider's view of a session, mapping a missing one to ErrNotFound.
func (s *Service) session(ctx context.Context, id string) (*domain.PaymentSession, error) {
	session, err := s.payments.GetSession(ctx, id)
	if errors.Is(err, payment.ErrSessionNotFound) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "payment session lookup failed", "session_id", id, "error", err)
		return nil, ErrExternalService
	}
	return session, nil
}

func (s *Service) order(ctx context.Context, userID int64, reference string) (*domain.Order, error) {
	o, err := s.store.GetOrderByReference(ctx, reference, userID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("order %s: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

func missing(in *domain.AddressInput) bool {
	return in == nil || strings.TrimSpace(in.Address) == ""
}
