package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
)

// SuccessResult holds either the confirmed order or, when the payment is not
// confirmed, the instruction to send the caller to the cancel flow.
type SuccessResult struct {
	Order          *domain.Order
	RedirectCancel bool
}

// Success confirms an order once the provider reports its session as paid.
// Local status is only ever moved after asking the provider.
func (s *Service) Success(ctx context.Context, userID int64, reference string) (*SuccessResult, error) {
	order, err := s.order(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusPaid {
		return &SuccessResult{Order: order}, nil
	}

	session, err := s.session(ctx, order.SessionID)
	if err != nil {
		return nil, err
	}

	switch domain.NextSessionAction(session, domain.IntentSuccess) {
	case domain.ActionReturnOrder:
		if err := s.markPaid(ctx, order); err != nil {
			return nil, err
		}
		return &SuccessResult{Order: order}, nil
	default:
		if session.IsExpired() && order.Status == domain.OrderStatusPending {
			if err := s.store.UpdateOrderStatus(ctx, order.ID, order.Status, domain.OrderStatusExpired); err != nil &&
				!errors.Is(err, repository.ErrStatusConflict) {
				s.log.WarnContext(ctx, "failed to mark order expired", "reference", reference, "error", err)
			}
		}
		return &SuccessResult{RedirectCancel: true}, nil
	}
}

// Cancel returns the order's payment session so the client can resume paying.
// An expired session is replaced once; later calls see the replacement.
func (s *Service) Cancel(ctx context.Context, userID int64, reference string) (*domain.PaymentSession, error) {
	order, err := s.order(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	session, err := s.session(ctx, order.SessionID)
	if err != nil {
		return nil, err
	}

	switch domain.NextSessionAction(session, domain.IntentCancel) {
	case domain.ActionRejectPaid:
		if err := s.markPaid(ctx, order); err != nil {
			s.log.WarnContext(ctx, "failed to record payment", "reference", reference, "error", err)
		}
		return nil, ErrAlreadyPaid
	case domain.ActionRenewSession:
		return s.renew(ctx, order)
	default:
		return session, nil
	}
}

func (s *Service) renew(ctx context.Context, order *domain.Order) (*domain.PaymentSession, error) {
	session, err := s.payments.CreateSession(ctx, domain.SessionRequest{
		Reference: order.Reference,
		UserID:    order.UserID,
		Email:     s.email(ctx, order.UserID),
		Lines:     domain.SessionLinesFromOrder(order.Products),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "payment session renewal failed", "reference", order.Reference, "error", err)
		return nil, ErrExternalService
	}

	err = s.store.UpdateOrderSession(ctx, order.ID, order.SessionID, session.ID, s.reservedUntil(session))
	if errors.Is(err, repository.ErrStatusConflict) {
		// a concurrent call renewed first; hand back the session it bound
		current, errLoad := s.order(ctx, order.UserID, order.Reference)
		if errLoad != nil {
			return nil, errLoad
		}
		return s.session(ctx, current.SessionID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("rebind session: %w", err)
	}

	s.log.InfoContext(ctx, "payment session renewed", "reference", order.Reference,
		"previous_session_id", order.SessionID, "session_id", session.ID)
	order.SessionID = session.ID
	order.Status = domain.OrderStatusPending
	return session, nil
}

func (s *Service) markPaid(ctx context.Context, order *domain.Order) error {
	if order.Status == domain.OrderStatusPaid {
		return nil
	}
	if order.Status == domain.OrderStatusExpired {
		// the provider completed a session we had already seen expire
		if err := s.store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusExpired, domain.OrderStatusPending); err != nil &&
			!errors.Is(err, repository.ErrStatusConflict) {
			return fmt.Errorf("reopen order: %w", err)
		}
		order.Status = domain.OrderStatusPending
	}

	err := s.store.UpdateOrderStatus(ctx, order.ID, order.Status, domain.OrderStatusPaid)
	if err != nil && !errors.Is(err, repository.ErrStatusConflict) {
		return fmt.Errorf("mark order paid: %w", err)
	}
	order.Status = domain.OrderStatusPaid
	return nil
}
