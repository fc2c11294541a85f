package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/fjod/sneakpeak/internal/stock"
)

// Reorder places a new order with the lines and addresses of a past one.
// Historical unit prices are kept; stock is checked against today's availability.
func (s *Service) Reorder(ctx context.Context, userID int64, reference string) (*Result, error) {
	past, err := s.order(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if len(past.Products) == 0 {
		return nil, ErrEmptyCart
	}

	billing, err := s.pastAddress(ctx, past, domain.RoleBilling)
	if err != nil {
		return nil, err
	}
	shipping, err := s.pastAddress(ctx, past, domain.RoleShipping)
	if err != nil {
		return nil, err
	}

	if err := s.stock.Validate(ctx, stock.FromOrder(past.Products)); err != nil {
		return nil, err
	}

	formattedBilling, formattedShipping, err := s.normalizeBoth(ctx, billing.Input(), shipping.Input())
	if err != nil {
		return nil, err
	}

	return s.placeOrder(ctx, userID, domain.CopyOrderProducts(past.Products), formattedBilling, formattedShipping)
}

func (s *Service) pastAddress(ctx context.Context, order *domain.Order, role domain.AddressRole) (*domain.Address, error) {
	a, err := s.store.GetOrderAddress(ctx, order.ID, role)
	if errors.Is(err, repository.ErrAddressNotFound) {
		return nil, fmt.Errorf("%s address of %s: %w", role, order.Reference, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s address: %w", role, err)
	}
	return a, nil
}
