package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
)

const (
	MinQuantity = 1
	MaxQuantity = domain.MaxLineQuantity
)

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrVariantNotFound = errors.New("variant not found")
)

// Store writes cart rows and their outbox events in one transaction.
type Store interface {
	GetVariant(ctx context.Context, id int64) (*domain.Variant, error)
	AddItem(ctx context.Context, userID, variantID int64, quantity int, now, expiredAt time.Time) (int64, error)
	UpdateItemQuantity(ctx context.Context, userID, variantID int64, quantity int, now, expiredAt time.Time) (int64, error)
	RemoveItem(ctx context.Context, userID, variantID int64, now, expiredAt time.Time) (int64, error)
	DeleteCart(ctx context.Context, userID int64, now time.Time) (int64, error)
}

// Service applies cart mutations to the primary store. The projection catches up
// asynchronously from the outbox, so no mutation waits on or fails because of it.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
	log    *slog.Logger
}

func NewService(store Store, window time.Duration, log *slog.Logger) *Service {
	return &Service{store: store, window: window, now: time.Now, log: log}
}

func (s *Service) AddItem(ctx context.Context, userID, variantID int64, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	if _, err := s.store.GetVariant(ctx, variantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVariantNotFound
		}
		return err
	}

	now := s.now().UTC()
	cartID, err := s.store.AddItem(ctx, userID, variantID, quantity, now, domain.ExpirationFrom(now, s.window))
	if errors.Is(err, repository.ErrQuantityLimit) {
		return fmt.Errorf("%w: line would exceed %d", ErrInvalidQuantity, MaxQuantity)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "add item failed", "user_id", userID, "variant_id", variantID, "error", err)
		return err
	}
	s.log.DebugContext(ctx, "item added", "cart_id", cartID, "variant_id", variantID, "quantity", quantity)
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, variantID int64, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	now := s.now().UTC()
	if _, err := s.store.UpdateItemQuantity(ctx, userID, variantID, quantity, now, domain.ExpirationFrom(now, s.window)); err != nil {
		s.log.ErrorContext(ctx, "update quantity failed", "user_id", userID, "variant_id", variantID, "error", err)
		return err
	}
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, variantID int64) error {
	now := s.now().UTC()
	if _, err := s.store.RemoveItem(ctx, userID, variantID, now, domain.ExpirationFrom(now, s.window)); err != nil {
		s.log.ErrorContext(ctx, "remove item failed", "user_id", userID, "variant_id", variantID, "error", err)
		return err
	}
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	if _, err := s.store.DeleteCart(ctx, userID, s.now().UTC()); err != nil {
		s.log.ErrorContext(ctx, "clear cart failed", "user_id", userID, "error", err)
		return err
	}
	return nil
}

func validateQuantity(q int) error {
	if q < MinQuantity || q > MaxQuantity {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, q)
	}
	return nil
}
