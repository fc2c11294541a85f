package stock

import (
	"context"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
)

// Reader returns the quantity of a variant that can still be sold.
type Reader interface {
	AvailableStock(ctx context.Context, variantID int64) (int, error)
}

// Request is one line to check. Name is only used to label the failure.
type Request struct {
	VariantID int64
	Name      string
	Quantity  int
}

type Validator struct {
	reader Reader
}

func NewValidator(reader Reader) *Validator {
	return &Validator{reader: reader}
}

// Validate checks every request against current availability and fails on the first
// line that asks for more than is available. It has no side effects.
func (v *Validator) Validate(ctx context.Context, requests []Request) error {
	for _, req := range requests {
		available, err := v.reader.AvailableStock(ctx, req.VariantID)
		if err != nil {
			return fmt.Errorf("stock for variant %d: %w", req.VariantID, err)
		}
		if req.Quantity > available {
			return &domain.InsufficientStockError{
				VariantID: req.VariantID,
				Name:      req.Name,
				Requested: req.Quantity,
				Available: available,
			}
		}
	}
	return nil
}

func FromCart(items []domain.CartItem) []Request {
	reqs := make([]Request, len(items))
	for i, item := range items {
		reqs[i] = Request{VariantID: item.ID, Name: item.Name, Quantity: item.Quantity}
	}
	return reqs
}

func FromOrder(products []domain.OrderProduct) []Request {
	reqs := make([]Request, len(products))
	for i, p := range products {
		reqs[i] = Request{VariantID: p.VariantID, Name: p.Name, Quantity: p.Quantity}
	}
	return reqs
}
