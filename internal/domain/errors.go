package domain

import (
	"errors"
	"fmt"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError names the line that could not be satisfied.
type InsufficientStockError struct {
	VariantID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("Not enough stock for %s", e.Name)
	}
	return fmt.Sprintf("Not enough stock for %d", e.VariantID)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
