package checkout

import (
	"errors"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
)

var (
	// ErrValidation is the class of malformed or missing input.
	ErrValidation     = errors.New("validation failed")
	ErrEmptyCart      = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrMissingAddress = fmt.Errorf("%w: billing and shipping addresses are required", ErrValidation)

	ErrNotFound             = errors.New("not found")
	ErrAlreadyPaid          = errors.New("order is already paid")
	ErrAddressUnprocessable = errors.New("address could not be processed")
	// ErrExternalService hides provider failures from clients; the cause is logged.
	ErrExternalService = errors.New("external service failure")
)

// AddressNotSavedError reports an order that was created with its session
// but whose address snapshot could not be stored.
type AddressNotSavedError struct {
	Reference string
	Role      domain.AddressRole
	Err       error
}

func (e *AddressNotSavedError) Error() string {
	return fmt.Sprintf("order %s created but %s address was not saved", e.Reference, e.Role)
}

func (e *AddressNotSavedError) Unwrap() error {
	return e.Err
}
