package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/sneakpeak/internal/domain"
)

var (
	// ErrUnprocessable means the address could not be turned into a structured record.
	ErrUnprocessable = errors.New("address could not be processed")
	ErrEmptyInput    = errors.New("address input is empty")
)

// Formatter turns a free-text address into its structured parts.
type Formatter interface {
	Format(ctx context.Context, raw string) (domain.FormattedAddress, error)
}

type Normalizer struct {
	formatter Formatter
}

func NewNormalizer(formatter Formatter) *Normalizer {
	return &Normalizer{formatter: formatter}
}

// Normalize formats the input and attaches the contact details. Every failure,
// including a result without street, city or zip, is reported as ErrUnprocessable.
func (n *Normalizer) Normalize(ctx context.Context, in domain.AddressInput) (domain.FormattedAddress, error) {
	raw := strings.Join(strings.Fields(in.Address), " ")
	if raw == "" {
		return domain.FormattedAddress{}, fmt.Errorf("%w: %w", ErrUnprocessable, ErrEmptyInput)
	}

	f, err := n.formatter.Format(ctx, raw)
	if err != nil {
		return domain.FormattedAddress{}, fmt.Errorf("%w: %w", ErrUnprocessable, err)
	}
	if f.Street == "" || f.City == "" || f.Zip == "" {
		return domain.FormattedAddress{}, fmt.Errorf("%w: incomplete result for %q", ErrUnprocessable, raw)
	}

	f.Name = strings.TrimSpace(in.Name)
	f.Phone = strings.TrimSpace(in.Phone)
	return f, nil
}
