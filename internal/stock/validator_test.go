package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	mu    sync.Mutex
	stock map[int64]int
	err   error
	calls []int64
}

func (m *mockReader) AvailableStock(_ context.Context, variantID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, variantID)
	if m.err != nil {
		return 0, m.err
	}
	return m.stock[variantID], nil
}

func TestValidate_ExactStockPasses(t *testing.T) {
	v := NewValidator(&mockReader{stock: map[int64]int{1: 3}})

	assert.NoError(t, v.Validate(context.Background(), []Request{{VariantID: 1, Quantity: 3}}))
}

func TestValidate_OneOverStockFails(t *testing.T) {
	for _, s := range []int{0, 1, 5, 99} {
		v := NewValidator(&mockReader{stock: map[int64]int{1: s}})

		err := v.Validate(context.Background(), []Request{{VariantID: 1, Name: "Air Max", Quantity: s + 1}})

		var stockErr *domain.InsufficientStockError
		require.True(t, errors.As(err, &stockErr), "stock %d", s)
		assert.Equal(t, int64(1), stockErr.VariantID)
		assert.Equal(t, s, stockErr.Available)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, "Not enough stock for Air Max", err.Error())
	}
}

func TestValidate_StopsAtFirstFailure(t *testing.T) {
	reader := &mockReader{stock: map[int64]int{1: 0, 2: 10}}
	v := NewValidator(reader)

	err := v.Validate(context.Background(), []Request{{VariantID: 1, Quantity: 1}, {VariantID: 2, Quantity: 1}})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, []int64{1}, reader.calls)
}

func TestValidate_ReaderError(t *testing.T) {
	v := NewValidator(&mockReader{err: errors.New("db down")})

	err := v.Validate(context.Background(), []Request{{VariantID: 1, Quantity: 1}})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestFromCartAndOrder(t *testing.T) {
	items := []domain.CartItem{{ID: 4, Name: "Gazelle", Quantity: 2}}
	assert.Equal(t, []Request{{VariantID: 4, Name: "Gazelle", Quantity: 2}}, FromCart(items))

	products := []domain.OrderProduct{{VariantID: 7, Name: "Samba", Quantity: 1}}
	assert.Equal(t, []Request{{VariantID: 7, Name: "Samba", Quantity: 1}}, FromOrder(products))
}
