package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_JoinsCatalogAndComputesTotals(t *testing.T) {
	catalog := newMockCatalog()
	now := time.Date(2024, 5, 1, 10, 55, 0, 0, time.UTC)
	catalog.carts[3] = &domain.Cart{
		ID: 3, UserID: 7, CreatedAt: now, UpdatedAt: now, ExpiredAt: now.Add(15 * time.Minute),
		Lines: []domain.CartLine{{VariantID: 2, Quantity: 1}, {VariantID: 1, Quantity: 2}},
	}

	p, err := NewResolver(catalog).ResolveForUser(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "jane@example.com", p.User)
	assert.Equal(t, now.Add(15*time.Minute), p.ExpiredAt)
	require.Len(t, p.CartProduct, 2)

	gazelle, airMax := p.CartProduct[0], p.CartProduct[1]
	assert.Equal(t, "Gazelle", gazelle.Name)
	assert.Equal(t, "Adidas", gazelle.Brand)
	assert.Equal(t, "Air Max 90", airMax.Name)
	assert.Equal(t, "Running", airMax.Category)
	assert.Equal(t, "white", airMax.Color)
	assert.Equal(t, 5, airMax.Stock)

	for _, item := range p.CartProduct {
		assert.True(t, item.Total.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Add(item.Adjustment)))
	}
	assert.True(t, decimal.RequireFromString("330.99").Equal(p.Total()))
}

func TestResolve_ReadsCurrentPrice(t *testing.T) {
	catalog := newMockCatalog()
	catalog.carts[3] = &domain.Cart{ID: 3, UserID: 7, Lines: []domain.CartLine{{VariantID: 1, Quantity: 1}}}
	r := NewResolver(catalog)

	first, err := r.ResolveByID(context.Background(), 3)
	require.NoError(t, err)

	catalog.products[10].Price = decimal.NewFromInt(99)
	second, err := r.ResolveByID(context.Background(), 3)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("120.50").Equal(first.CartProduct[0].Total))
	assert.True(t, decimal.NewFromInt(99).Equal(second.CartProduct[0].Total))
}

func TestResolve_UnknownUserIsSilent(t *testing.T) {
	catalog := newMockCatalog()
	catalog.carts[3] = &domain.Cart{ID: 3, UserID: 999, Lines: []domain.CartLine{{VariantID: 1, Quantity: 1}}}

	p, err := NewResolver(catalog).ResolveByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, p.User)
}

func TestResolve_MissingCart(t *testing.T) {
	_, err := NewResolver(newMockCatalog()).ResolveForUser(context.Background(), 7)
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestResolve_CatalogErrorFailsWholeCart(t *testing.T) {
	catalog := newMockCatalog()
	catalog.variantErr = errors.New("connection reset")
	catalog.carts[3] = &domain.Cart{ID: 3, UserID: 7, Lines: []domain.CartLine{{VariantID: 1, Quantity: 1}}}

	_, err := NewResolver(catalog).ResolveByID(context.Background(), 3)
	assert.ErrorContains(t, err, "connection reset")
}
