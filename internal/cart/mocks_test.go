package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/shopspring/decimal"
)

type mockCatalog struct {
	mu         sync.Mutex
	carts      map[int64]*domain.Cart
	variants   map[int64]*domain.Variant
	products   map[int64]*domain.Product
	users      map[int64]*domain.User
	variantErr error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		carts: map[int64]*domain.Cart{},
		variants: map[int64]*domain.Variant{
			1: {ID: 1, ProductID: 10, Color: "white", Size: "42", Image: "am.png", Stock: 5},
			2: {ID: 2, ProductID: 20, Color: "black", Size: "40", Image: "gz.png", Stock: 1},
		},
		products: map[int64]*domain.Product{
			10: {ID: 10, Reference: "AM90", Name: "Air Max 90", Price: decimal.RequireFromString("120.50"), CategoryID: 1, BrandID: 1},
			20: {ID: 20, Reference: "GZL", Name: "Gazelle", Price: decimal.RequireFromString("89.99"), CategoryID: 2, BrandID: 2},
		},
		users: map[int64]*domain.User{7: {ID: 7, Email: "jane@example.com"}},
	}
}

func (m *mockCatalog) GetCartByUser(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCatalog) GetCartByID(_ context.Context, cartID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c, nil
}

func (m *mockCatalog) GetVariant(_ context.Context, id int64) (*domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.variantErr != nil {
		return nil, m.variantErr
	}
	v, ok := m.variants[id]
	if !ok {
		return nil, fmt.Errorf("variant %d: %w", id, repository.ErrNotFound)
	}
	return v, nil
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	return &domain.Category{ID: id, Name: map[int64]string{1: "Running", 2: "Lifestyle"}[id]}, nil
}

func (m *mockCatalog) GetBrand(_ context.Context, id int64) (*domain.Brand, error) {
	return &domain.Brand{ID: id, Name: map[int64]string{1: "Nike", 2: "Adidas"}[id]}, nil
}

func (m *mockCatalog) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type storeCall struct {
	op        string
	userID    int64
	variantID int64
	quantity  int
	now       time.Time
	expiredAt time.Time
}

type mockStore struct {
	mu    sync.Mutex
	calls []storeCall
	err   error
}

func (m *mockStore) record(c storeCall) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.err != nil {
		return 0, m.err
	}
	return 100, nil
}

func (m *mockStore) GetVariant(_ context.Context, id int64) (*domain.Variant, error) {
	if id == 404 {
		return nil, repository.ErrNotFound
	}
	return &domain.Variant{ID: id}, nil
}

func (m *mockStore) AddItem(_ context.Context, userID, variantID int64, quantity int, now, expiredAt time.Time) (int64, error) {
	return m.record(storeCall{"add", userID, variantID, quantity, now, expiredAt})
}

func (m *mockStore) UpdateItemQuantity(_ context.Context, userID, variantID int64, quantity int, now, expiredAt time.Time) (int64, error) {
	return m.record(storeCall{"update", userID, variantID, quantity, now, expiredAt})
}

func (m *mockStore) RemoveItem(_ context.Context, userID, variantID int64, now, expiredAt time.Time) (int64, error) {
	return m.record(storeCall{"remove", userID, variantID, 0, now, expiredAt})
}

func (m *mockStore) DeleteCart(_ context.Context, userID int64, now time.Time) (int64, error) {
	return m.record(storeCall{op: "delete", userID: userID, now: now})
}
