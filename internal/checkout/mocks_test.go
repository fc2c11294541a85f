package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/sneakpeak/internal/address"
	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/payment"
	"github.com/fjod/sneakpeak/internal/repository"
)

type mockCarts struct {
	carts map[int64]*domain.CartProjection
	err   error
}

func (m *mockCarts) ResolveForUser(_ context.Context, userID int64) (*domain.CartProjection, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c, nil
}

type stockMap map[int64]int

func (s stockMap) AvailableStock(_ context.Context, variantID int64) (int, error) {
	return s[variantID], nil
}

type mockNormalizer struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (m *mockNormalizer) Normalize(_ context.Context, in domain.AddressInput) (domain.FormattedAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in.Address)
	if err := m.fail[in.Address]; err != nil {
		return domain.FormattedAddress{}, err
	}
	return domain.FormattedAddress{
		Street:  in.Address,
		City:    "Madrid",
		Country: "ES",
		Zip:     "28001",
		Name:    in.Name,
		Phone:   in.Phone,
	}, nil
}

type mockPayments struct {
	mu        sync.Mutex
	sessions  map[string]*domain.PaymentSession
	requests  []domain.SessionRequest
	createErr error
	getErr    error
	expiresAt time.Time
}

func newMockPayments() *mockPayments {
	return &mockPayments{
		sessions:  map[string]*domain.PaymentSession{},
		expiresAt: time.Date(2024, 5, 1, 11, 30, 0, 0, time.UTC),
	}
}

func (m *mockPayments) CreateSession(_ context.Context, req domain.SessionRequest) (*domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	var amount int64
	for _, l := range req.Lines {
		amount += l.MinorUnits() * int64(l.Quantity)
	}
	s := &domain.PaymentSession{
		ID:            fmt.Sprintf("cs_%d", len(m.sessions)+1),
		Amount:        amount,
		Currency:      "eur",
		URL:           "https://pay.example.com/" + req.Reference,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Status:        domain.SessionStatusOpen,
		ExpiresAt:     m.expiresAt,
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockPayments) GetSession(_ context.Context, id string) (*domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockPayments) set(id string, status domain.SessionStatus, paid domain.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id].Status = status
	m.sessions[id].PaymentStatus = paid
}

func (m *mockPayments) created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type addressKey struct {
	orderID int64
	role    domain.AddressRole
}

type mockStore struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	orders    map[string]*domain.Order
	addresses map[addressKey]*domain.Address
	nextID    int64

	createErr  error
	upsertErr  error
	transition []string
	// beforeSessionUpdate runs just before the conditional session swap
	beforeSessionUpdate func()
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     map[int64]*domain.User{7: {ID: 7, Email: "jane@example.com"}},
		orders:    map[string]*domain.Order{},
		addresses: map[addressKey]*domain.Address{},
	}
}

func (m *mockStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *mockStore) CreateOrder(_ context.Context, order *domain.Order, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, taken := m.orders[order.Reference]; taken {
		return repository.ErrDuplicateOrder
	}
	m.nextID++
	order.ID = m.nextID
	cp := *order
	cp.Products = append([]domain.OrderProduct(nil), order.Products...)
	m.orders[order.Reference] = &cp
	return nil
}

func (m *mockStore) GetOrderByReference(_ context.Context, reference string, userID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[reference]
	if !ok || o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) byID(id int64) *domain.Order {
	for _, o := range m.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (m *mockStore) UpdateOrderSession(_ context.Context, orderID int64, prevSessionID, sessionID string, _ time.Time) error {
	if m.beforeSessionUpdate != nil {
		m.beforeSessionUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID(orderID)
	if o == nil || o.SessionID != prevSessionID || o.Status.IsTerminal() {
		return repository.ErrStatusConflict
	}
	o.SessionID = sessionID
	o.Status = domain.OrderStatusPending
	return nil
}

func (m *mockStore) UpdateOrderStatus(_ context.Context, orderID int64, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !domain.CanTransitionTo(from, to) {
		return fmt.Errorf("%s to %s: invalid transition", from, to)
	}
	o := m.byID(orderID)
	if o == nil || o.Status != from {
		return repository.ErrStatusConflict
	}
	o.Status = to
	m.transition = append(m.transition, fmt.Sprintf("%s->%s", from, to))
	return nil
}

func (m *mockStore) UpsertAddress(_ context.Context, a *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	key := addressKey{a.OrderID, a.Role}
	if existing, ok := m.addresses[key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = int64(len(m.addresses) + 1)
	}
	cp := *a
	m.addresses[key] = &cp
	return nil
}

func (m *mockStore) GetOrderAddress(_ context.Context, orderID int64, role domain.AddressRole) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[addressKey{orderID, role}]
	if !ok {
		return nil, repository.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) status(reference string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[reference].Status
}

var (
	errUnprocessable = fmt.Errorf("no street: %w", address.ErrUnprocessable)
	errProviderDown  = errors.New("connection refused")
)
