package projection

import (
	"context"
	"sync"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/segmentio/kafka-go"
)

type mockStore struct {
	mu         sync.Mutex
	docs       map[int64]*domain.CartProjection
	getCalls   int
	replaceErr []error // consumed one per call
	deleted    []int64
}

func newMockStore() *mockStore {
	return &mockStore{docs: map[int64]*domain.CartProjection{}}
}

func (m *mockStore) Get(_ context.Context, userID int64) (*domain.CartProjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	for _, p := range m.docs {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, ErrCartNotFound
}

func (m *mockStore) Replace(_ context.Context, p *domain.CartProjection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replaceErr) > 0 {
		err := m.replaceErr[0]
		m.replaceErr = m.replaceErr[1:]
		if err != nil {
			return err
		}
	}
	m.docs[p.ID] = p
	return nil
}

func (m *mockStore) Delete(_ context.Context, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, cartID)
	m.deleted = append(m.deleted, cartID)
	return nil
}

type mockCache struct {
	mu      sync.Mutex
	stored  map[int64]*domain.CartProjection
	setErr  error
	deleted []int64
}

func (m *mockCache) Get(context.Context, int64) (*domain.CartProjection, error) {
	return nil, ErrCacheMiss
}

func (m *mockCache) Set(_ context.Context, userID int64, p *domain.CartProjection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.stored == nil {
		m.stored = map[int64]*domain.CartProjection{}
	}
	m.stored[userID] = p
	return nil
}

func (m *mockCache) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, userID)
	return nil
}

type mockResolver struct {
	mu    sync.Mutex
	carts map[int64]*domain.CartProjection
	err   error
}

func (m *mockResolver) ResolveByID(_ context.Context, cartID int64) (*domain.CartProjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.carts[cartID]
	if !ok {
		return nil, errCartGone
	}
	return p, nil
}

type mockReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	fetchErr  error
	fetches   int
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	m.fetches++
	if m.fetchErr != nil {
		m.mu.Unlock()
		return kafka.Message{}, m.fetchErr
	}
	if len(m.msgs) > 0 {
		msg := m.msgs[0]
		m.msgs = m.msgs[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockReader) Close() error { return nil }

func (m *mockReader) committedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

func (m *mockReader) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// blockingStore holds the first Get until release is closed.
type blockingStore struct {
	*mockStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Get(ctx context.Context, userID int64) (*domain.CartProjection, error) {
	p, err := b.mockStore.Get(ctx, userID)
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return p, err
}
