package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/fjod/sneakpeak/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCartGone = fmt.Errorf("cart 9: %w", repository.ErrCartNotFound)

func eventMessage(t *testing.T, typ domain.CartEventType, cartID, userID int64) kafka.Message {
	v, err := json.Marshal(domain.CartEvent{Type: typ, CartID: cartID, UserID: userID, OccurredAt: time.Now()})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(fmt.Sprint(cartID)), Value: v}
}

func projectedCart(id, userID int64) *domain.CartProjection {
	item := domain.CartItem{ID: 1, Name: "Air Max", Quantity: 2, UnitPrice: decimal.NewFromInt(100), Adjustment: decimal.NewFromInt(-5)}
	item.Recompute()
	return &domain.CartProjection{ID: id, UserID: userID, CartProduct: []domain.CartItem{item}}
}

func newTestConsumer(resolver *mockResolver, store *mockStore, cache *mockCache, reader *mockReader) *Consumer {
	c := NewConsumer(reader, resolver, store, cache, logger.Discard())
	c.retryMax = 10 * time.Millisecond
	return c
}

func TestHandle_UpsertReplacesWholeDocument(t *testing.T) {
	store := newMockStore()
	store.docs[9] = &domain.CartProjection{ID: 9, UserID: 7}
	cache := &mockCache{}
	reader := &mockReader{}
	resolver := &mockResolver{carts: map[int64]*domain.CartProjection{9: projectedCart(9, 7)}}
	c := newTestConsumer(resolver, store, cache, reader)

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventUpserted, 9, 7)))

	doc := store.docs[9]
	require.Len(t, doc.CartProduct, 1)
	assert.True(t, decimal.NewFromInt(195).Equal(doc.CartProduct[0].Total))
	require.Contains(t, cache.stored, int64(7))
	assert.Equal(t, int64(9), cache.stored[7].ID)
	assert.Empty(t, cache.deleted)
	assert.Equal(t, 1, reader.committedCount())
}

func TestHandle_UpsertForDeletedCartRemovesDocument(t *testing.T) {
	store := newMockStore()
	store.docs[9] = projectedCart(9, 7)
	reader := &mockReader{}
	c := newTestConsumer(&mockResolver{carts: map[int64]*domain.CartProjection{}}, store, &mockCache{}, reader)

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventUpserted, 9, 7)))

	assert.NotContains(t, store.docs, int64(9))
	assert.Equal(t, 1, reader.committedCount())
}

func TestHandle_DeleteIsTombstone(t *testing.T) {
	store := newMockStore()
	store.docs[9] = projectedCart(9, 7)
	cache := &mockCache{}
	c := newTestConsumer(&mockResolver{}, store, cache, &mockReader{})

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventDeleted, 9, 7)))
	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventDeleted, 9, 7)))

	assert.Empty(t, store.docs)
	assert.Equal(t, []int64{9, 9}, store.deleted)
	require.Contains(t, cache.stored, int64(7))
	assert.Empty(t, cache.stored[7].CartProduct)
	assert.False(t, cache.stored[7].UpdatedAt.IsZero())
}

func TestHandle_CacheWriteFailureFallsBackToDelete(t *testing.T) {
	cache := &mockCache{setErr: errors.New("redis down")}
	resolver := &mockResolver{carts: map[int64]*domain.CartProjection{9: projectedCart(9, 7)}}
	reader := &mockReader{}
	c := newTestConsumer(resolver, newMockStore(), cache, reader)

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventUpserted, 9, 7)))

	assert.Equal(t, []int64{7}, cache.deleted)
	assert.Equal(t, 1, reader.committedCount())
}

func TestRun_FailedFetchWaitsBeforeRetrying(t *testing.T) {
	reader := &mockReader{fetchErr: errors.New("broker unreachable")}
	c := newTestConsumer(&mockResolver{}, newMockStore(), &mockCache{}, reader)
	c.fetchRetry = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.LessOrEqual(t, reader.fetchCount(), 4)
	assert.GreaterOrEqual(t, reader.fetchCount(), 2)
}

func TestHandle_ReorderedEventsConverge(t *testing.T) {
	store := newMockStore()
	resolver := &mockResolver{carts: map[int64]*domain.CartProjection{}}
	c := newTestConsumer(resolver, store, &mockCache{}, &mockReader{})

	// the cart was deleted in the primary before either event is consumed
	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventDeleted, 9, 7)))
	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventUpserted, 9, 7)))

	assert.Empty(t, store.docs)
}

func TestHandle_TransientFailureIsRetried(t *testing.T) {
	store := newMockStore()
	store.replaceErr = []error{errors.New("mongo timeout"), errors.New("mongo timeout"), nil}
	reader := &mockReader{}
	c := newTestConsumer(&mockResolver{carts: map[int64]*domain.CartProjection{9: projectedCart(9, 7)}}, store, &mockCache{}, reader)

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.CartEventUpserted, 9, 7)))

	assert.Contains(t, store.docs, int64(9))
	assert.Equal(t, 1, reader.committedCount())
}

func TestHandle_CancelledWhileRetryingDoesNotCommit(t *testing.T) {
	reader := &mockReader{}
	c := newTestConsumer(&mockResolver{err: errors.New("postgres down")}, newMockStore(), &mockCache{}, reader)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.handle(ctx, eventMessage(t, domain.CartEventUpserted, 9, 7))

	assert.Error(t, err)
	assert.Equal(t, 0, reader.committedCount())
}

func TestHandle_PoisonMessagesAreCommitted(t *testing.T) {
	reader := &mockReader{}
	store := newMockStore()
	c := newTestConsumer(&mockResolver{}, store, &mockCache{}, reader)

	require.NoError(t, c.handle(context.Background(), kafka.Message{Value: []byte("{not json")}))
	require.NoError(t, c.handle(context.Background(), eventMessage(t, "cart.renamed", 9, 7)))

	assert.Equal(t, 2, reader.committedCount())
	assert.Empty(t, store.deleted)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	store := newMockStore()
	reader := &mockReader{msgs: []kafka.Message{
		eventMessage(t, domain.CartEventUpserted, 9, 7),
		eventMessage(t, domain.CartEventUpserted, 10, 8),
	}}
	resolver := &mockResolver{carts: map[int64]*domain.CartProjection{9: projectedCart(9, 7), 10: projectedCart(10, 8)}}
	c := newTestConsumer(resolver, store, &mockCache{}, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return reader.committedCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
