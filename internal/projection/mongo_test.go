package projection

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) *MongoStore {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongoStore(db)
	require.NoError(t, store.CreateIndexes(ctx))
	return store
}

func TestMongoStore_ReplaceIsFullReplacement(t *testing.T) {
	store := setupTestMongo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := projectedCart(9, 7)
	first.CartProduct = append(first.CartProduct, domain.CartItem{ID: 2, Name: "Gazelle", Quantity: 1, UnitPrice: decimal.RequireFromString("89.99")})
	first.CartProduct[1].Recompute()
	require.NoError(t, store.Replace(ctx, first))

	second := projectedCart(9, 7)
	second.UpdatedAt = now
	second.ExpiredAt = now.Add(15 * time.Minute)
	require.NoError(t, store.Replace(ctx, second))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got.CartProduct, 1)
	assert.True(t, decimal.NewFromInt(195).Equal(got.CartProduct[0].Total))
	assert.True(t, decimal.NewFromInt(-5).Equal(got.CartProduct[0].Adjustment))
	assert.Equal(t, now.Add(15*time.Minute), got.ExpiredAt)
}

func TestMongoStore_NewCartSupersedesStaleOne(t *testing.T) {
	store := setupTestMongo(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, projectedCart(9, 7)))
	require.NoError(t, store.Replace(ctx, projectedCart(10, 7)))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)

	// the late tombstone of the old cart leaves the new one alone
	require.NoError(t, store.Delete(ctx, 9))
	got, err = store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)
}

func TestMongoStore_DeleteMissingIsNoop(t *testing.T) {
	store := setupTestMongo(t)

	assert.NoError(t, store.Delete(context.Background(), 404))
	_, err := store.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrCartNotFound)
}
