package projection

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CartCache must not let Set replace an entry with an older UpdatedAt.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*domain.CartProjection, error)
	Set(ctx context.Context, userID int64, p *domain.CartProjection) error
	Delete(ctx context.Context, userID int64) error
}

type CartStore interface {
	Get(ctx context.Context, userID int64) (*domain.CartProjection, error)
	Replace(ctx context.Context, p *domain.CartProjection) error
	Delete(ctx context.Context, cartID int64) error
}

// Reader serves projected carts from Redis, falling back to Mongo.
type Reader struct {
	store CartStore
	cache CartCache
	sfg   singleflight.Group // collapses concurrent misses for one user
	log   *slog.Logger
}

func NewReader(store CartStore, cache CartCache, log *slog.Logger) *Reader {
	return &Reader{store: store, cache: cache, log: log}
}

// GetCart returns the user's projected cart, or an empty cart when none is projected.
func (r *Reader) GetCart(ctx context.Context, userID int64) (*domain.CartProjection, error) {
	v, err, _ := r.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		p, err := r.cache.Get(ctx, userID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.log.WarnContext(ctx, "cache get error", "user_id", userID, "error", err)
		}

		p, err = r.store.Get(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return &domain.CartProjection{UserID: userID, CartProduct: []domain.CartItem{}}, nil
		}
		if err != nil {
			return nil, err
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := r.cache.Set(setCtx, userID, p); err != nil {
			r.log.WarnContext(ctx, "cache set error", "user_id", userID, "error", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartProjection), nil
}
