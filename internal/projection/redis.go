package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// setIfNotNewer writes the entry unless the cached one carries a newer version,
// so a slow reader cannot put back a projection the projector already superseded.
var setIfNotNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'cart', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisCache holds serialized projections in front of Mongo, versioned by
// the cart's last modification time.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 5 * time.Minute
	}
	return &RedisCache{client: client, baseTTL: baseTTL}
}

func (r *RedisCache) Get(ctx context.Context, userID int64) (*domain.CartProjection, error) {
	data, err := r.client.HGet(ctx, cacheKey(userID), "cart").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p domain.CartProjection
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &p, nil
}

// Set stores p unless the cache already holds a newer projection for the user.
func (r *RedisCache) Set(ctx context.Context, userID int64, p *domain.CartProjection) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter keeps entries written together from expiring together
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/5) + 1))
	ttl := r.baseTTL + jitter
	err = setIfNotNewer.Run(ctx, r.client, []string{cacheKey(userID)},
		p.UpdatedAt.UnixMicro(), data, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}
