// README: Redis cache for optimisation results keyed by order, params and model version.
package bidding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"farebid/internal/modules/feature"
)

const cachePrefix = "farebid:optimize:"

type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, res Result) error
}

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Result, bool, error) {
	raw, err := c.rdb.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, false, err
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, res Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cachePrefix+key, raw, c.ttl).Err()
}

// CacheKey hashes everything that determines a result.
func CacheKey(modelVersion string, order feature.OrderRecord, params Params) (string, error) {
	raw, err := json.Marshal(struct {
		Model  string              `json:"model"`
		Order  feature.OrderRecord `json:"order"`
		Params Params              `json:"params"`
	}{modelVersion, order, params})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
