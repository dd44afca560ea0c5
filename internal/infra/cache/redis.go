// Package cache はカテゴリセールの有効割引マップを Redis に載せる。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	repo "storefront/internal/repository"
)

const keyPrefix = "storefront:category_offers:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CategoryOfferCache は CategoryOfferRepository のキャッシュ付きデコレータ。
// Redis の障害時は素通しで DB を読む
type CategoryOfferCache struct {
	next   repo.CategoryOfferRepository
	client redisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCategoryOfferCache(next repo.CategoryOfferRepository, client redisClient, ttl time.Duration, logger *zap.Logger) *CategoryOfferCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryOfferCache{next: next, client: client, ttl: ttl, logger: logger}
}

// 時刻を TTL 単位で丸めてキーにする。期間の切り替わりは最大 TTL 遅れる
func (c *CategoryOfferCache) key(now time.Time) string {
	return keyPrefix + strconv.FormatInt(now.Truncate(c.ttl).Unix(), 10)
}

func (c *CategoryOfferCache) ActiveDiscounts(ctx context.Context, now time.Time) (map[int64]int64, error) {
	key := c.key(now)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached map[int64]int64
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		c.logger.Warn("category offer cache corrupted", zap.String("key", key))
	case err != redis.Nil:
		c.logger.Warn("category offer cache read failed", zap.Error(err))
	}

	discounts, err := c.next.ActiveDiscounts(ctx, now)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(discounts)
	if err == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("category offer cache write failed", zap.Error(setErr))
		}
	}
	return discounts, nil
}

// TxManager に渡すデコレータ関数
func (c *CategoryOfferCache) Wrap(next repo.CategoryOfferRepository) repo.CategoryOfferRepository {
	return &CategoryOfferCache{next: next, client: c.client, ttl: c.ttl, logger: c.logger}
}
