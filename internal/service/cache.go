package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/util"

	"go.uber.org/zap"
)

// Cache is the key/value store behind the product cache. Invalidate bumps
// the version of each key and SetJSONIfVersion refuses fills that started
// before the bump.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	Version(ctx context.Context, key string) (int64, error)
	SetJSONIfVersion(ctx context.Context, key string, version int64, value interface{}, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// noFill marks a lookup whose result must not be written back
const noFill = -1

// ProductCache caches product responses. A nil *ProductCache is valid and
// caches nothing. Cache failures are logged and never fail a request.
type ProductCache struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewProductCache creates a product cache on top of cache
func NewProductCache(cache Cache, ttl time.Duration) *ProductCache {
	return &ProductCache{cache: cache, ttl: ttl, logger: util.GetLogger()}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// get looks a product up. On a miss it returns the version a later set
// must present, read before the caller loads the product from the store.
func (c *ProductCache) get(ctx context.Context, id int64) (*ProductResponse, int64, bool) {
	if c == nil {
		return nil, noFill, false
	}

	key := productKey(id)
	version, err := c.cache.Version(ctx, key)
	if err != nil {
		c.logger.Warn("Product cache version read failed", zap.Int64("product_id", id), zap.Error(err))
		util.ProductCacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, noFill, false
	}

	var resp ProductResponse
	found, err := c.cache.GetJSON(ctx, key, &resp)
	if err != nil {
		c.logger.Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
		util.ProductCacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, noFill, false
	}
	if !found {
		util.ProductCacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, version, false
	}
	util.ProductCacheRequestsTotal.WithLabelValues("hit").Inc()
	return &resp, version, true
}

func (c *ProductCache) set(ctx context.Context, resp *ProductResponse, version int64) {
	if c == nil || version == noFill {
		return
	}
	stored, err := c.cache.SetJSONIfVersion(ctx, productKey(resp.ID), version, resp, c.ttl)
	if err != nil {
		c.logger.Warn("Product cache write failed", zap.Int64("product_id", resp.ID), zap.Error(err))
		return
	}
	if !stored {
		c.logger.Debug("Product cache fill skipped after invalidation", zap.Int64("product_id", resp.ID))
	}
}

func (c *ProductCache) invalidate(ctx context.Context, ids ...int64) {
	if c == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := c.cache.Invalidate(ctx, keys...); err != nil {
		c.logger.Warn("Product cache invalidation failed", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}
