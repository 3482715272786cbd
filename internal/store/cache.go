package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

const (
	listCachePrefix = "bowlhouse:products:v"
	cacheVersionKey = "bowlhouse:products:version"

	cacheWriteTimeout = 2 * time.Second
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_cache_lookups_total",
	Help: "Product list cache lookups by result (hit, miss, error)",
}, []string{"result"})

// Backend is the catalog the cache sits in front of.
type Backend interface {
	BulkCreateProducts(ctx context.Context, products []catalog.Product) (int, error)
	ListProducts(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error)
}

// RedisClient is the subset of *redis.Client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Cache keeps product listings in Redis. Writes bump a version counter so
// every cached listing goes stale at once; Redis failures fall through to
// the backend.
type Cache struct {
	next  Backend
	redis RedisClient
	ttl   time.Duration
	group singleflight.Group
}

// NewCache wraps next with a Redis listing cache.
func NewCache(next Backend, client RedisClient, ttl time.Duration) *Cache {
	return &Cache{next: next, redis: client, ttl: ttl}
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ListProducts serves from Redis when possible. Concurrent misses for the
// same key share a single backend query.
func (c *Cache) ListProducts(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error) {
	version, err := c.version(ctx)
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		slog.Warn("product cache unavailable", "error", err)
		return c.next.ListProducts(ctx, opts)
	}

	key := listKey(version, opts)
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var products []catalog.Product
		if jsonErr := json.Unmarshal(data, &products); jsonErr == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return products, nil
		}
		slog.Warn("discarding unreadable cached product list", "key", key)
	case !errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("error").Inc()
		slog.Warn("product cache read failed", "key", key, "error", err)
		return c.next.ListProducts(ctx, opts)
	}

	cacheLookups.WithLabelValues("miss").Inc()
	v, err, _ := c.group.Do(key, func() (any, error) {
		products, err := c.next.ListProducts(ctx, opts)
		if err != nil {
			return nil, err
		}
		products = withRecipes(products)
		c.store(key, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]catalog.Product), nil
}

// BulkCreateProducts writes through to the backend and invalidates cached
// listings when anything was stored.
func (c *Cache) BulkCreateProducts(ctx context.Context, products []catalog.Product) (int, error) {
	n, err := c.next.BulkCreateProducts(ctx, products)
	if n > 0 {
		c.Invalidate(ctx)
	}
	return n, err
}

// Invalidate bumps the cache version.
func (c *Cache) Invalidate(ctx context.Context) {
	ver, err := c.redis.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		slog.Error("failed to invalidate product cache", "error", err)
		return
	}
	slog.Debug("product cache invalidated", "version", ver)
}

// version reads the current version, creating it on first use.
func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.redis.Get(ctx, cacheVersionKey).Int64()
	if err == nil {
		return ver, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if err := c.redis.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (c *Cache) store(key string, products []catalog.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		slog.Warn("failed to encode product list for cache", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("failed to cache product list", "key", key, "error", err)
	}
}

// withRecipes gives every product a non-nil recipe, matching what a cached
// listing decodes to.
func withRecipes(products []catalog.Product) []catalog.Product {
	for i := range products {
		if products[i].Recipe == nil {
			products[i].Recipe = []catalog.RecipeItem{}
		}
	}
	return products
}

func listKey(version int64, opts catalog.ListOptions) string {
	scope := "active"
	if opts.IncludeInactive {
		scope = "all"
	}
	return fmt.Sprintf("%s%d:%s", listCachePrefix, version, scope)
}
