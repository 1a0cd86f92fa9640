// Package cache stores rendered profile link lists so public pages do not hit
// the database on every view.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

const (
	keyPrefix = "profile:links:"
	genPrefix = "profile:gen:"
)

// RedisProfileCache keeps one JSON entry per owner scope. A per-scope
// generation counter is bumped on every invalidation; an entry is only
// written while the generation is still the one read before loading it.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(redisURL string, ttl time.Duration) (*RedisProfileCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}

	return NewRedisProfileCacheWithClient(client, ttl), nil
}

func NewRedisProfileCacheWithClient(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) key(scope string) string {
	return keyPrefix + scope
}

func (c *RedisProfileCache) genKey(scope string) string {
	return genPrefix + scope
}

// Version returns the current generation of scope, zero if never invalidated
func (c *RedisProfileCache) Version(ctx context.Context, scope string) (int64, error) {
	v, err := c.client.Get(ctx, c.genKey(scope)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "get cache generation")
	}
	return v, nil
}

// GetLinks returns the cached links of scope; ok is false on a miss
func (c *RedisProfileCache) GetLinks(ctx context.Context, scope string) ([]domain.Link, bool, error) {
	data, err := c.client.Get(ctx, c.key(scope)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get cached links")
	}

	var links []domain.Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, false, errors.Wrap(err, "decode cached links")
	}
	return links, true, nil
}

// SetLinks stores links for scope if its generation still equals version.
// A list loaded before a concurrent invalidation is silently dropped.
func (c *RedisProfileCache) SetLinks(ctx context.Context, scope string, version int64, links []domain.Link) error {
	if links == nil {
		links = []domain.Link{}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return errors.Wrap(err, "encode links")
	}

	gen := c.genKey(scope)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, gen).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(scope), data, c.ttl)
			return nil
		})
		return err
	}, gen)
	if err == redis.TxFailedErr {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "cache links")
	}
	return nil
}

func (c *RedisProfileCache) InvalidateScope(ctx context.Context, scope string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(scope))
		pipe.Del(ctx, c.key(scope))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "invalidate cached links")
	}
	return nil
}

func (c *RedisProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}

// NopCache is used when no Redis is configured; every lookup misses
type NopCache struct{}

func (NopCache) GetLinks(context.Context, string) ([]domain.Link, bool, error) { return nil, false, nil }
func (NopCache) Version(context.Context, string) (int64, error)                { return 0, nil }
func (NopCache) SetLinks(context.Context, string, int64, []domain.Link) error  { return nil }
func (NopCache) InvalidateScope(context.Context, string) error                 { return nil }

var (
	_ ports.ProfileCache = (*RedisProfileCache)(nil)
	_ ports.ProfileCache = NopCache{}
)
