package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopstream/recommendation-service/internal/domain/providers"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
)

const (
	defaultRemoteGetTimeout   = 2 * time.Second
	defaultRemoteMGetTimeout  = 3 * time.Second
	defaultRemoteWriteTimeout = 1 * time.Second

	// Remote hits are mirrored into the local tier for this long; the
	// remote TTL is not recoverable from a plain GET.
	localMirrorTTL = 5 * time.Minute
)

// TieredCacheConfig bounds the remote-tier deadlines
type TieredCacheConfig struct {
	RemoteGetTimeout   time.Duration
	RemoteMGetTimeout  time.Duration
	RemoteWriteTimeout time.Duration
}

// TieredCache is the single cache API used by the serving pipeline. Reads
// check the process-local tier first and fall through to the distributed
// tier under a bounded deadline. Distributed-tier failures always degrade to
// a miss; they are never surfaced to the caller.
type TieredCache struct {
	local   *LocalCache
	remote  providers.CacheProvider // nil = local-only
	metrics *observability.Metrics  // nil = no recording

	remoteGetTimeout   time.Duration
	remoteMGetTimeout  time.Duration
	remoteWriteTimeout time.Duration
}

// NewTieredCache composes the local tier with an optional distributed tier.
// A nil remote provider degrades the cache to local-only.
func NewTieredCache(local *LocalCache, remote providers.CacheProvider, metrics *observability.Metrics, cfg TieredCacheConfig) *TieredCache {
	if cfg.RemoteGetTimeout <= 0 {
		cfg.RemoteGetTimeout = defaultRemoteGetTimeout
	}
	if cfg.RemoteMGetTimeout <= 0 {
		cfg.RemoteMGetTimeout = defaultRemoteMGetTimeout
	}
	if cfg.RemoteWriteTimeout <= 0 {
		cfg.RemoteWriteTimeout = defaultRemoteWriteTimeout
	}

	return &TieredCache{
		local:              local,
		remote:             remote,
		metrics:            metrics,
		remoteGetTimeout:   cfg.RemoteGetTimeout,
		remoteMGetTimeout:  cfg.RemoteMGetTimeout,
		remoteWriteTimeout: cfg.RemoteWriteTimeout,
	}
}

// Get returns the cached value for key, or absent. Remote hits populate the
// local tier before returning.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.local.Get(key); ok {
		c.recordHit(ctx, key)
		return value, true
	}

	if c.remote == nil {
		c.recordMiss(ctx, key)
		return nil, false
	}

	remoteCtx, cancel := context.WithTimeout(ctx, c.remoteGetTimeout)
	defer cancel()

	value, err := c.remote.Get(remoteCtx, key)
	if err != nil {
		c.recordMiss(ctx, key)
		return nil, false
	}

	c.local.Set(key, value, localMirrorTTL)
	c.recordHit(ctx, key)
	return value, true
}

// Set writes to the local tier synchronously and to the distributed tier
// best-effort in the background. The caller never waits on or fails from the
// remote write.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.local.Set(key, value, ttl)

	if c.remote == nil {
		return
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), c.remoteWriteTimeout)
		defer cancel()
		if err := c.remote.Set(writeCtx, key, value, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("distributed cache write failed")
		}
	}()
}

// SetMulti writes a group of entries to the local tier synchronously and
// flushes them to the distributed tier in a single background pipelined
// round trip. Like Set, the caller never waits on the remote write.
func (c *TieredCache) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) {
	for key, value := range items {
		c.local.Set(key, value, ttl)
	}

	if c.remote == nil || len(items) == 0 {
		return
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), c.remoteWriteTimeout)
		defer cancel()
		if err := c.remote.SetMulti(writeCtx, items, ttl); err != nil {
			log.Warn().Err(err).Int("keys", len(items)).Msg("distributed cache batch write failed")
		}
	}()
}

// GetMulti resolves keys against the local tier, then issues one batched
// remote read for the remainder under a shared deadline. A failed batch read
// resolves every remaining key to absent.
func (c *TieredCache) GetMulti(ctx context.Context, keys []string) map[string][]byte {
	found := make(map[string][]byte, len(keys))
	remaining := make([]string, 0, len(keys))

	for _, key := range keys {
		if value, ok := c.local.Get(key); ok {
			found[key] = value
			c.recordHit(ctx, key)
			continue
		}
		remaining = append(remaining, key)
	}

	if c.remote == nil || len(remaining) == 0 {
		for _, key := range remaining {
			c.recordMiss(ctx, key)
		}
		return found
	}

	remoteCtx, cancel := context.WithTimeout(ctx, c.remoteMGetTimeout)
	defer cancel()

	remoteFound, err := c.remote.GetMulti(remoteCtx, remaining)
	if err != nil {
		log.Warn().Err(err).Int("keys", len(remaining)).Msg("distributed cache batch read failed")
		for _, key := range remaining {
			c.recordMiss(ctx, key)
		}
		return found
	}

	for _, key := range remaining {
		value, ok := remoteFound[key]
		if !ok {
			c.recordMiss(ctx, key)
			continue
		}
		c.local.Set(key, value, localMirrorTTL)
		found[key] = value
		c.recordHit(ctx, key)
	}

	return found
}

// Invalidate removes keys from the local tier immediately and issues a
// best-effort remote delete. Remote failures are logged, not surfaced.
func (c *TieredCache) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.local.Delete(key)
	}

	if c.remote == nil || len(keys) == 0 {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, c.remoteWriteTimeout)
	defer cancel()

	if err := c.remote.Delete(deleteCtx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("distributed cache invalidation failed")
	}
}

// LocalLen returns the local tier's current entry count
func (c *TieredCache) LocalLen() int {
	return c.local.Len()
}

// LocalCapacity returns the local tier's configured capacity
func (c *TieredCache) LocalCapacity() int {
	return c.local.Capacity()
}

// RemoteConfigured reports whether a distributed tier is attached
func (c *TieredCache) RemoteConfigured() bool {
	return c.remote != nil
}

func (c *TieredCache) recordHit(ctx context.Context, key string) {
	if c.metrics != nil {
		observability.RecordCacheHit(ctx, c.metrics, key)
	}
}

func (c *TieredCache) recordMiss(ctx context.Context, key string) {
	if c.metrics != nil {
		observability.RecordCacheMiss(ctx, c.metrics, key)
	}
}
