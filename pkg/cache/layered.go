package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a process-local memory layer in front of a shared remote
// layer. Locks always go to the remote layer so they hold across replicas.
type LayeredCache struct {
	local  *MemoryCache
	remote Service
	l1TTL  time.Duration
}

// NewLayeredCache puts a memory cache of the given size in front of remote.
func NewLayeredCache(remote Service, memorySize int, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(memorySize)),
		remote: remote,
		l1TTL:  l1TTL,
	}
}

func (lc *LayeredCache) localTTL(expiration time.Duration) time.Duration {
	if lc.l1TTL > 0 && (expiration <= 0 || lc.l1TTL < expiration) {
		return lc.l1TTL
	}
	return expiration
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.remote.Set(ctx, key, data, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, data, lc.localTTL(expiration))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}

	var data []byte
	if err := lc.remote.Get(ctx, key, &data); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, data, lc.localTTL(0))
	return decode(data, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	encoded := make(map[string]interface{}, len(values))
	for k, v := range values {
		data, err := encode(v)
		if err != nil {
			return err
		}
		encoded[k] = data
	}
	if err := lc.remote.MSet(ctx, encoded, expiration); err != nil {
		return err
	}
	return lc.local.MSet(ctx, encoded, lc.localTTL(expiration))
}

func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out, _ := lc.local.MGet(ctx, keys...)
	missing := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	remote, err := lc.remote.MGet(ctx, missing...)
	if err != nil {
		return nil, err
	}
	for k, v := range remote {
		out[k] = v
		_ = lc.local.Set(ctx, k, v, lc.localTTL(0))
	}
	return out, nil
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}
