// Package fetch provides the cached remote-retrieval layer for the pipeline.
//
// Every remote call goes through GetOrFetch: if an artifact already exists
// for the key it is returned unchanged and no remote call is issued. There
// is no TTL and no checksum invalidation; delete the artifact to refetch.
package fetch

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	apperrors "uitf-catalog/internal/errors"
)

// Cache is a key-addressed artifact store with pluggable backends.
type Cache interface {
	// Get returns the artifact for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores the artifact for key. The write must be atomic or
	// exclusive per key so a concurrent second run never reads a
	// partial artifact.
	Put(ctx context.Context, key string, data []byte) error
	// Has reports whether an artifact exists for key.
	Has(ctx context.Context, key string) bool
}

// keyFile maps an arbitrary key to a stable filename.
func keyFile(key string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(key)))
}

// DiskCache stores one file per key under a base directory.
type DiskCache struct {
	dir string
}

// NewDiskCache creates a disk cache rooted at dir.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, keyFile(key))
}

// Get returns the cached artifact for key.
func (c *DiskCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, apperrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache artifact: %w", err)
	}
	return data, nil
}

// Put writes the artifact to a temp file and renames it into place, so a
// concurrent reader sees either nothing or the complete artifact.
func (c *DiskCache) Put(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, keyFile(key)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

// Has reports whether an artifact exists for key.
func (c *DiskCache) Has(ctx context.Context, key string) bool {
	_, err := os.Stat(c.path(key))
	return err == nil
}

// MemoryCache is an in-process cache, used in tests and as a building block.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

// Get returns the cached artifact for key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores the artifact for key.
func (c *MemoryCache) Put(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	c.data[key] = stored
	return nil
}

// Has reports whether an artifact exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok
}

// RedisCache stores artifacts in redis, for runs that share a cache across
// machines. Values are persisted without expiry to keep the same
// skip-if-exists policy as the disk backend.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a redis-backed cache.
func NewRedisCache(addr, prefix string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (c *RedisCache) redisKey(key string) string {
	return c.prefix + ":" + keyFile(key)
}

// Get returns the cached artifact for key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading redis artifact: %w", err)
	}
	return data, nil
}

// Put stores the artifact for key. Redis SET is atomic per key.
func (c *RedisCache) Put(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, c.redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("writing redis artifact: %w", err)
	}
	return nil
}

// Has reports whether an artifact exists for key.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, c.redisKey(key)).Result()
	return err == nil && n > 0
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
