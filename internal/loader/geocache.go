package loader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// GeoCache is a normalized-name -> node_id lookup for the City/State/County/
// ZipCode nodes a geography-aware loader resolves against repeatedly. It
// mirrors the Python loaders' in-process geo_cache dict, preferring a
// Redis-backed hash (shared across worker processes, so one worker's city
// insert is immediately visible to another) and falling back to a local map
// when constructed with a nil Redis client.
type GeoCache struct {
	redis *redis.Client
	mu    sync.RWMutex
	local map[string]string // "type:normalized_name" -> node_id, used when redis is nil
}

// NewGeoCache wraps an optional Redis client. A nil rdb runs entirely
// in-process.
func NewGeoCache(rdb *redis.Client) *GeoCache {
	return &GeoCache{redis: rdb, local: make(map[string]string)}
}

func normalizeGeoName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func geoCacheHashKey(nodeType string) string {
	return "geocache:" + nodeType
}

// Lookup returns the cached node_id for (nodeType, name), if present. A
// cache miss is not an error — callers fall back to the database's own
// propose-fact lookup/creation, matching the Python loader's
// `_get_or_create_city` semantics.
func (g *GeoCache) Lookup(ctx context.Context, nodeType, name string) (nodeID string, ok bool, err error) {
	normalized := normalizeGeoName(name)
	if normalized == "" {
		return "", false, nil
	}

	if g.redis != nil {
		val, err := g.redis.HGet(ctx, geoCacheHashKey(nodeType), normalized).Result()
		if err == redis.Nil {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("op=loader.geocache.lookup: %w", err)
		}
		return val, true, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.local[nodeType+":"+normalized]
	return id, ok, nil
}

// Store records the node_id a propose-fact call resolved or created for
// (nodeType, name), so later records in the same run hit the cache instead
// of round-tripping through the store again.
func (g *GeoCache) Store(ctx context.Context, nodeType, name, nodeID string) error {
	normalized := normalizeGeoName(name)
	if normalized == "" {
		return nil
	}

	if g.redis != nil {
		if err := g.redis.HSet(ctx, geoCacheHashKey(nodeType), normalized, nodeID).Err(); err != nil {
			return fmt.Errorf("op=loader.geocache.store: %w", err)
		}
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.local[nodeType+":"+normalized] = nodeID
	return nil
}

// Size reports how many entries are cached for nodeType. Redis-backed
// caches report the hash length; the in-process fallback counts its own
// keys.
func (g *GeoCache) Size(ctx context.Context, nodeType string) (int, error) {
	if g.redis != nil {
		n, err := g.redis.HLen(ctx, geoCacheHashKey(nodeType)).Result()
		if err != nil {
			return 0, fmt.Errorf("op=loader.geocache.size: %w", err)
		}
		return int(n), nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	prefix := nodeType + ":"
	n := 0
	for k := range g.local {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}
