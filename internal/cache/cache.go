// Package cache memoizes plugin results in Redis. Identical
// invocations (same plugin id, same input) within the TTL return the
// stored output without re-executing the plugin. Failed executions are
// never cached.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/libreassistant/libreassistant/internal/plugin"
)

const keyPrefix = "la:plugin:"

// Cache stores plugin outputs keyed by plugin id plus a digest of the
// canonicalized input.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the Redis server at addr. The connection is verified
// with a ping so a misconfigured cache fails at startup, not on the
// first request.
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key derives the cache key for one invocation. Input maps marshal
// with sorted keys, so logically equal inputs share a key.
func Key(pluginID string, input map[string]any) string {
	raw, err := json.Marshal(input)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", input))
	}
	sum := sha256.Sum256(raw)
	return keyPrefix + pluginID + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached output for the invocation, or ok=false on a
// miss. Redis errors degrade to a miss.
func (c *Cache) Get(ctx context.Context, pluginID string, input map[string]any) (any, bool) {
	raw, err := c.client.Get(ctx, Key(pluginID, input)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("cache: get %s: %v", pluginID, err)
		return nil, false
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Put stores the output for the invocation with the configured TTL.
// Unserializable outputs and Redis errors are logged and skipped.
func (c *Cache) Put(ctx context.Context, pluginID string, input map[string]any, output any) {
	raw, err := json.Marshal(output)
	if err != nil {
		log.Printf("cache: marshal output of %s: %v", pluginID, err)
		return
	}
	if err := c.client.Set(ctx, Key(pluginID, input), raw, c.ttl).Err(); err != nil {
		log.Printf("cache: set %s: %v", pluginID, err)
	}
}

// Wrap returns a plugin that consults the cache before executing p and
// stores successful outputs afterwards.
func (c *Cache) Wrap(pluginID string, p plugin.Plugin) plugin.Plugin {
	return plugin.Func(func(ctx context.Context, input map[string]any) (any, error) {
		if out, ok := c.Get(ctx, pluginID, input); ok {
			return out, nil
		}
		out, err := p.Execute(ctx, input)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, pluginID, input, out)
		return out, nil
	})
}
