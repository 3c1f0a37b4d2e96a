package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/inquest/internal/agent/core"
)

// Conn opens and pings a Redis client. A failed ping is fatal so that a
// misconfigured cache is caught at startup, not on first use.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// Cache decorates a core.LLMProvider with a Redis read-through cache keyed
// by prompt hash. Cache failures fall through to the underlying provider;
// they never fail a generation.
type Cache struct {
	inner  core.LLMProvider
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func Wrap(inner core.LLMProvider, rdb *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Cache{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cache) Generate(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(prompt)
	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil && cached != "" {
		return cached, nil
	} else if err != nil && err != redis.Nil {
		c.logger.Printf("cache read failed for %s: %v", key, err)
	}

	out, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, key, out, c.ttl).Err(); err != nil {
		c.logger.Printf("cache write failed for %s: %v", key, err)
	}
	return out, nil
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "llm:completion:" + hex.EncodeToString(sum[:])
}
