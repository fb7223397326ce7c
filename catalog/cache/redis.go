package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/bookrec/catalog"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bookrec:catalog:"

// Conn opens a Redis client and verifies it with PING.
func Conn(ctx context.Context, addr, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// Catalog is a read-through cache in front of a catalog.Client. Only
// successful lookups are cached; cache errors degrade to a direct lookup.
type Catalog struct {
	rdb    redis.UniversalClient
	next   catalog.Client
	ttl    time.Duration
	logger *log.Logger
}

// New wraps next with a Redis-backed cache.
func New(rdb redis.UniversalClient, next catalog.Client, ttl time.Duration) *Catalog {
	return &Catalog{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CATALOG-CACHE] ", log.LstdFlags),
	}
}

// Key returns the cache key for a term/limit pair.
func Key(term string, limit int) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(term), " "))))
	return fmt.Sprintf("%s%s:%d", keyPrefix, hex.EncodeToString(sum[:12]), limit)
}

func (c *Catalog) Search(ctx context.Context, term string, limit int, credential string) ([]models.BookCandidate, error) {
	key := Key(term, limit)
	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var books []models.BookCandidate
		if jerr := json.Unmarshal(val, &books); jerr == nil {
			return books, nil
		}
		c.logger.Printf("discarding corrupt entry %s", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Printf("get %s: %v", key, err)
	}

	books, err := c.next.Search(ctx, term, limit, credential)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(books); jerr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.logger.Printf("set %s: %v", key, serr)
		}
	}
	return books, nil
}
