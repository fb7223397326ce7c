package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/bookrec/catalog"
	"github.com/mohammad-safakhou/bookrec/catalog/cache"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type countingCatalog struct {
	calls int
	books []models.BookCandidate
	err   error
}

func (c *countingCatalog) Search(ctx context.Context, term string, limit int, credential string) ([]models.BookCandidate, error) {
	c.calls++
	if c.err != nil {
		return nil, &catalog.LookupFailure{Term: term, Err: c.err}
	}
	return c.books, nil
}

func TestRedisCacheReadThrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	rdb, err := cache.Conn(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0, 5*time.Second)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer rdb.Close()

	rating := 4.2
	upstream := &countingCatalog{books: []models.BookCandidate{{ID: "v1", Title: "It", Authors: []string{"Stephen King"}, AverageRating: &rating}}}
	c := cache.New(rdb, upstream, time.Minute)

	for i := 0; i < 2; i++ {
		books, err := c.Search(ctx, "horror", 10, "k")
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if len(books) != 1 || books[0].ID != "v1" || books[0].AverageRating == nil || *books[0].AverageRating != 4.2 {
			t.Fatalf("unexpected books %+v", books)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", upstream.calls)
	}

	failing := &countingCatalog{err: errors.New("down")}
	fc := cache.New(rdb, failing, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := fc.Search(ctx, "never cached", 10, "k"); err == nil {
			t.Fatalf("expected failure to propagate")
		}
	}
	if failing.calls != 2 {
		t.Fatalf("failures must not be cached, got %d upstream calls", failing.calls)
	}
}
