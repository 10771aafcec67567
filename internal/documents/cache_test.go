package documents

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T, ttl time.Duration) (*RenderCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRenderCache(client, ttl), mr
}

func TestRenderCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(t, time.Minute)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "41:W/\"abc\""); ok {
		t.Fatalf("empty cache should miss")
	}

	cache.Set(ctx, "41:W/\"abc\"", "<html>doc</html>")
	html, ok := cache.Get(ctx, "41:W/\"abc\"")
	if !ok {
		t.Fatalf("expected a hit after Set")
	}
	if html != "<html>doc</html>" {
		t.Fatalf("cached html = %q", html)
	}

	// A changed validator is a different key; stale entries just age out.
	if _, ok := cache.Get(ctx, "41:W/\"def\""); ok {
		t.Fatalf("new validator should miss")
	}
}

func TestRenderCacheExpiry(t *testing.T) {
	cache, mr := testCache(t, time.Second)
	ctx := context.Background()

	cache.Set(ctx, "41:v1", "doc")
	mr.FastForward(2 * time.Second)

	if _, ok := cache.Get(ctx, "41:v1"); ok {
		t.Fatalf("entry should expire after its TTL")
	}
}

func TestRenderCacheNilSafe(t *testing.T) {
	var cache *RenderCache
	ctx := context.Background()

	cache.Set(ctx, "41:v1", "doc")
	if _, ok := cache.Get(ctx, "41:v1"); ok {
		t.Fatalf("nil cache never hits")
	}

	if NewRenderCache(nil, time.Minute) != nil {
		t.Fatalf("nil client should disable the cache")
	}
}
