package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/shifthub/internal/redisclient"
)

func TestMemoryGetSetExpire(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get = %q %v %v", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryDeleteAndZeroTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if err := c.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, ok, _ := c.Get(ctx, k); ok {
			t.Fatalf("key %q should be absent", k)
		}
	}
}

func TestMemorySetCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cached value mutated: %q", got)
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis cache test")
	}

	ctx := context.Background()
	client := redisclient.New(redisclient.Config{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	c := NewRedis(client, "shifthub:test:")
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get = %q %v %v", got, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected key deleted")
	}
}
