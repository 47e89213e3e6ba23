package chartcache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "chart:alice:blitz:0:1"); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	png := []byte{0x89, 'P', 'N', 'G'}
	if err := c.Put(ctx, "chart:alice:blitz:0:1", png); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, "chart:alice:blitz:0:1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != string(png) {
		t.Fatalf("got %v", got)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	c.WithTTL(time.Minute)
	ctx := context.Background()

	if err := c.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expired entry still present: ok=%v err=%v", ok, err)
	}
}

func TestNewFromURL_Invalid(t *testing.T) {
	if _, err := NewFromURL("not-a-url"); err == nil {
		t.Fatal("expected an error for a bad redis url")
	}
}
