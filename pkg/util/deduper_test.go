package util

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduper(t *testing.T) (*Deduper, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewDeduper(rdb, time.Hour, nil), mini
}

func TestDeduper_AcquireOnce(t *testing.T) {
	d, mini := newTestDeduper(t)
	ctx := context.Background()

	if !d.AcquireOnce(ctx, "notify", "weekly:100") {
		t.Fatal("first acquire must succeed")
	}
	if d.AcquireOnce(ctx, "notify", "weekly:100") {
		t.Fatal("second acquire must be rejected")
	}
	if !d.AcquireOnce(ctx, "notify", "weekly:200") {
		t.Fatal("different id must succeed")
	}

	if ttl := mini.TTL(DedupKey("notify", "weekly:100")); ttl != time.Hour {
		t.Fatalf("expected 1h TTL, got %v", ttl)
	}
}

func TestDeduper_ExpiresAfterTTL(t *testing.T) {
	d, mini := newTestDeduper(t)
	ctx := context.Background()

	d.AcquireOnce(ctx, "notify", "k")
	mini.FastForward(2 * time.Hour)
	if !d.AcquireOnce(ctx, "notify", "k") {
		t.Fatal("expected acquire to succeed after TTL expiry")
	}
}

func TestDeduper_Release(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	d.AcquireOnce(ctx, "notify", "k")
	d.Release(ctx, "notify", "k")
	if !d.AcquireOnce(ctx, "notify", "k") {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestDeduper_RedisDownAllowsAction(t *testing.T) {
	d, mini := newTestDeduper(t)
	mini.Close()

	if !d.AcquireOnce(context.Background(), "notify", "k") {
		t.Fatal("expected fail-open behaviour when redis is down")
	}
}
