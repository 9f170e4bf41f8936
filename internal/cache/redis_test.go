package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisScopeCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedisScopeCache("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create scope cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

var testScope = ordering.Scope{FolderID: "fld_1", OwnerID: "usr_1"}

func TestSetAndGetScope(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	items := []store.Item{
		{ID: "itm_a", FolderID: "fld_1", OwnerID: "usr_1", Body: "a", SeqNo: ordering.KeyOf(1)},
		{ID: "itm_b", FolderID: "fld_1", OwnerID: "usr_1", Body: "b", SeqNo: ordering.KeyOf(2)},
	}
	if err := c.Set(ctx, testScope, items); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Exists("scope:fld_1:usr_1") {
		t.Fatal("expected scope key in redis")
	}

	got, ok, err := c.Get(ctx, testScope)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[1].ID != "itm_b" || got[1].SeqNo == nil || *got[1].SeqNo != 2 {
		t.Errorf("unexpected cached scope: %+v", got)
	}
}

func TestGetMissingScope(t *testing.T) {
	c, _ := setupTestRedis(t, time.Minute)
	_, ok, err := c.Get(context.Background(), testScope)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected miss")
	}
}

func TestScopeExpires(t *testing.T) {
	c, s := setupTestRedis(t, 2*time.Second)
	ctx := context.Background()

	if err := c.Set(ctx, testScope, []store.Item{{ID: "itm_a"}}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.FastForward(3 * time.Second)

	if _, ok, _ := c.Get(ctx, testScope); ok {
		t.Error("expected scope to expire")
	}
}

func TestInvalidateScope(t *testing.T) {
	c, _ := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, testScope, []store.Item{{ID: "itm_a"}}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Invalidate(ctx, testScope); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, testScope); ok {
		t.Error("expected miss after invalidate")
	}
	if err := c.Invalidate(ctx, testScope); err != nil {
		t.Errorf("invalidating a missing scope should succeed: %v", err)
	}
}

func TestCorruptPayloadIsAMiss(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	if err := s.Set("scope:fld_1:usr_1", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, ok, err := c.Get(context.Background(), testScope)
	if err != nil || ok {
		t.Errorf("expected silent miss, got ok=%v err=%v", ok, err)
	}
}

func TestTTLIsBounded(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultScopeTTL},
		{-time.Second, DefaultScopeTTL},
		{5 * time.Second, 5 * time.Second},
		{24 * time.Hour, MaxScopeTTL},
	}
	for _, tc := range cases {
		if got := BoundTTL(tc.in); got != tc.want {
			t.Errorf("BoundTTL(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	c, s := setupTestRedis(t, 24*time.Hour)
	if err := c.Set(context.Background(), testScope, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := s.TTL("scope:fld_1:usr_1"); ttl != MaxScopeTTL {
		t.Errorf("expected ttl %v, got %v", MaxScopeTTL, ttl)
	}
}

func TestNopNeverHits(t *testing.T) {
	var c ScopeCache = Nop{}
	ctx := context.Background()
	if err := c.Set(ctx, testScope, []store.Item{{ID: "itm_a"}}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, err := c.Get(ctx, testScope); ok || err != nil {
		t.Errorf("expected miss, got ok=%v err=%v", ok, err)
	}
}
