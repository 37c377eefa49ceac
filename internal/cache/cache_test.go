package cache

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	session := "session-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, session, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, session, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, session, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, session, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, session, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, session, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, session, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, session, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, session, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, session, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, session, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, session, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, session, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, session, "d", []byte("4"), time.Minute)

		val, _ := smallCache.Get(ctx, session, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		val, _ = smallCache.Get(ctx, session, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "session-a", "shared-key", []byte("a-value"), time.Minute)
		_ = cache.Set(ctx, "session-b", "shared-key", []byte("b-value"), time.Minute)

		valA, _ := cache.Get(ctx, "session-a", "shared-key")
		valB, _ := cache.Get(ctx, "session-b", "shared-key")

		if string(valA) != "a-value" {
			t.Errorf("expected 'a-value', got '%s'", string(valA))
		}
		if string(valB) != "b-value" {
			t.Errorf("expected 'b-value', got '%s'", string(valB))
		}
	})

	t.Run("RequiresNamespace", func(t *testing.T) {
		if err := cache.Set(ctx, "", "key", []byte("value"), time.Minute); err == nil {
			t.Error("expected error for empty namespace")
		}
		if _, err := cache.Get(ctx, "", "key"); err == nil {
			t.Error("expected error for empty namespace")
		}
		if _, err := cache.IndexMembers(ctx, "", "idx"); err == nil {
			t.Error("expected error for empty namespace")
		}
	})

	t.Run("Index", func(t *testing.T) {
		_ = cache.IndexAdd(ctx, session, "idx", "old", 1, time.Minute)
		_ = cache.IndexAdd(ctx, session, "idx", "new", 3, time.Minute)
		_ = cache.IndexAdd(ctx, session, "idx", "mid", 2, time.Minute)

		members, err := cache.IndexMembers(ctx, session, "idx")
		if err != nil {
			t.Fatalf("IndexMembers failed: %v", err)
		}
		if !slices.Equal(members, []string{"new", "mid", "old"}) {
			t.Errorf("expected highest score first, got %v", members)
		}

		_ = cache.IndexRemove(ctx, session, "idx", "mid")
		members, _ = cache.IndexMembers(ctx, session, "idx")
		if !slices.Equal(members, []string{"new", "old"}) {
			t.Errorf("expected mid removed, got %v", members)
		}
	})

	t.Run("IndexExpiration", func(t *testing.T) {
		_ = cache.IndexAdd(ctx, session, "short", "m", 1, 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)

		members, _ := cache.IndexMembers(ctx, session, "short")
		if len(members) != 0 {
			t.Errorf("expected expired index to be empty, got %v", members)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, session, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, session, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, session, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		val, _ := testCache.Get(ctx, session, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
		if _, ok := cache.(Index); !ok {
			t.Error("expected LRUCache to implement Index")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.CacheConfig{Type: "memcached"})
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
