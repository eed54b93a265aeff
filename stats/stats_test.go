package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisStore(client, "test:stats:"), mr
}

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Total != 0 {
		t.Errorf("fresh store total = %d, want 0", snap.Total)
	}

	chats := []int64{-100123, -100123, 456, -100123}
	for _, chatID := range chats {
		if err := store.Incr(ctx, chatID); err != nil {
			t.Fatalf("Incr(%d) error = %v", chatID, err)
		}
	}

	snap, err = store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Total != 4 {
		t.Errorf("total = %d, want 4", snap.Total)
	}
	if snap.PerChat[-100123] != 3 {
		t.Errorf("per-chat count for -100123 = %d, want 3", snap.PerChat[-100123])
	}
	if snap.PerChat[456] != 1 {
		t.Errorf("per-chat count for 456 = %d, want 1", snap.PerChat[456])
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	testStore(t, store)
}

func TestRedisStore(t *testing.T) {
	store, mr := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	testStore(t, store)
}

func TestRedisStore_FromURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedisStoreFromURL("redis://"+mr.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisStoreFromURL() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Incr(ctx, 42); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}

	// Empty prefix falls back to the default key namespace.
	if got, err := mr.Get("linktrim:stats:total"); err != nil || got != "1" {
		t.Errorf("total key = %q (err %v), want \"1\"", got, err)
	}

	if _, err := NewRedisStoreFromURL("://not-a-url", ""); err == nil {
		t.Error("NewRedisStoreFromURL() expected error for invalid URL")
	}
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Incr(ctx, 42)
		}()
	}
	wg.Wait()

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Total != 50 {
		t.Errorf("total = %d, want 50", snap.Total)
	}
	if snap.PerChat[42] != 50 {
		t.Errorf("per-chat count = %d, want 50", snap.PerChat[42])
	}
}

func TestMemoryStore_SnapshotIsACopy(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	store.Incr(ctx, 1)

	snap, _ := store.Snapshot(ctx)
	snap.PerChat[1] = 999

	again, _ := store.Snapshot(ctx)
	if again.PerChat[1] != 1 {
		t.Errorf("snapshot mutation leaked into store: got %d, want 1", again.PerChat[1])
	}
}
