package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func pcm(n int, fill byte) Entry {
	return Entry{PCM: bytes.Repeat([]byte{fill}, n), SampleRate: 24000}
}

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	key := Key([]byte("encoded"))
	if err := cache.Put(key, pcm(10, 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if got.SampleRate != 24000 || len(got.PCM) != 10 {
		t.Errorf("Retrieved entry mismatch: %+v", got)
	}

	if !cache.Contains(key) {
		t.Error("Contains returned false for existing key")
	}
	if cache.Size() != 10 {
		t.Errorf("Size mismatch: got %d, want 10", cache.Size())
	}

	cache.Delete(key)
	if cache.Contains(key) {
		t.Error("Key still exists after delete")
	}
	if cache.Size() != 0 {
		t.Errorf("Size not zero after delete: %d", cache.Size())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(100)

	for i := 0; i < 5; i++ {
		if err := cache.Put(fmt.Sprintf("key-%d", i), pcm(20, byte(i))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	cache.Get("key-0")
	cache.Get("key-1")

	if err := cache.Put("key-new", pcm(30, 9)); err != nil {
		t.Fatalf("Put failed for new key: %v", err)
	}

	// key-2 and key-3 are the least recently used and must go to fit 30 bytes
	for _, key := range []string{"key-2", "key-3"} {
		if cache.Contains(key) {
			t.Errorf("%s should have been evicted", key)
		}
	}
	for _, key := range []string{"key-0", "key-1", "key-4", "key-new"} {
		if !cache.Contains(key) {
			t.Errorf("%s should not have been evicted", key)
		}
	}
	if cache.Stats().Evictions != 2 {
		t.Errorf("Expected 2 evictions, got %d", cache.Stats().Evictions)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	cache := NewMemoryCache(100)
	if err := cache.Put("large", pcm(200, 0)); err != ErrItemTooLarge {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	cache := NewMemoryCache(1024)

	cache.Put("key", pcm(8, 1))
	cache.Put("key", pcm(16, 2))

	got, ok := cache.Get("key")
	if !ok {
		t.Fatal("Key not found after update")
	}
	if len(got.PCM) != 16 || got.PCM[0] != 2 {
		t.Errorf("Value not updated: %v", got.PCM)
	}
	if cache.Size() != 16 {
		t.Errorf("Size mismatch after update: got %d, want 16", cache.Size())
	}
}

func TestMemoryCache_ClearAndResize(t *testing.T) {
	cache := NewMemoryCache(1024)
	for i := 0; i < 4; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), pcm(100, byte(i)))
	}

	cache.Resize(250)
	if cache.Size() > 250 {
		t.Errorf("Size %d exceeds resized capacity", cache.Size())
	}
	if !cache.Contains("key-3") {
		t.Error("Most recent key should survive resize")
	}

	cache.Clear()
	if cache.Size() != 0 || cache.Stats().ItemCount != 0 {
		t.Error("Cache not empty after clear")
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(1024)

	cache.Put("key1", pcm(4, 0))
	cache.Get("key1")
	cache.Get("key2")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", stats.HitRate)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(4096)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j%5)
				cache.Put(key, pcm(32, byte(j)))
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Size() > 4096 {
		t.Errorf("Size %d exceeds capacity", cache.Size())
	}
}

func TestKey(t *testing.T) {
	a := Key([]byte("one"))
	b := Key([]byte("two"))
	if a == b {
		t.Error("Different inputs produced the same key")
	}
	if a != Key([]byte("one")) {
		t.Error("Key is not deterministic")
	}
	if len(a) != 32 {
		t.Errorf("Expected 32 hex characters, got %d", len(a))
	}
}
