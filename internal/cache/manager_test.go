package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("Failed to create disk cache: %v", err)
	}
	defer dc.Close()

	entry := Entry{PCM: bytes.Repeat([]byte{1, 2, 3, 4}, 1000), SampleRate: 44100}
	if err := dc.Put("seg", entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := dc.Get("seg")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if got.SampleRate != 44100 || !bytes.Equal(got.PCM, entry.PCM) {
		t.Error("Round trip changed the entry")
	}

	// Repetitive PCM should compress
	if dc.Size() >= entry.Size() {
		t.Errorf("Expected compressed size below %d, got %d", entry.Size(), dc.Size())
	}
}

func TestDiskCache_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("Failed to create disk cache: %v", err)
	}
	dc.Put("seg", pcm(512, 7))
	dc.Close()

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("Failed to reopen disk cache: %v", err)
	}
	defer reopened.Close()

	if !reopened.Contains("seg") {
		t.Fatal("Entry missing after reopen")
	}
	got, ok := reopened.Get("seg")
	if !ok || len(got.PCM) != 512 {
		t.Errorf("Unexpected entry after reopen: %+v", got)
	}
}

func TestDiskCache_CorruptedFileIsDropped(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("Failed to create disk cache: %v", err)
	}
	defer dc.Close()

	dc.Put("seg", pcm(64, 1))
	if err := os.WriteFile(filepath.Join(dir, "seg"+diskExt), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := dc.Get("seg"); ok {
		t.Error("Corrupted entry should not be returned")
	}
	if dc.Contains("seg") {
		t.Error("Corrupted entry should be removed from the index")
	}
}

func TestManager_MemoryOnly(t *testing.T) {
	m, err := NewManager(Config{MemoryCapacity: 1024}, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer m.Close()

	m.Put("seg", pcm(16, 3))
	if _, ok := m.Get("seg"); !ok {
		t.Fatal("Get failed: key not found")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Unexpected hit for missing key")
	}

	stats := m.Stats()
	if stats.MemoryHits != 1 || stats.Misses != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestManager_PromotesDiskHits(t *testing.T) {
	config := Config{
		MemoryCapacity:   100,
		DiskCapacity:     1 << 20,
		DiskPath:         t.TempDir(),
		CompressionLevel: 3,
	}

	m, err := NewManager(config, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer m.Close()

	m.Put("first", pcm(80, 1))
	m.Put("second", pcm(80, 2)) // evicts "first" from memory
	m.Flush()

	if m.memory.Contains("first") {
		t.Fatal("first should have been evicted from memory")
	}

	got, ok := m.Get("first")
	if !ok {
		t.Fatal("first should be served from disk")
	}
	if got.PCM[0] != 1 {
		t.Error("Disk hit returned the wrong entry")
	}
	if !m.memory.Contains("first") {
		t.Error("Disk hit should be promoted to memory")
	}

	stats := m.Stats()
	if stats.DiskHits != 1 || stats.Promotions != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestManager_DeleteAndClear(t *testing.T) {
	config := Config{
		MemoryCapacity: 1024,
		DiskCapacity:   1 << 20,
		DiskPath:       t.TempDir(),
	}
	m, err := NewManager(config, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer m.Close()

	m.Put("a", pcm(8, 1))
	m.Put("b", pcm(8, 2))
	m.Flush()

	if err := m.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := m.Get("a"); ok {
		t.Error("a still cached after delete")
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := m.Get("b"); ok {
		t.Error("b still cached after clear")
	}
}
