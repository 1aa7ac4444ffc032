package cache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const diskExt = ".pcm.zst"

// DiskCache stores decoded segments as zstd-compressed files. Each file holds
// a 4-byte little-endian sample rate followed by the PCM.
type DiskCache struct {
	basePath string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	path       string
	size       int64 // compressed size on disk
	lastAccess time.Time
}

// NewDiskCache opens or creates a disk cache in basePath. Existing files are
// indexed so entries survive restarts.
func NewDiskCache(basePath string, capacity int64, level int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if level <= 0 {
		level = 3
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		encoder:  encoder,
		decoder:  decoder,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}
	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

// Get reads and decompresses the entry for key.
func (dc *DiskCache) Get(key string) (Entry, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	de, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return Entry{}, false
	}

	entry, err := dc.read(de.path)
	if err != nil {
		_ = os.Remove(de.path)
		dc.drop(key, de)
		dc.stats.Misses++
		return Entry{}, false
	}

	now := time.Now()
	de.lastAccess = now
	_ = os.Chtimes(de.path, now, now)
	dc.stats.Hits++
	return entry, true
}

// Put compresses entry and writes it under key.
func (dc *DiskCache) Put(key string, entry Entry) error {
	header := make([]byte, 4, 4+len(entry.PCM))
	binary.LittleEndian.PutUint32(header, uint32(entry.SampleRate))
	payload := dc.encoder.EncodeAll(append(header, entry.PCM...), nil)
	size := int64(len(payload))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if size > dc.capacity {
		return ErrItemTooLarge
	}
	if existing, ok := dc.index[key]; ok {
		_ = os.Remove(existing.path)
		dc.drop(key, existing)
	}
	for dc.size+size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	path := filepath.Join(dc.basePath, key+diskExt)
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	dc.index[key] = &diskEntry{path: path, size: size, lastAccess: time.Now()}
	dc.size += size
	return nil
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	de, ok := dc.index[key]
	if !ok {
		return nil
	}
	dc.drop(key, de)
	if err := os.Remove(de.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every entry.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key, de := range dc.index {
		_ = os.Remove(de.path)
		dc.drop(key, de)
	}
	return nil
}

// Contains reports whether key is cached.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Size returns the compressed bytes on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))
	stats.updateHitRate()
	return stats
}

// Close releases the codec resources.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.decoder.Close()
	return dc.encoder.Close()
}

func (dc *DiskCache) read(path string) (Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	data, err := dc.decoder.DecodeAll(raw, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrCacheCorrupted, err)
	}
	if len(data) < 4 {
		return Entry{}, ErrCacheCorrupted
	}
	return Entry{
		SampleRate: int(binary.LittleEndian.Uint32(data)),
		PCM:        data[4:],
	}, nil
}

func (dc *DiskCache) scan() error {
	files, err := os.ReadDir(dc.basePath)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, diskExt) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, diskExt)
		dc.index[key] = &diskEntry{
			path:       filepath.Join(dc.basePath, name),
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		dc.size += info.Size()
	}
	return nil
}

// evictOldest must be called with dc.mu held.
func (dc *DiskCache) evictOldest() {
	var oldestKey string
	var oldest *diskEntry
	for key, de := range dc.index {
		if oldest == nil || de.lastAccess.Before(oldest.lastAccess) {
			oldestKey, oldest = key, de
		}
	}
	if oldest == nil {
		return
	}
	_ = os.Remove(oldest.path)
	dc.drop(oldestKey, oldest)
	dc.stats.Evictions++
	dc.stats.LastEvict = time.Now()
}

// drop must be called with dc.mu held.
func (dc *DiskCache) drop(key string, de *diskEntry) {
	delete(dc.index, key)
	dc.size -= de.size
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
