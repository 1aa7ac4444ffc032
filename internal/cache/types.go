package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when an entry exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a stored entry cannot be read back.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Level identifies the cache tier an entry came from.
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota
	// LevelDisk is the compressed on-disk store.
	LevelDisk
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Entry is one decoded segment.
type Entry struct {
	PCM        []byte
	SampleRate int
}

// Size returns the number of PCM bytes held by the entry.
func (e Entry) Size() int64 {
	return int64(len(e.PCM))
}

// Stats holds cache counters.
type Stats struct {
	Capacity  int64
	Size      int64
	ItemCount int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
	LastEvict time.Time
}

func (s *Stats) updateHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Key derives the cache key for a segment's encoded bytes.
func Key(encoded []byte) string {
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:16])
}

// Config configures a Manager.
type Config struct {
	MemoryCapacity   int64  // bytes
	DiskCapacity     int64  // bytes, 0 disables the disk level
	DiskPath         string // directory for cache files
	CompressionLevel int    // zstd level, 1-22
}

// DefaultConfig returns a memory-only configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024,
		CompressionLevel: 3,
	}
}
