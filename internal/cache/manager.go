package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Manager coordinates the memory and disk levels. Reads check memory first
// and promote disk hits; writes go to memory synchronously and to disk in the
// background.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	logger *log.Logger

	writes sync.WaitGroup

	mu    sync.Mutex
	stats struct {
		MemoryHits int64
		DiskHits   int64
		Misses     int64
		Promotions int64
	}
}

// NewManager creates a manager. The disk level is enabled when
// config.DiskCapacity and config.DiskPath are set.
func NewManager(config Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	if config.MemoryCapacity <= 0 {
		config.MemoryCapacity = DefaultConfig().MemoryCapacity
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		logger: logger.WithPrefix("cache"),
	}

	if config.DiskCapacity > 0 && config.DiskPath != "" {
		disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.disk = disk
		m.logger.Debug("Disk cache enabled", "path", config.DiskPath, "capacity", config.DiskCapacity)
	}

	return m, nil
}

// Get returns the decoded entry for key from the fastest level holding it.
func (m *Manager) Get(key string) (Entry, bool) {
	if entry, ok := m.memory.Get(key); ok {
		m.mu.Lock()
		m.stats.MemoryHits++
		m.mu.Unlock()
		return entry, true
	}

	if m.disk != nil {
		if entry, ok := m.disk.Get(key); ok {
			m.mu.Lock()
			m.stats.DiskHits++
			m.stats.Promotions++
			m.mu.Unlock()
			_ = m.memory.Put(key, entry)
			return entry, true
		}
	}

	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
	return Entry{}, false
}

// Put stores entry in every level. Entries too large for a level are skipped
// there.
func (m *Manager) Put(key string, entry Entry) error {
	if err := m.memory.Put(key, entry); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}

	if m.disk != nil {
		m.writes.Add(1)
		go func() {
			defer m.writes.Done()
			if err := m.disk.Put(key, entry); err != nil && !errors.Is(err, ErrItemTooLarge) {
				m.logger.Warn("Failed to write disk cache entry", "key", key, "error", err)
			}
		}()
	}
	return nil
}

// Delete removes key from every level.
func (m *Manager) Delete(key string) error {
	m.memory.Delete(key)
	if m.disk != nil {
		return m.disk.Delete(key)
	}
	return nil
}

// Clear empties every level.
func (m *Manager) Clear() error {
	m.memory.Clear()
	if m.disk != nil {
		m.writes.Wait()
		return m.disk.Clear()
	}
	return nil
}

// Flush waits for pending disk writes.
func (m *Manager) Flush() {
	m.writes.Wait()
}

// ManagerStats aggregates the per-level counters.
type ManagerStats struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
	Promotions int64
	Memory     Stats
	Disk       Stats
}

// Stats returns the aggregated counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		MemoryHits: m.stats.MemoryHits,
		DiskHits:   m.stats.DiskHits,
		Misses:     m.stats.Misses,
		Promotions: m.stats.Promotions,
	}
	m.mu.Unlock()

	stats.Memory = m.memory.Stats()
	if m.disk != nil {
		stats.Disk = m.disk.Stats()
	}
	return stats
}

// Close waits for pending writes and closes the disk level.
func (m *Manager) Close() error {
	m.writes.Wait()
	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}
