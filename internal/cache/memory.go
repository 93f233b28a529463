// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"sync"
	"time"
)

// Default in-memory limits, matching a 100 item / 100 MiB budget.
const (
	DefaultMemoryMaxEntries = 100
	DefaultMemoryMaxBytes   = 100 << 20
)

// memoryEntry is a cached blob with its creation time.
type memoryEntry struct {
	data      []byte
	createdAt time.Time
	seq       uint64
}

// MemoryBackend keeps entries in process memory. Contents are lost on exit.
// When a limit is exceeded the oldest inserted entries are evicted first.
type MemoryBackend struct {
	mu         sync.RWMutex
	parts      map[Class]map[string]*memoryEntry
	maxEntries int
	maxBytes   int64
	size       int64
	count      int
	seq        uint64
	stats      Stats
	now        func() time.Time
	closed     bool
}

// NewMemoryBackend creates an in-memory backend. Non-positive limits disable
// the corresponding bound.
func NewMemoryBackend(maxEntries int, maxBytes int64) *MemoryBackend {
	return &MemoryBackend{
		parts:      make(map[Class]map[string]*memoryEntry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return "memory" }

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, class Class, key string) ([]byte, error) {
	if err := checkArgs(class, key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	e, ok := m.parts[class][key]
	if !ok {
		m.stats.Misses++
		return nil, ErrNotFound
	}
	m.stats.Hits++
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, class Class, key string, data []byte, createdAt time.Time) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = m.now()
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	part, ok := m.parts[class]
	if !ok {
		part = make(map[string]*memoryEntry)
		m.parts[class] = part
	}
	if old, exists := part[key]; exists {
		m.size -= int64(len(old.data))
		m.count--
	}
	m.seq++
	part[key] = &memoryEntry{data: buf, createdAt: createdAt, seq: m.seq}
	m.size += int64(len(buf))
	m.count++
	m.stats.Sets++
	m.evictLocked()
	return nil
}

// Remove implements Backend.
func (m *MemoryBackend) Remove(_ context.Context, class Class, key string) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(class, key)
	return nil
}

// Sweep implements Backend.
func (m *MemoryBackend) Sweep(_ context.Context, class Class, cutoff time.Time) (int, error) {
	if !class.Valid() {
		return 0, ErrInvalidClass
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key, e := range m.parts[class] {
		if e.createdAt.Before(cutoff) {
			m.deleteLocked(class, key)
			count++
		}
	}
	m.stats.Evictions += int64(count)
	return count, nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(_ context.Context, class Class) error {
	if !class.Valid() {
		return ErrInvalidClass
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.parts[class] {
		m.deleteLocked(class, key)
	}
	delete(m.parts, class)
	return nil
}

// Close implements Backend. It drops all entries.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parts = make(map[Class]map[string]*memoryEntry)
	m.size, m.count = 0, 0
	m.closed = true
	return nil
}

// Stats implements StatsReporter.
func (m *MemoryBackend) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stats
	s.Entries = m.count
	return s
}

func (m *MemoryBackend) deleteLocked(class Class, key string) {
	part := m.parts[class]
	if e, ok := part[key]; ok {
		m.size -= int64(len(e.data))
		m.count--
		delete(part, key)
	}
}

func (m *MemoryBackend) evictLocked() {
	for m.overLimitLocked() {
		var (
			oldClass Class
			oldKey   string
			oldSeq   uint64
			found    bool
		)
		for class, part := range m.parts {
			for key, e := range part {
				if !found || e.seq < oldSeq {
					oldClass, oldKey, oldSeq, found = class, key, e.seq, true
				}
			}
		}
		if !found {
			return
		}
		m.deleteLocked(oldClass, oldKey)
		m.stats.Evictions++
	}
}

func (m *MemoryBackend) overLimitLocked() bool {
	if m.maxEntries > 0 && m.count > m.maxEntries {
		return true
	}
	return m.maxBytes > 0 && m.size > m.maxBytes
}
