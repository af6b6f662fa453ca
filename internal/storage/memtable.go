package storage

import (
	"sync"
	"sync/atomic"
	"time"
)

// MemTable is a thin ownership wrapper over a SkipList. It applies the
// tombstone deletion convention and exposes in-order iteration for
// flushing to an SSTable.
type MemTable struct {
	sl        *SkipList
	id        uint64
	createdAt time.Time
	frozen    atomic.Bool
	mu        sync.RWMutex
}

var memtableIDCounter uint64

// NewMemTable creates a new, empty, mutable memtable.
func NewMemTable() *MemTable {
	return &MemTable{
		sl:        NewSkipList(),
		id:        atomic.AddUint64(&memtableIDCounter, 1),
		createdAt: time.Now(),
	}
}

// Put inserts or overwrites key with value. Returns ErrMemTableFrozen if the
// memtable has already been sealed.
func (m *MemTable) Put(key, value []byte) error {
	if m.frozen.Load() {
		return ErrMemTableFrozen
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sl.Put(key, value)
	return nil
}

// Remove stores the tombstone sentinel as key's value.
func (m *MemTable) Remove(key []byte) error {
	return m.Put(key, Tombstone)
}

// Get returns the three-valued lookup result for key.
func (m *MemTable) Get(key []byte) (GetStatus, []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, found := m.sl.Get(key)
	if !found {
		return Absent, nil
	}
	if IsTombstone(value) {
		return Deleted, nil
	}
	return Found, value
}

// Size returns the underlying map's tracked byte size.
func (m *MemTable) Size() int64 {
	return m.sl.Size()
}

// ID returns the unique identifier assigned at creation.
func (m *MemTable) ID() uint64 {
	return m.id
}

// CreatedAt returns the memtable's creation time.
func (m *MemTable) CreatedAt() time.Time {
	return m.createdAt
}

// Freeze seals the memtable; subsequent Put/Remove calls fail.
func (m *MemTable) Freeze() {
	m.frozen.Store(true)
}

// IsFrozen reports whether the memtable has been sealed.
func (m *MemTable) IsFrozen() bool {
	return m.frozen.Load()
}

// ShouldRotate reports whether the memtable's tracked size meets or
// exceeds the given threshold.
func (m *MemTable) ShouldRotate(threshold int64) bool {
	return m.Size() >= threshold
}

// NewIterator returns an ascending-key iterator over all entries,
// including tombstones. The memtable must be frozen before a flush reads
// this iterator to completion.
func (m *MemTable) NewIterator() *SkipListIterator {
	return m.sl.NewIterator()
}
