package storage

import "errors"

var (
	// ErrMemTableFrozen is returned when attempting to write to a sealed memtable.
	ErrMemTableFrozen = errors.New("storage: memtable is frozen")

	// ErrCorruptedSSTable is returned when an SSTable's index cannot be parsed.
	ErrCorruptedSSTable = errors.New("storage: corrupted sstable index")

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("storage: engine is closed")
)
