// Package storage implements a persistent, single-node key-value store on
// a Log-Structured Merge (LSM) tree.
//
// Writes land in an in-memory skip list (the active MemTable). Once it
// crosses a size threshold it is sealed into an immutable queue and
// replaced by a fresh one; a background flush worker drains the queue,
// materializing each sealed memtable as an immutable on-disk SSTable
// (a sorted data file plus a sparse index file). Once the SSTable count
// crosses a threshold, a background compaction worker merges the oldest
// batch into a single new SSTable, dropping shadowed entries and
// tombstones.
//
// Reads consult the active memtable, then the immutable memtables
// newest-first, then the SSTables newest-first, stopping at the first
// definitive answer.
package storage
