package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ridgedb/ridgedb/internal/logging"
)

const sstableStemPrefix = "sstable_"

// LSM is the storage engine's coordinator. It owns the active memtable, a
// queue of sealed memtables awaiting flush, and an ordered list of
// SSTables, and runs the flush and compaction background workers.
type LSM struct {
	dataDir string
	config  Config
	logger  *logrus.Entry
	metrics *Metrics

	activeMu sync.Mutex
	active   *MemTable

	immMu     sync.Mutex
	immCond   *sync.Cond
	immutable []*MemTable // oldest first

	sstMu    sync.Mutex
	sstables []*SSTable // oldest first

	compactMu   sync.Mutex
	compactCond *sync.Cond

	tsMu   sync.Mutex
	lastTs int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// Open creates the data directory if needed, sweeps orphaned half-written
// SSTable files, loads existing SSTables in creation order, and starts the
// flush and compaction workers.
func Open(config Config, logger *logrus.Logger, metrics *Metrics) (*LSM, error) {
	if logger == nil {
		logger = logrus.New()
	}
	scoped := logging.WithComponent(logger, "storage")
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data directory: %w", err)
	}
	sweepOrphans(config.DataDir, scoped)

	l := &LSM{
		dataDir: config.DataDir,
		config:  config,
		logger:  scoped,
		metrics: metrics,
		active:  NewMemTable(),
	}
	l.immCond = sync.NewCond(&l.immMu)
	l.compactCond = sync.NewCond(&l.compactMu)

	stems, err := listSSTableStems(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("storage: scan data directory: %w", err)
	}
	for _, stem := range stems {
		sst, err := OpenSSTable(stem)
		if err != nil {
			scoped.WithError(err).WithField("stem", stem).Warn("discarding malformed sstable at startup")
			continue
		}
		l.sstables = append(l.sstables, sst)
		if ts, ok := timestampFromStem(stem); ok && ts > l.lastTs {
			l.lastTs = ts
		}
	}

	l.wg.Add(2)
	go l.flushWorker()
	go l.compactionWorker()

	if len(l.sstables) >= config.SSTableCountThreshold {
		l.compactMu.Lock()
		l.compactCond.Signal()
		l.compactMu.Unlock()
	}

	return l, nil
}

// Put inserts or overwrites key with value in the active memtable, rotating
// it if the size threshold is met.
func (l *LSM) Put(key, value []byte) error {
	start := time.Now()
	l.activeMu.Lock()
	if l.closed.Load() {
		l.activeMu.Unlock()
		return ErrClosed
	}
	if err := l.active.Put(key, value); err != nil {
		l.activeMu.Unlock()
		return err
	}
	if l.active.ShouldRotate(l.config.MemTableSizeThreshold) {
		l.rotateLocked()
	}
	l.activeMu.Unlock()

	l.metrics.observePut(time.Since(start).Seconds())
	return nil
}

// Remove stores a tombstone for key in the active memtable.
func (l *LSM) Remove(key []byte) error {
	l.activeMu.Lock()
	if l.closed.Load() {
		l.activeMu.Unlock()
		return ErrClosed
	}
	if err := l.active.Remove(key); err != nil {
		l.activeMu.Unlock()
		return err
	}
	if l.active.ShouldRotate(l.config.MemTableSizeThreshold) {
		l.rotateLocked()
	}
	l.activeMu.Unlock()

	l.metrics.observeRemove()
	return nil
}

// Get resolves key against the active memtable, then the immutable
// memtables newest-first, then the SSTables newest-first, stopping at the
// first definitive answer.
func (l *LSM) Get(key []byte) (GetStatus, []byte) {
	start := time.Now()
	defer func() { l.metrics.observeGet(time.Since(start).Seconds()) }()

	l.activeMu.Lock()
	status, value := l.active.Get(key)
	l.activeMu.Unlock()
	if status != Absent {
		return status, value
	}

	l.immMu.Lock()
	imm := make([]*MemTable, len(l.immutable))
	copy(imm, l.immutable)
	l.immMu.Unlock()
	for i := len(imm) - 1; i >= 0; i-- {
		status, value = imm[i].Get(key)
		if status != Absent {
			return status, value
		}
	}

	l.sstMu.Lock()
	ssts := make([]*SSTable, len(l.sstables))
	copy(ssts, l.sstables)
	l.sstMu.Unlock()
	for i := len(ssts) - 1; i >= 0; i-- {
		status, value, err := ssts[i].Get(key)
		if err != nil {
			l.logger.WithError(err).WithField("stem", ssts[i].Stem()).Warn("sstable read failed, treating as absent")
			continue
		}
		if status != Absent {
			return status, value
		}
	}

	return Absent, nil
}

// rotateLocked seals the active memtable into the immutable queue and
// installs a fresh one. The caller must hold activeMu.
func (l *LSM) rotateLocked() {
	sealed := l.active
	sealed.Freeze()
	l.active = NewMemTable()

	l.immMu.Lock()
	l.immutable = append(l.immutable, sealed)
	l.immMu.Unlock()
	l.immCond.Signal()
}

// Close stops accepting new operations, synchronously flushes the active
// and queued memtables, and joins the background workers.
func (l *LSM) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	l.activeMu.Lock()
	if l.active.Size() > 0 {
		l.rotateLocked()
	}
	l.activeMu.Unlock()

	l.immMu.Lock()
	l.immCond.Broadcast()
	l.immMu.Unlock()

	l.compactMu.Lock()
	l.compactCond.Broadcast()
	l.compactMu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *LSM) flushWorker() {
	defer l.wg.Done()
	for {
		l.immMu.Lock()
		for len(l.immutable) == 0 && !l.closed.Load() {
			l.immCond.Wait()
		}
		if len(l.immutable) == 0 && l.closed.Load() {
			l.immMu.Unlock()
			return
		}
		mt := l.immutable[0]
		l.immMu.Unlock()

		l.flushMemtable(mt)

		// The sealed memtable stays readable in the queue until its SSTable
		// is listed, so a concurrent Get never misses its entries.
		l.immMu.Lock()
		l.immutable = l.immutable[1:]
		l.immMu.Unlock()
	}
}

func (l *LSM) flushMemtable(mt *MemTable) {
	start := time.Now()
	stem := filepath.Join(l.dataDir, fmt.Sprintf("%s%d", sstableStemPrefix, l.nextTimestamp()))

	writer, err := NewSSTableWriter(stem)
	if err != nil {
		l.logger.WithError(err).WithField("memtable_id", mt.ID()).Warn("flush failed to open sstable, dropping memtable")
		l.metrics.observeFlush(time.Since(start).Seconds(), true)
		return
	}

	it := mt.NewIterator()
	for it.Next() {
		if err := writer.Add(it.Key(), it.Value()); err != nil {
			writer.Abort()
			l.logger.WithError(err).WithField("memtable_id", mt.ID()).Warn("flush failed writing record, dropping memtable")
			l.metrics.observeFlush(time.Since(start).Seconds(), true)
			return
		}
	}
	if err := writer.Finish(); err != nil {
		writer.Abort()
		l.logger.WithError(err).WithField("memtable_id", mt.ID()).Warn("flush failed finishing sstable, dropping memtable")
		l.metrics.observeFlush(time.Since(start).Seconds(), true)
		return
	}

	sst, err := OpenSSTable(stem)
	if err != nil {
		l.logger.WithError(err).WithField("stem", stem).Warn("flush failed reopening sstable, dropping memtable")
		l.metrics.observeFlush(time.Since(start).Seconds(), true)
		return
	}

	l.sstMu.Lock()
	l.sstables = append(l.sstables, sst)
	count := len(l.sstables)
	l.sstMu.Unlock()

	l.metrics.observeFlush(time.Since(start).Seconds(), false)
	l.updateGauges()

	if count >= l.config.SSTableCountThreshold {
		l.compactMu.Lock()
		l.compactCond.Signal()
		l.compactMu.Unlock()
	}
}

func (l *LSM) compactionWorker() {
	defer l.wg.Done()
	for {
		l.compactMu.Lock()
		for !l.closed.Load() {
			l.sstMu.Lock()
			count := len(l.sstables)
			l.sstMu.Unlock()
			if count >= l.config.SSTableCountThreshold {
				break
			}
			l.compactCond.Wait()
		}
		closed := l.closed.Load()
		l.compactMu.Unlock()
		if closed {
			return
		}

		l.compactOnce()
		time.Sleep(l.config.CompactionInterval)
	}
}

// compactOnce merges the oldest batch of SSTables once the count meets the
// configured threshold. Keys are resolved newest-first within the batch
// (last-write-wins), correcting the source's oldest-wins precedence bug.
func (l *LSM) compactOnce() {
	l.sstMu.Lock()
	if len(l.sstables) < l.config.SSTableCountThreshold {
		l.sstMu.Unlock()
		return
	}
	batch := make([]*SSTable, l.config.SSTableCountThreshold)
	copy(batch, l.sstables[:l.config.SSTableCountThreshold])
	l.sstables = l.sstables[l.config.SSTableCountThreshold:]
	l.sstMu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Stem() < batch[j].Stem() })

	start := time.Now()
	merged := make(map[string][]byte)
	var order []string
	for i := len(batch) - 1; i >= 0; i-- {
		err := batch[i].Iterate(func(key, value []byte) error {
			k := string(key)
			if _, exists := merged[k]; !exists {
				merged[k] = append([]byte{}, value...)
				order = append(order, k)
			}
			return nil
		})
		if err != nil {
			l.logger.WithError(err).WithField("stem", batch[i].Stem()).Error("compaction read failed, retaining source sstables")
			l.restoreBatch(batch)
			l.metrics.observeCompaction(time.Since(start).Seconds(), true)
			return
		}
	}
	sort.Strings(order)

	stem := filepath.Join(l.dataDir, fmt.Sprintf("%s%d", sstableStemPrefix, l.nextTimestamp()))
	writer, err := NewSSTableWriter(stem)
	if err != nil {
		l.logger.WithError(err).Error("compaction failed to open merged sstable, retaining source sstables")
		l.restoreBatch(batch)
		l.metrics.observeCompaction(time.Since(start).Seconds(), true)
		return
	}
	for _, k := range order {
		v := merged[k]
		if IsTombstone(v) {
			continue
		}
		if err := writer.Add([]byte(k), v); err != nil {
			writer.Abort()
			l.logger.WithError(err).Error("compaction failed writing merged record, retaining source sstables")
			l.restoreBatch(batch)
			l.metrics.observeCompaction(time.Since(start).Seconds(), true)
			return
		}
	}
	if err := writer.Finish(); err != nil {
		writer.Abort()
		l.logger.WithError(err).Error("compaction failed finishing merged sstable, retaining source sstables")
		l.restoreBatch(batch)
		l.metrics.observeCompaction(time.Since(start).Seconds(), true)
		return
	}

	mergedSST, err := OpenSSTable(stem)
	if err != nil {
		l.logger.WithError(err).Error("compaction failed reopening merged sstable, retaining source sstables")
		l.restoreBatch(batch)
		l.metrics.observeCompaction(time.Since(start).Seconds(), true)
		return
	}

	for _, sst := range batch {
		if err := sst.Remove(); err != nil {
			l.logger.WithError(err).WithField("stem", sst.Stem()).Warn("failed removing compacted source sstable files")
		}
	}

	l.sstMu.Lock()
	l.sstables = append(l.sstables, mergedSST)
	l.sstMu.Unlock()

	l.metrics.observeCompaction(time.Since(start).Seconds(), false)
	l.updateGauges()
}

// restoreBatch puts a failed compaction's source SSTables back at the
// front of the list, preserving oldest-first order.
func (l *LSM) restoreBatch(batch []*SSTable) {
	l.sstMu.Lock()
	defer l.sstMu.Unlock()
	restored := make([]*SSTable, 0, len(batch)+len(l.sstables))
	restored = append(restored, batch...)
	restored = append(restored, l.sstables...)
	l.sstables = restored
}

// nextTimestamp returns a millisecond timestamp strictly greater than any
// previously issued by this engine, guaranteeing SSTable filename
// monotonicity across both the flush and compaction workers.
func (l *LSM) nextTimestamp() int64 {
	l.tsMu.Lock()
	defer l.tsMu.Unlock()
	now := time.Now().UnixMilli()
	if now <= l.lastTs {
		now = l.lastTs + 1
	}
	l.lastTs = now
	return now
}

func (l *LSM) updateGauges() {
	l.activeMu.Lock()
	memtableSize := l.active.Size()
	l.activeMu.Unlock()

	l.immMu.Lock()
	depth := len(l.immutable)
	l.immMu.Unlock()

	l.sstMu.Lock()
	count := len(l.sstables)
	l.sstMu.Unlock()

	l.metrics.setGauges(memtableSize, depth, count)
}

// Stats is a snapshot of the engine's runtime state, exposed by the admin
// HTTP plane.
type Stats struct {
	MemTableSize        int64
	ImmutableQueueDepth int
	SSTableCount        int
}

// Stats returns a point-in-time snapshot of the engine's state.
func (l *LSM) Stats() Stats {
	l.activeMu.Lock()
	memtableSize := l.active.Size()
	l.activeMu.Unlock()

	l.immMu.Lock()
	depth := len(l.immutable)
	l.immMu.Unlock()

	l.sstMu.Lock()
	count := len(l.sstables)
	l.sstMu.Unlock()

	return Stats{
		MemTableSize:        memtableSize,
		ImmutableQueueDepth: depth,
		SSTableCount:        count,
	}
}

func listSSTableStems(dataDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, sstableStemPrefix+"*"+indexFileExt))
	if err != nil {
		return nil, err
	}
	stems := make([]string, 0, len(matches))
	for _, m := range matches {
		stems = append(stems, strings.TrimSuffix(m, indexFileExt))
	}
	sort.Slice(stems, func(i, j int) bool {
		ti, oki := timestampFromStem(stems[i])
		tj, okj := timestampFromStem(stems[j])
		if oki && okj {
			return ti < tj
		}
		return stems[i] < stems[j]
	})
	return stems, nil
}

func timestampFromStem(stem string) (int64, bool) {
	base := filepath.Base(stem)
	if !strings.HasPrefix(base, sstableStemPrefix) {
		return 0, false
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(base, sstableStemPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// sweepOrphans removes half-written SSTable file pairs left by a crash
// mid-flush or mid-compaction: a ".index" with no matching ".data", or
// vice versa.
func sweepOrphans(dataDir string, logger *logrus.Entry) {
	indexMatches, _ := filepath.Glob(filepath.Join(dataDir, sstableStemPrefix+"*"+indexFileExt))
	dataMatches, _ := filepath.Glob(filepath.Join(dataDir, sstableStemPrefix+"*"+dataFileExt))

	hasIndex := make(map[string]bool, len(indexMatches))
	for _, m := range indexMatches {
		hasIndex[strings.TrimSuffix(m, indexFileExt)] = true
	}
	hasData := make(map[string]bool, len(dataMatches))
	for _, m := range dataMatches {
		hasData[strings.TrimSuffix(m, dataFileExt)] = true
	}

	for stem := range hasIndex {
		if !hasData[stem] {
			if err := os.Remove(stem + indexFileExt); err != nil {
				logger.WithError(err).WithField("stem", stem).Warn("failed removing orphaned index file")
			} else {
				logger.WithField("stem", stem).Info("removed orphaned index file with no matching data file")
			}
		}
	}
	for stem := range hasData {
		if !hasIndex[stem] {
			if err := os.Remove(stem + dataFileExt); err != nil {
				logger.WithError(err).WithField("stem", stem).Warn("failed removing orphaned data file")
			} else {
				logger.WithField("stem", stem).Info("removed orphaned data file with no matching index file")
			}
		}
	}
}
