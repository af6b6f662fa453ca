package storage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus instrumentation. A nil *Metrics is
// valid everywhere in this package and turns every recording call into a
// no-op, so engines embedded without a registry (the CLI) pay nothing.
type Metrics struct {
	puts       prometheus.Counter
	gets       prometheus.Counter
	removes    prometheus.Counter
	flushes    prometheus.Counter
	compactions prometheus.Counter
	flushFailures      prometheus.Counter
	compactionFailures prometheus.Counter

	memtableSize   prometheus.Gauge
	immutableDepth prometheus.Gauge
	sstableCount   prometheus.Gauge

	getLatency       prometheus.Histogram
	putLatency       prometheus.Histogram
	flushLatency     prometheus.Histogram
	compactionLatency prometheus.Histogram
}

// NewMetrics constructs and registers the engine's metrics against reg.
// Pass a fresh, private *prometheus.Registry to avoid colliding with other
// engines in the same process. The CLI does not call this and passes a nil
// *Metrics instead.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := prometheus.WrapRegistererWithPrefix("ridgedb_", reg)
	m := &Metrics{
		puts:               prometheus.NewCounter(prometheus.CounterOpts{Name: "puts_total", Help: "Total Put calls."}),
		gets:               prometheus.NewCounter(prometheus.CounterOpts{Name: "gets_total", Help: "Total Get calls."}),
		removes:            prometheus.NewCounter(prometheus.CounterOpts{Name: "removes_total", Help: "Total Remove calls."}),
		flushes:            prometheus.NewCounter(prometheus.CounterOpts{Name: "flushes_total", Help: "Total memtable flushes."}),
		compactions:        prometheus.NewCounter(prometheus.CounterOpts{Name: "compactions_total", Help: "Total compaction passes."}),
		flushFailures:      prometheus.NewCounter(prometheus.CounterOpts{Name: "flush_failures_total", Help: "Flushes that failed and discarded their memtable."}),
		compactionFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "compaction_failures_total", Help: "Compaction passes that failed and retained their source SSTables."}),
		memtableSize:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "memtable_size_bytes", Help: "Tracked size of the active memtable."}),
		immutableDepth:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "immutable_queue_depth", Help: "Number of sealed memtables awaiting flush."}),
		sstableCount:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "sstable_count", Help: "Number of SSTables on disk."}),
		getLatency:         prometheus.NewHistogram(prometheus.HistogramOpts{Name: "get_latency_seconds", Help: "Get call latency.", Buckets: prometheus.DefBuckets}),
		putLatency:         prometheus.NewHistogram(prometheus.HistogramOpts{Name: "put_latency_seconds", Help: "Put call latency.", Buckets: prometheus.DefBuckets}),
		flushLatency:       prometheus.NewHistogram(prometheus.HistogramOpts{Name: "flush_latency_seconds", Help: "Flush-to-SSTable latency.", Buckets: prometheus.DefBuckets}),
		compactionLatency:  prometheus.NewHistogram(prometheus.HistogramOpts{Name: "compaction_latency_seconds", Help: "Compaction pass latency.", Buckets: prometheus.DefBuckets}),
	}
	factory.MustRegister(m.puts, m.gets, m.removes, m.flushes, m.compactions,
		m.flushFailures, m.compactionFailures, m.memtableSize, m.immutableDepth,
		m.sstableCount, m.getLatency, m.putLatency, m.flushLatency, m.compactionLatency)
	return m
}

func (m *Metrics) observePut(seconds float64) {
	if m == nil {
		return
	}
	m.puts.Inc()
	m.putLatency.Observe(seconds)
}

func (m *Metrics) observeGet(seconds float64) {
	if m == nil {
		return
	}
	m.gets.Inc()
	m.getLatency.Observe(seconds)
}

func (m *Metrics) observeRemove() {
	if m == nil {
		return
	}
	m.removes.Inc()
}

func (m *Metrics) observeFlush(seconds float64, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.flushFailures.Inc()
		return
	}
	m.flushes.Inc()
	m.flushLatency.Observe(seconds)
}

func (m *Metrics) observeCompaction(seconds float64, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.compactionFailures.Inc()
		return
	}
	m.compactions.Inc()
	m.compactionLatency.Observe(seconds)
}

func (m *Metrics) setGauges(memtableSize int64, immutableDepth, sstableCount int) {
	if m == nil {
		return
	}
	m.memtableSize.Set(float64(memtableSize))
	m.immutableDepth.Set(float64(immutableDepth))
	m.sstableCount.Set(float64(sstableCount))
}
