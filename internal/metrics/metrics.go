// Package metrics exports engine statistics as Prometheus metrics.
package metrics

import (
	"io"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/engine"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "mvstore"

// Source reports engine statistics. *engine.Engine implements it.
type Source interface {
	Stats() engine.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(engine.Stats) float64
}

// Collector implements prometheus.Collector over a Source. Every scrape
// reads one Stats snapshot.
type Collector struct {
	src     Source
	metrics []metric
}

// NewCollector creates a collector for src.
func NewCollector(src Source) *Collector {
	c := &Collector{src: src}

	gauge := func(sub, name, help string, fn func(engine.Stats) float64) {
		c.add(sub, name, help, prometheus.GaugeValue, fn)
	}
	counter := func(sub, name, help string, fn func(engine.Stats) float64) {
		c.add(sub, name, help, prometheus.CounterValue, fn)
	}

	gauge("", "version", "Latest committed version.",
		func(s engine.Stats) float64 { return float64(s.Version) })
	gauge("", "tables", "Tables with at least one committed key.",
		func(s engine.Stats) float64 { return float64(s.Tables) })
	gauge("", "chunks", "Chunks present in the store.",
		func(s engine.Stats) float64 { return float64(s.Chunks) })
	gauge("", "dead_chunks", "Chunks with no reachable pages awaiting removal.",
		func(s engine.Stats) float64 { return float64(s.DeadChunks) })
	counter("", "reclaimed_chunks_total", "Chunks removed by garbage collection.",
		func(s engine.Stats) float64 { return float64(s.ReclaimedChunks) })
	gauge("", "active_sessions", "Sessions that have not committed or rolled back.",
		func(s engine.Stats) float64 { return float64(s.ActiveSessions) })
	gauge("", "open_snapshots", "Snapshots held by readers.",
		func(s engine.Stats) float64 { return float64(s.OpenSnapshots) })
	counter("", "commits_total", "Committed sessions.",
		func(s engine.Stats) float64 { return float64(s.Commits) })
	counter("", "aborts_total", "Aborted sessions.",
		func(s engine.Stats) float64 { return float64(s.Aborts) })
	counter("", "conflicts_total", "Commits rejected by a concurrent update.",
		func(s engine.Stats) float64 { return float64(s.Conflicts) })

	counter("cache", "hits_total", "Page cache hits.",
		func(s engine.Stats) float64 { return float64(s.Cache.Hits) })
	counter("cache", "misses_total", "Page cache misses.",
		func(s engine.Stats) float64 { return float64(s.Cache.Misses) })
	counter("cache", "evictions_total", "Pages evicted from the cache.",
		func(s engine.Stats) float64 { return float64(s.Cache.Evictions) })
	counter("cache", "uncached_total", "Loaded pages returned without being cached.",
		func(s engine.Stats) float64 { return float64(s.Cache.Uncached) })
	gauge("cache", "bytes", "Estimated memory of resident pages.",
		func(s engine.Stats) float64 { return float64(s.Cache.Bytes) })
	gauge("cache", "capacity_bytes", "Page cache memory budget.",
		func(s engine.Stats) float64 { return float64(s.Cache.Capacity) })
	gauge("cache", "entries", "Resident pages.",
		func(s engine.Stats) float64 { return float64(s.Cache.Entries) })
	gauge("cache", "pinned", "Resident pages with outstanding references.",
		func(s engine.Stats) float64 { return float64(s.Cache.Pinned) })

	return c
}

func (c *Collector) add(sub, name, help string, kind prometheus.ValueType, fn func(engine.Stats) float64) {
	c.metrics = append(c.metrics, metric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, sub, name), help, nil, nil),
		kind:  kind,
		value: fn,
	})
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}

// WriteText gathers every metric registered with g and writes them in the
// Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return errors.Wrapf(err, "encode %s", mf.GetName())
		}
	}
	return nil
}

// Render registers a collector for src in a fresh registry and writes its
// metrics to w.
func Render(w io.Writer, src Source) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		return errors.Wrap(err, "register collector")
	}
	return WriteText(w, reg)
}
