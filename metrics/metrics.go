// Package metrics exports the frame table's and swap table's running
// counters as Prometheus gauges/counters, the same Describe/Collect
// shape the corpus's own systemd unit collector uses for its own
// per-unit metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"vmkaist/frame"
	"vmkaist/swap"
)

const namespace = "vmkaist"

/// Collector implements prometheus.Collector over one process-wide
/// frame table and swap table.
type Collector struct {
	frames *frame.Table
	swaps  *swap.Table

	framesTotal *prometheus.Desc
	frameGets   *prometheus.Desc
	evictions   *prometheus.Desc
	oomEvents   *prometheus.Desc
	swapSlots   *prometheus.Desc
}

/// NewCollector builds a Collector over the given singletons.
func NewCollector(frames *frame.Table, swaps *swap.Table) *Collector {
	return &Collector{
		frames: frames,
		swaps:  swaps,
		framesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "frame_table", "resident_frames"),
			"Number of frames currently linked into the frame table.",
			nil, nil,
		),
		frameGets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "frame_table", "gets_total"),
			"Total frames handed out by the frame table.",
			nil, nil,
		),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "frame_table", "evictions_total"),
			"Total frames reclaimed via second-chance eviction.",
			nil, nil,
		),
		oomEvents: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "frame_table", "oom_total"),
			"Total Get() calls that found no victim and returned out-of-memory.",
			nil, nil,
		),
		swapSlots: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "swap", "capacity_slots"),
			"Total page-sized slots on the swap device.",
			nil, nil,
		),
	}
}

/// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesTotal
	ch <- c.frameGets
	ch <- c.evictions
	ch <- c.oomEvents
	ch <- c.swapSlots
}

/// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.framesTotal, prometheus.GaugeValue, float64(c.frames.Len()))
	ch <- prometheus.MustNewConstMetric(c.frameGets, prometheus.CounterValue, float64(frame.Stat.Gets.Get()))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(frame.Stat.Evictions.Get()))
	ch <- prometheus.MustNewConstMetric(c.oomEvents, prometheus.CounterValue, float64(frame.Stat.OOMs.Get()))
	if c.swaps != nil {
		ch <- prometheus.MustNewConstMetric(c.swapSlots, prometheus.GaugeValue, float64(c.swaps.Slots()))
	}
}
