package status

import (
	"github.com/arscene/statesync/internal/scene"
	"github.com/arscene/statesync/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotSource provides a consistent view of the reconciliation state.
type SnapshotSource interface {
	Snapshot() scene.Snapshot
}

// Collector exports the scene snapshot as Prometheus gauges. The snapshot
// is taken once per scrape.
type Collector struct {
	src SnapshotSource

	frame      *prometheus.Desc
	anchor     *prometheus.Desc
	found      *prometheus.Desc
	trackables *prometheus.Desc
	positioned *prometheus.Desc
	buttons    *prometheus.Desc
	unclaimed  *prometheus.Desc
}

// NewCollector creates a collector reading from src.
func NewCollector(src SnapshotSource) *Collector {
	return &Collector{
		src:        src,
		frame:      prometheus.NewDesc("statesync_frame", "Index of the last reconciled frame.", nil, nil),
		anchor:     prometheus.NewDesc("statesync_anchor", "Trackable id of the current anchor, -1 if none.", nil, nil),
		found:      prometheus.NewDesc("statesync_found_queue_length", "Number of trackables in the found queue.", nil, nil),
		trackables: prometheus.NewDesc("statesync_trackables", "Registered trackables by status and enabled state.", []string{"status", "enabled"}, nil),
		positioned: prometheus.NewDesc("statesync_trackables_positioned", "Trackables that have been given a world pose.", nil, nil),
		buttons:    prometheus.NewDesc("statesync_buttons", "Registered virtual buttons by enabled state.", []string{"enabled"}, nil),
		unclaimed:  prometheus.NewDesc("statesync_unclaimed_results", "Results for ids that are not registered.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frame
	ch <- c.anchor
	ch <- c.found
	ch <- c.trackables
	ch <- c.positioned
	ch <- c.buttons
	ch <- c.unclaimed
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.frame, prometheus.GaugeValue, float64(s.Frame))
	ch <- prometheus.MustNewConstMetric(c.anchor, prometheus.GaugeValue, float64(s.Anchor))
	ch <- prometheus.MustNewConstMetric(c.found, prometheus.GaugeValue, float64(len(s.FoundQueue)))
	ch <- prometheus.MustNewConstMetric(c.unclaimed, prometheus.GaugeValue, float64(s.Unclaimed))

	type key struct {
		status  core.Status
		enabled bool
	}
	counts := make(map[key]int)
	positioned := 0
	for _, t := range s.Trackables {
		counts[key{t.Status, t.Enabled}]++
		if t.Positioned {
			positioned++
		}
	}
	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.trackables, prometheus.GaugeValue, float64(n), k.status.String(), boolLabel(k.enabled))
	}
	ch <- prometheus.MustNewConstMetric(c.positioned, prometheus.GaugeValue, float64(positioned))

	enabled := 0
	for _, b := range s.Buttons {
		if b.Enabled {
			enabled++
		}
	}
	ch <- prometheus.MustNewConstMetric(c.buttons, prometheus.GaugeValue, float64(enabled), "true")
	ch <- prometheus.MustNewConstMetric(c.buttons, prometheus.GaugeValue, float64(len(s.Buttons)-enabled), "false")
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
