package query

import (
	"github.com/prometheus/client_golang/prometheus"

	"tally"
	"tally/registry"
)

var (
	counterLabels = []string{"source", "id", "instance", "direction"}

	countDescs = map[tally.CounterKind]*prometheus.Desc{
		tally.Dropped: prometheus.NewDesc(
			"tally_dropped_total", "Log records dropped by the component.", counterLabels, nil),
		tally.Processed: prometheus.NewDesc(
			"tally_processed_total", "Log records processed by the component.", counterLabels, nil),
		tally.Stored: prometheus.NewDesc(
			"tally_stored_total", "Log records stored by the component.", counterLabels, nil),
		tally.Suppressed: prometheus.NewDesc(
			"tally_suppressed_total", "Log records suppressed by the component.", counterLabels, nil),
	}

	stampDesc = prometheus.NewDesc(
		"tally_stamp_seconds", "Unix timestamp of the component's last activity.", counterLabels, nil)
)

// Collector exposes the live counter set as Prometheus metrics. Count
// kinds surface as counters, the stamp as a gauge. The walk holds the
// registry lock, so a scrape briefly stalls registrations, same as a
// publish pass.
type Collector struct {
	Registry *registry.Registry
}

var _ prometheus.Collector = (*Collector)(nil)

// Describe sends the descriptor of every counter kind.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range countDescs {
		ch <- d
	}
	ch <- stampDesc
}

// Collect walks the registry and emits one metric per live cell.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.Registry.Lock()
	c.Registry.ForEachCounter(func(cl *registry.Cluster, kind tally.CounterKind, cnt *registry.Counter) {
		key := cl.Key()
		labels := []string{key.Source.String(), key.ID, key.Instance, direction(key.Source)}

		if kind == tally.Stamp {
			ch <- prometheus.MustNewConstMetric(stampDesc, prometheus.GaugeValue, float64(cnt.Load()), labels...)
			return
		}
		ch <- prometheus.MustNewConstMetric(countDescs[kind], prometheus.CounterValue, float64(cnt.Load()), labels...)
	})
	c.Registry.Unlock()
}

func direction(source tally.ComponentKind) string {
	switch {
	case source.IsSource():
		return "src"
	case source.IsDestination():
		return "dst"
	default:
		return ""
	}
}
