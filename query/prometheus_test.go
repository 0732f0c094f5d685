package query

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register collector: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

func TestCollectorExposesLiveCounters(t *testing.T) {
	reg := seedRegistry(t)
	families := gather(t, &Collector{Registry: reg})

	mf, ok := families["tally_processed_total"]
	if !ok {
		t.Fatalf("tally_processed_total missing, got %v", families)
	}
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("got %d processed series, want 2", len(mf.GetMetric()))
	}

	for _, m := range mf.GetMetric() {
		labels := make(map[string]string)
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		switch labels["source"] {
		case "file":
			if labels["direction"] != "dst" || labels["id"] != "dst-access" {
				t.Fatalf("unexpected file labels %v", labels)
			}
			if got := m.GetCounter().GetValue(); got != 3 {
				t.Fatalf("file processed = %v, want 3", got)
			}
		case "sender":
			if labels["direction"] != "src" {
				t.Fatalf("unexpected sender labels %v", labels)
			}
			if got := m.GetCounter().GetValue(); got != 1 {
				t.Fatalf("sender processed = %v, want 1", got)
			}
		default:
			t.Fatalf("unexpected source label %q", labels["source"])
		}
	}
}
