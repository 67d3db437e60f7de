package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	out := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				out[family.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[family.GetName()] += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[family.GetName()] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestCollectorRecords(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveLookup("cities", "hit", time.Millisecond)
	c.ObserveLookup("cities", "miss", 20*time.Millisecond)
	c.ObserveTransaction("registration", "set_value", time.Microsecond)
	c.StaleResult("validator")
	c.InstanceOpened()
	c.InstanceOpened()
	c.InstanceClosed()
	c.Submitted("registration", true)
	c.SchemaReloaded(nil)
	c.SchemaReloaded(errors.New("bad yaml"))
	c.ObserveHTTP("GET", "/forms", 200, time.Millisecond)

	got := gather(t, reg)
	want := map[string]float64{
		"formengine_lookup_requests_total":         2,
		"formengine_lookup_duration_seconds":       2,
		"formengine_transactions_total":            1,
		"formengine_stale_results_total":           1,
		"formengine_active_instances":              1,
		"formengine_submissions_total":             1,
		"formengine_schema_reloads_total":          1,
		"formengine_schema_reload_errors_total":    1,
		"formengine_http_requests_total":           1,
		"formengine_http_request_duration_seconds": 1,
	}
	for name, value := range want {
		if got[name] != value {
			t.Fatalf("%s = %v, want %v", name, got[name], value)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.ObserveLookup("x", "hit", time.Second)
	c.ObserveTransaction("f", "k", time.Second)
	c.StaleResult("lookup")
	c.InstanceOpened()
	c.InstanceClosed()
	c.Submitted("f", false)
	c.SchemaReloaded(nil)
	c.ObserveHTTP("GET", "/", 200, time.Second)
}
