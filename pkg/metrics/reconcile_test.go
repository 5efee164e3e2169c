package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReconcileMetricsExportsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewReconcileMetrics(reg)
	metrics.IncResult("confirmed")
	metrics.IncResult("confirmed")
	metrics.IncResult("insufficient_stock")
	metrics.ObserveDuration("confirmed", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "reconcile_results", "result", "confirmed"); err != nil {
		t.Fatalf("fetch confirmed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected confirmed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "reconcile_results", "result", "insufficient_stock"); err != nil {
		t.Fatalf("fetch insufficient_stock: %v", err)
	} else if got != 1 {
		t.Fatalf("expected insufficient_stock=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "reconcile_duration_seconds", "result", "confirmed"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestReconcileMetricsNilRegisterer(t *testing.T) {
	metrics := NewReconcileMetrics(nil)
	metrics.IncResult("confirmed")
	metrics.ObserveDuration("confirmed", time.Millisecond)
}
