package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSettlementMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSettlementMetrics(reg)

	metrics.ObserveGatewayLatency("verify", 250*time.Millisecond)
	metrics.IncPayment("completed")
	metrics.IncCommission("computed")
	metrics.IncPayout("failed")
	metrics.IncCheckoutSplit()
	metrics.IncRiderDispatch("assigned")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "payments_reconciled_total", "outcome", "completed"); err != nil {
		t.Fatalf("fetch payments: %v", err)
	} else if got != 1 {
		t.Fatalf("expected payments=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "commissions_computed_total", "outcome", "computed"); err != nil {
		t.Fatalf("fetch commissions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected commissions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payouts_composed_total", "outcome", "failed"); err != nil {
		t.Fatalf("fetch payouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected payouts=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "rider_dispatches_total", "outcome", "assigned"); err != nil {
		t.Fatalf("fetch dispatches: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dispatches=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "gateway_request_duration_seconds", "operation", "verify"); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f", got)
	}
}

func TestSettlementMetricsNilRegisterer(t *testing.T) {
	metrics := NewSettlementMetrics(nil)
	// All recorders must be no-ops without a registry.
	metrics.ObserveGatewayLatency("verify", time.Second)
	metrics.IncPayment("completed")
	metrics.IncCommission("computed")
	metrics.IncPayout("composed")
	metrics.IncCheckoutSplit()
	metrics.IncRiderDispatch("assigned")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
