package monitoring

import (
	"testing"
	"time"
)

func TestCounterAccumulatesPerSeries(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrCounter("predictions_total", 2, map[string]string{"label": "ok"})
	mc.IncrCounter("predictions_total", 3, map[string]string{"label": "ok"})
	mc.IncrCounter("predictions_total", 1, map[string]string{"label": "fail"})

	if got := mc.Counter("predictions_total", map[string]string{"label": "ok"}); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	if got := mc.Counter("predictions_total", map[string]string{"label": "fail"}); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestObserveRequestSummary(t *testing.T) {
	mc := NewMetricsCollector()
	mc.ObserveRequest("POST /classify", 200, 2*time.Millisecond)
	mc.ObserveRequest("POST /classify", 200, 4*time.Millisecond)

	summary, err := mc.GetMetricSummary("http_request_duration_ms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary["count"] != 2 || summary["average"] != 3.0 || summary["max"] != 4.0 {
		t.Fatalf("unexpected summary: %v", summary)
	}
	if got := mc.Counter("http_requests_total", map[string]string{"route": "POST /classify", "status": "200"}); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}

	snap := mc.Snapshot()
	if _, ok := snap["counters"].(map[string]float64)[`http_requests_total{route="POST /classify",status="200"}`]; !ok {
		t.Fatalf("counter missing from snapshot: %v", snap["counters"])
	}
}

func TestMetricHistoryIsBounded(t *testing.T) {
	mc := NewMetricsCollector()
	for i := 0; i < maxSamples+50; i++ {
		mc.SetGauge("queue_depth", float64(i), nil)
	}
	metrics, err := mc.GetMetric("queue_depth")
	if err != nil {
		t.Fatal(err)
	}
	if len(metrics) > maxSamples {
		t.Fatalf("history not bounded: %d", len(metrics))
	}
	if _, err := mc.GetMetric("missing"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestStartStop(t *testing.T) {
	mc := NewMetricsCollector()
	mc.Start(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	mc.Stop()
	mc.Stop()
	if _, err := mc.GetMetric("system_goroutines"); err != nil {
		t.Fatalf("system metrics not collected: %v", err)
	}
}
