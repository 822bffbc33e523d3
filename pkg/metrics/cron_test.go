package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "test-job"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.AddRepaired(job, 3)
	metrics.AddRepaired(job, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "nurseryfinder_cron_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "nurseryfinder_cron_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "nurseryfinder_cron_rows_repaired_total", "job", job); err != nil {
		t.Fatalf("fetch repaired: %v", err)
	} else if got != 3 {
		t.Fatalf("expected repaired=3, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "nurseryfinder_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestHTTPAndModerationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	httpMetrics := NewHTTPMetrics(reg)
	moderation := NewModerationMetrics(reg)

	httpMetrics.Observe("/api/admin/v1/reviews/{id}/approve", "POST", 200, 20*time.Millisecond)
	httpMetrics.Observe("", "GET", 404, time.Millisecond)
	moderation.Record("approve", nil)
	moderation.Record("approve", fmt.Errorf("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "nurseryfinder_http_requests_total", "route", "unmatched"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route counted once, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "nurseryfinder_reviews_moderation_actions_total", "outcome", "error"); err != nil || got != 1 {
		t.Fatalf("expected one failed moderation, got %f (%v)", got, err)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	outbox := NewOutboxMetrics(reg)
	outbox.ObservePublish("review_approved", 40*time.Millisecond)
	outbox.Outcome("review_approved", OutboxPublished)
	outbox.Outcome("review_approved", OutboxRetried)
	outbox.Outcome("", OutboxDeadLettered)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "nurseryfinder_outbox_events_total", "outcome", OutboxRetried); err != nil || got != 1 {
		t.Fatalf("expected one retry, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "nurseryfinder_outbox_events_total", "event_type", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unlabelled event counted as unknown, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "nurseryfinder_outbox_publish_duration_seconds", "event_type", "review_approved"); err != nil || got <= 0 {
		t.Fatalf("expected publish latency recorded, got %f (%v)", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewCronJobMetrics(nil).IncSuccess("job")
	NewHTTPMetrics(nil).Observe("/", "GET", 200, time.Millisecond)
	NewModerationMetrics(nil).Record("delete", nil)
	NewOutboxMetrics(nil).Outcome("review_deleted", OutboxPublished)
	var m *CronJobMetrics
	m.ObserveDuration("job", time.Second)
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
