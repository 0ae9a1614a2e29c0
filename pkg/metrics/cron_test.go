package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.JobFinished("pending-order-expiry", 250*time.Millisecond, nil, at)
	m.JobFinished("pending-order-expiry", time.Second, errors.New("boom"), at.Add(time.Hour))
	m.TickSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	ok, err := fetchCounterValue(mfs, "coursehub_cron_job_runs_total", map[string]string{"job": "pending-order-expiry", "result": "success"})
	require.NoError(t, err)
	require.Equal(t, 1.0, ok)

	failed, err := fetchCounterValue(mfs, "coursehub_cron_job_runs_total", map[string]string{"job": "pending-order-expiry", "result": "failure"})
	require.NoError(t, err)
	require.Equal(t, 1.0, failed)

	// the failed run must not advance the last-success stamp
	stamp, err := fetchGaugeValue(mfs, "coursehub_cron_job_last_success_timestamp_seconds", map[string]string{"job": "pending-order-expiry"})
	require.NoError(t, err)
	require.Equal(t, float64(at.Unix()), stamp)

	skipped := findMetricFamily(mfs, "coursehub_cron_ticks_skipped_total")
	require.NotNil(t, skipped)
	require.Equal(t, 1.0, skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestNilCronJobMetricsIsSafe(t *testing.T) {
	var m *CronJobMetrics
	m.JobFinished("x", time.Second, nil, time.Now())
	m.TickSkipped()
	NewCronJobMetrics(nil).JobFinished("", 0, errors.New("x"), time.Now())
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	metric, err := findMetric(mfs, name, labels)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	metric, err := findMetric(mfs, name, labels)
	if err != nil {
		return 0, err
	}
	return metric.GetGauge().GetValue(), nil
}

func findMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			return metric, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
