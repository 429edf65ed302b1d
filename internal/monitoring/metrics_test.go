package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labeled(f *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestRunMetrics_Collect(t *testing.T) {
	ms := &mockStore{runs: sampleRuns(time.Now().UTC())}
	families := gather(t, NewRunMetrics(NewCollector(ms), 24))

	require.Contains(t, families, "xlink_runs")
	assert.Equal(t, map[string]float64{"complete": 3, "failed": 1, "running": 1}, labeled(families["xlink_runs"], "status"))

	require.Contains(t, families, "xlink_run_failure_rate")
	assert.InDelta(t, 0.25, families["xlink_run_failure_rate"].GetMetric()[0].GetGauge().GetValue(), 1e-9)

	require.Contains(t, families, "xlink_link_table_links")
	assert.Equal(t, map[string]float64{"primary": 6, "secondary": 2}, labeled(families["xlink_link_table_links"], "stage"))
	assert.Equal(t, map[string]float64{"0": 6, "5": 2}, labeled(families["xlink_link_table_score_links"], "score"))
	assert.Equal(t, map[string]float64{"primary": 72, "secondary": 61}, labeled(families["xlink_link_table_name_threshold"], "stage"))
}

func TestRunMetrics_NoLinkRun(t *testing.T) {
	families := gather(t, NewRunMetrics(NewCollector(&mockStore{}), 24))
	assert.Contains(t, families, "xlink_runs")
	assert.NotContains(t, families, "xlink_link_table_links")
}

func TestRunMetrics_ScrapeError(t *testing.T) {
	families := gather(t, NewRunMetrics(NewCollector(&mockStore{listErr: errors.New("db down")}), 24))
	require.Contains(t, families, "xlink_metrics_scrape_errors_total")
	assert.InDelta(t, 1, families["xlink_metrics_scrape_errors_total"].GetMetric()[0].GetCounter().GetValue(), 1e-9)
	assert.NotContains(t, families, "xlink_runs")
}
