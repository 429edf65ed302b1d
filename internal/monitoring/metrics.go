package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const namespace = "xlink"

// RunMetrics exposes a fresh MetricsSnapshot on every Prometheus scrape.
type RunMetrics struct {
	collector     *Collector
	lookbackHours int
	timeout       time.Duration

	runs          *prometheus.Desc
	failRate      *prometheus.Desc
	avgElapsed    *prometheus.Desc
	stageLinks    *prometheus.Desc
	unmatched     *prometheus.Desc
	scoreLinks    *prometheus.Desc
	threshold     *prometheus.Desc
	lastLinkRunAt *prometheus.Desc
	scrapeErrors  prometheus.Counter
}

// NewRunMetrics creates a prometheus.Collector over the run history.
func NewRunMetrics(c *Collector, lookbackHours int) *RunMetrics {
	return &RunMetrics{
		collector:     c,
		lookbackHours: lookbackHours,
		timeout:       5 * time.Second,
		runs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "runs"),
			"Runs created within the lookback window by status.", []string{"status"}, nil),
		failRate: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "run_failure_rate"),
			"Failed share of finished runs within the lookback window.", nil, nil),
		avgElapsed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "run_avg_elapsed_seconds"),
			"Mean run duration within the lookback window.", nil, nil),
		stageLinks: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link_table", "links"),
			"Links in the latest completed link table by stage.", []string{"stage"}, nil),
		unmatched: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link_table", "unmatched"),
			"Source entities without a link in the latest completed link table.", nil, nil),
		scoreLinks: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link_table", "score_links"),
			"Links in the latest completed link table by score.", []string{"score"}, nil),
		threshold: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link_table", "name_threshold"),
			"Name similarity threshold of the latest completed link table by stage.", []string{"stage"}, nil),
		lastLinkRunAt: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link_table", "created_timestamp_seconds"),
			"Creation time of the latest completed link table.", nil, nil),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_scrape_errors_total",
			Help:      "Run history reads that failed during a scrape.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *RunMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		m.runs, m.failRate, m.avgElapsed, m.stageLinks, m.unmatched, m.scoreLinks, m.threshold, m.lastLinkRunAt,
	} {
		ch <- d
	}
	m.scrapeErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *RunMetrics) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	snap, err := m.collector.Collect(ctx, m.lookbackHours)
	if err != nil {
		zap.L().Warn("monitoring: metrics scrape failed", zap.Error(err))
		m.scrapeErrors.Inc()
		m.scrapeErrors.Collect(ch)
		return
	}
	m.scrapeErrors.Collect(ch)

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	gauge(m.runs, float64(snap.RunsComplete), "complete")
	gauge(m.runs, float64(snap.RunsFailed), "failed")
	gauge(m.runs, float64(snap.RunsRunning), "running")
	gauge(m.failRate, snap.FailRate)
	gauge(m.avgElapsed, float64(snap.AvgElapsedMS)/1000)

	if snap.LastLinkRunID == "" {
		return
	}
	gauge(m.stageLinks, float64(snap.PrimaryLinks), "primary")
	gauge(m.stageLinks, float64(snap.SecondaryLinks), "secondary")
	gauge(m.unmatched, float64(snap.Unmatched))
	gauge(m.threshold, snap.PrimaryThreshold, "primary")
	gauge(m.threshold, snap.SecondaryThreshold, "secondary")
	gauge(m.lastLinkRunAt, float64(snap.LastLinkRunAt.Unix()))
	for score, n := range snap.ScoreCounts {
		gauge(m.scoreLinks, float64(n), strconv.Itoa(score))
	}
}
