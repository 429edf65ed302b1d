// Package monitoring summarizes the run history for alerts and metrics.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/xlink/internal/store"
)

// CommandLink is the run command that produces link tables.
const CommandLink = "link"

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`
	AvgElapsedMS int64   `json:"avg_elapsed_ms"`

	// Latest completed link run, if any.
	LastLinkRunID      string      `json:"last_link_run_id,omitempty"`
	LastLinkRunAt      time.Time   `json:"last_link_run_at,omitempty"`
	SourceEntities     int         `json:"source_entities"`
	PrimaryLinks       int         `json:"primary_links"`
	SecondaryLinks     int         `json:"secondary_links"`
	Unmatched          int         `json:"unmatched"`
	UnmatchedRate      float64     `json:"unmatched_rate"`
	PrimaryThreshold   float64     `json:"primary_threshold"`
	SecondaryThreshold float64     `json:"secondary_threshold"`
	ScoreCounts        map[int]int `json:"score_counts,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of store.Store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error)
}

// Collector gathers metrics from the run history.
type Collector struct {
	store RunLister
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalElapsed int64
	var timed int64

	// Runs arrive newest first.
	for _, r := range runs {
		switch r.Status {
		case store.RunStatusComplete:
			snap.RunsComplete++
		case store.RunStatusFailed:
			snap.RunsFailed++
		case store.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Result == nil {
			continue
		}
		totalElapsed += r.Result.ElapsedMS
		timed++
		if snap.LastLinkRunID == "" && r.Command == CommandLink && r.Status == store.RunStatusComplete {
			snap.recordLinkRun(r)
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if timed > 0 {
		snap.AvgElapsedMS = totalElapsed / timed
	}

	return snap, nil
}

func (s *MetricsSnapshot) recordLinkRun(r store.Run) {
	st := r.Result.Stats
	s.LastLinkRunID = r.ID
	s.LastLinkRunAt = r.CreatedAt
	s.SourceEntities = st.SourceEntities
	s.PrimaryLinks = st.PrimaryLinks
	s.SecondaryLinks = st.SecondaryLinks
	s.Unmatched = st.Unmatched
	s.PrimaryThreshold = st.PrimaryThreshold
	s.SecondaryThreshold = st.SecondaryThreshold
	s.ScoreCounts = st.ScoreCounts
	if st.SourceEntities > 0 {
		s.UnmatchedRate = float64(st.Unmatched) / float64(st.SourceEntities)
	}
}
