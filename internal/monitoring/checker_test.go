package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/store"
)

func TestChecker_Check(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	var runs []store.Run
	for i := 0; i < 6; i++ {
		runs = append(runs, store.Run{ID: "f", Command: CommandLink, Status: store.RunStatusFailed, CreatedAt: now.Add(-time.Minute)})
	}
	cfg := config.MonitoringConfig{WebhookURL: srv.URL, LookbackWindowHours: 24, FailureRateThreshold: 0.5}

	c := NewChecker(NewCollector(&mockStore{runs: runs}), NewAlerter(cfg), cfg)
	alerts := c.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, int32(1), hits.Load())
}

func TestChecker_RaisesOncePerIncident(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	failing := make([]store.Run, 6)
	for i := range failing {
		failing[i] = store.Run{ID: "f", Command: CommandLink, Status: store.RunStatusFailed, CreatedAt: now.Add(-time.Minute)}
	}
	st := &mockStore{runs: failing}
	cfg := config.MonitoringConfig{WebhookURL: srv.URL, LookbackWindowHours: 24, FailureRateThreshold: 0.5}
	c := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	require.Len(t, c.Check(context.Background()), 1)
	assert.Empty(t, c.Check(context.Background()))
	assert.Equal(t, int32(1), hits.Load())

	st.runs = nil
	assert.Empty(t, c.Check(context.Background()))

	st.runs = failing
	require.Len(t, c.Check(context.Background()), 1)
	assert.Equal(t, int32(2), hits.Load())
}

func TestChecker_CollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	c := NewChecker(NewCollector(&mockStore{listErr: errors.New("boom")}), NewAlerter(cfg), cfg)
	assert.Nil(t, c.Check(context.Background()))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24}
	c := NewChecker(NewCollector(&mockStore{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop")
	}
}
