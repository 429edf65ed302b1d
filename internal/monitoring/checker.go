package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
)

// Checker runs periodic alert checks in the background. An alert is sent
// when its condition first holds and again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	firing map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		firing:    make(map[AlertType]bool),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot, evaluates it and sends the alerts that were
// not already firing. It returns the newly raised alerts. Check is not safe
// for concurrent use.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	triggered := c.alerter.Evaluate(snap)
	now := make(map[AlertType]bool, len(triggered))
	var raised []Alert
	for _, a := range triggered {
		now[a.Type] = true
		if !c.firing[a.Type] {
			raised = append(raised, a)
		}
	}
	for t := range c.firing {
		if !now[t] {
			log.Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.firing = now

	if len(raised) == 0 {
		log.Debug("monitoring: no new alerts", zap.Int("firing", len(now)))
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, raised)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_raised", len(raised)),
		zap.Int("alerts_sent", sent),
		zap.Int("firing", len(now)),
	)
	return raised
}
