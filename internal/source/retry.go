package source

import (
	"context"

	"github.com/sells-group/xlink/internal/resilience"
)

// Retrying retries transient fetch failures of the wrapped source.
type Retrying struct {
	src Source
	cfg resilience.RetryConfig
}

// NewRetrying wraps src with cfg.
func NewRetrying(src Source, cfg resilience.RetryConfig) *Retrying {
	return &Retrying{src: src, cfg: cfg}
}

// Fetch implements Source.
func (r *Retrying) Fetch(ctx context.Context, q Query) (*Table, error) {
	cfg := r.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(q.Table)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Table, error) {
		return r.src.Fetch(ctx, q)
	})
}
