package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source fetches the rows of a table matching a query.
type Source interface {
	Fetch(ctx context.Context, q Query) (*Table, error)
}

// ExtractionError reports a failed fetch of one table.
type ExtractionError struct {
	Table string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("source: extract %s: %v", e.Table, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FetchAll runs the queries concurrently. The first failure cancels the rest
// and is returned; no partial result is returned with it.
func FetchAll(ctx context.Context, src Source, queries ...Query) (map[string]*Table, error) {
	log := zap.L().With(zap.String("component", "source"))

	var mu sync.Mutex
	out := make(map[string]*Table, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			start := time.Now()
			t, err := src.Fetch(gctx, q)
			if err != nil {
				var ee *ExtractionError
				if errors.As(err, &ee) {
					return err
				}
				return &ExtractionError{Table: q.Table, Err: err}
			}
			log.Info("fetched extract",
				zap.String("table", q.Table),
				zap.Int("rows", t.Len()),
				zap.Duration("elapsed", time.Since(start)),
			)

			mu.Lock()
			out[q.Key()] = t
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
