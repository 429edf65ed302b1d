package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/export"
	"github.com/sells-group/xlink/internal/fetcher"
	"github.com/sells-group/xlink/internal/linkage"
	"github.com/sells-group/xlink/internal/resilience"
	"github.com/sells-group/xlink/internal/source"
	"github.com/sells-group/xlink/internal/store"
)

// initSource builds the configured extract source wrapped in transient-error
// retries. The returned close function releases any pool.
func initSource(ctx context.Context, c *config.Config) (source.Source, func(), error) {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.Source.MaxRetries + 1

	switch c.Source.Driver {
	case "postgres":
		pool, err := store.OpenPool(ctx, c.Source.DatabaseURL, nil)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open source database")
		}
		return source.NewRetrying(source.NewPostgres(pool), retry), pool.Close, nil
	case source.FormatCSV, source.FormatXLSX:
		var fetch fetcher.Fetcher
		if c.Source.BaseURL != "" {
			fetch = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:     "xlink/1.0",
				Timeout:       time.Duration(c.Source.TimeoutSecs) * time.Second,
				MaxRetries:    c.Source.MaxRetries,
				RatePerSecond: c.Source.RatePerSecond,
			})
		}
		fs := source.NewFile(source.FileConfig{
			Dir:     c.Source.Dir,
			BaseURL: c.Source.BaseURL,
			Format:  c.Source.Driver,
			Zipped:  c.Source.Zipped,
		}, fetch)
		return source.NewRetrying(fs, retry), func() {}, nil
	default:
		return nil, nil, eris.Errorf("unsupported source driver: %s", c.Source.Driver)
	}
}

// initStore opens the run history backend. It returns a nil store for the
// "none" driver.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "xlink.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// linkerConfig maps the link section onto the engine settings.
func linkerConfig(c config.LinkConfig) linkage.Config {
	lc := linkage.DefaultConfig()
	lc.Corrector = linkage.CorrectorConfig{
		ExcludedTargets: c.ExcludedTargets,
		Manual:          c.Manual,
	}
	if c.MissingCUSIP != nil {
		lc.Prepare.MissingCUSIP = c.MissingCUSIP
	}
	if c.MissingTicker != nil {
		lc.Prepare.MissingTicker = c.MissingTicker
	}
	if c.AugustCutoffYear != 0 {
		lc.Prepare.AugustCutoffYear = c.AugustCutoffYear
	}
	if c.NamePercentile > 0 {
		lc.NamePercentile = c.NamePercentile
	}
	if c.SecondaryPool != "" {
		lc.SecondaryPool = linkage.ThresholdPool(c.SecondaryPool)
	}
	return lc
}

// outputSpec says where and how a command writes its table.
type outputSpec struct {
	Path      string
	Format    string
	Delimiter rune
}

// resolveOutput fills unset fields from the output section. A path of "-"
// writes delimited text to stdout.
func resolveOutput(c config.OutputConfig, path, format, defaultName string) outputSpec {
	out := outputSpec{Path: path, Format: format, Delimiter: ','}
	if d := []rune(c.Delimiter); len(d) == 1 {
		out.Delimiter = d[0]
	}
	if out.Format == "" {
		out.Format = c.Format
	}
	if out.Path == "" {
		out.Path = defaultName + "." + out.Format
	}
	if format == "" && out.Path != "-" {
		out.Format = export.FormatFor(out.Path)
	}
	return out
}

func (o outputSpec) write(header []string, rows [][]string) error {
	if o.Path == "-" {
		return export.WriteCSV(os.Stdout, o.Delimiter, header, rows)
	}
	if err := export.WriteFile(o.Path, o.Format, o.Delimiter, header, rows); err != nil {
		return err
	}
	zap.L().Info("output written",
		zap.String("path", o.Path),
		zap.String("format", o.Format),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// tracked records fn as a run in st when st is non-nil. fn returns the result
// to store; a failure is recorded and returned unchanged.
func tracked(ctx context.Context, st store.Store, command string, params map[string]string,
	fn func(run *store.Run) (*store.RunResult, error)) error {
	if st == nil {
		_, err := fn(nil)
		return err
	}

	run, err := st.CreateRun(ctx, command, params)
	if err != nil {
		return eris.Wrap(err, "create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("command", command))

	start := time.Now()
	result, err := fn(run)
	if err != nil {
		if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			log.Warn("failed to record run failure", zap.Error(ferr))
		}
		return err
	}
	if result == nil {
		result = &store.RunResult{}
	}
	if result.ElapsedMS == 0 {
		result.ElapsedMS = time.Since(start).Milliseconds()
	}
	if err := st.CompleteRun(ctx, run.ID, result); err != nil {
		return eris.Wrap(err, "complete run")
	}
	log.Info("run recorded", zap.Int64("elapsed_ms", result.ElapsedMS))
	return nil
}

// sourceParams describes the source of a run for its stored params.
func sourceParams(c *config.Config) map[string]string {
	p := map[string]string{"source": c.Source.Driver}
	if c.Source.Driver == "postgres" {
		return p
	}
	if c.Source.BaseURL != "" {
		p["base_url"] = c.Source.BaseURL
	} else {
		p["dir"] = c.Source.Dir
	}
	return p
}

// fetchLinkInputs fetches the extracts every linked command needs plus
// extra, and runs the linker.
func fetchLinkInputs(ctx context.Context, src source.Source, lc linkage.Config, extra ...source.Query) (*linkage.Result, map[string]*source.Table, error) {
	queries := append([]source.Query{source.HistoryQuery(), source.StockNamesQuery()}, extra...)
	tables, err := source.FetchAll(ctx, src, queries...)
	if err != nil {
		return nil, nil, err
	}

	history, err := source.DecodeHistory(tables[source.TableHistory])
	if err != nil {
		return nil, nil, err
	}
	names, err := source.DecodeNames(tables[source.TableStockNames])
	if err != nil {
		return nil, nil, err
	}

	res, err := linkage.NewLinker(lc).Link(history, names)
	if err != nil {
		return nil, nil, err
	}
	return res, tables, nil
}
