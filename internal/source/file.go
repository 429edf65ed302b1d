package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/fetcher"
)

// File formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// FileConfig locates extract files. Each table is one file named after it
// ("crsp.stocknames.csv"), read from Dir or downloaded from BaseURL.
type FileConfig struct {
	Dir     string
	BaseURL string
	Format  string // csv or xlsx
	// Zipped expects "<table>.csv.zip" archives holding a single CSV.
	Zipped bool
	CSV    fetcher.CSVOptions
}

// File fetches extracts from CSV or XLSX files and applies the query in
// memory.
type File struct {
	cfg   FileConfig
	fetch fetcher.Fetcher
}

// NewFile creates a file source. fetch is only used when BaseURL is set.
func NewFile(cfg FileConfig, fetch fetcher.Fetcher) *File {
	if cfg.Format == "" {
		cfg.Format = FormatCSV
	}
	return &File{cfg: cfg, fetch: fetch}
}

// FileName returns the file name holding table.
func (f *File) FileName(table string) string {
	name := table + "." + f.cfg.Format
	if f.cfg.Zipped && f.cfg.Format == FormatCSV {
		name += ".zip"
	}
	return name
}

// Fetch implements Source.
func (f *File) Fetch(ctx context.Context, q Query) (*Table, error) {
	tmp, err := os.MkdirTemp("", "xlink-extract-*")
	if err != nil {
		return nil, &ExtractionError{Table: q.Table, Err: eris.Wrap(err, "create temp dir")}
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	path, err := f.locate(ctx, q.Table, tmp)
	if err != nil {
		return nil, &ExtractionError{Table: q.Table, Err: err}
	}

	t, err := f.read(ctx, q.Table, path, tmp)
	if err != nil {
		return nil, &ExtractionError{Table: q.Table, Err: err}
	}

	t, err = Apply(q, t)
	if err != nil {
		return nil, &ExtractionError{Table: q.Table, Err: err}
	}
	return t, nil
}

func (f *File) locate(ctx context.Context, table, tmp string) (string, error) {
	name := f.FileName(table)
	if f.cfg.BaseURL == "" {
		path := filepath.Join(f.cfg.Dir, name)
		if _, err := os.Stat(path); err != nil {
			return "", eris.Wrapf(err, "stat %s", path)
		}
		return path, nil
	}

	if f.fetch == nil {
		return "", eris.New("no fetcher configured for base_url")
	}
	url := strings.TrimRight(f.cfg.BaseURL, "/") + "/" + name
	path := filepath.Join(tmp, name)
	n, err := f.fetch.DownloadToFile(ctx, url, path)
	if err != nil {
		return "", eris.Wrapf(err, "download %s", url)
	}
	zap.L().With(zap.String("component", "source")).Debug("downloaded extract",
		zap.String("url", url),
		zap.Int64("bytes", n),
	)
	return path, nil
}

func (f *File) read(ctx context.Context, table, path, tmp string) (*Table, error) {
	if f.cfg.Format == FormatXLSX {
		header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return NewTable(table, header, rows), nil
	}

	if f.cfg.Zipped {
		extracted, err := fetcher.ExtractZIPSingle(path, tmp)
		if err != nil {
			return nil, err
		}
		path = extracted
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(ctx, fh, f.cfg.CSV)
	if err != nil {
		return nil, err
	}
	return NewTable(table, header, rows), nil
}

// Apply evaluates q against an in-memory table: filter, project, then
// de-duplicate when q.Distinct is set. Conditions on columns the file does
// not carry are dropped, since pre-screened extracts omit the screen columns.
func Apply(q Query, t *Table) (*Table, error) {
	q.Where = prune(q.Where, t)

	var kept [][]string
	for _, row := range t.Rows {
		if q.Match(t, row) {
			kept = append(kept, row)
		}
	}
	filtered := NewTable(t.Name, t.Columns, kept)

	out, err := filtered.Project(q.Columns)
	if err != nil {
		return nil, err
	}
	if !q.Distinct {
		return out, nil
	}

	seen := make(map[string]struct{}, len(out.Rows))
	var unique [][]string
	for _, row := range out.Rows {
		k := strings.Join(row, "\x00")
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, row)
	}
	return NewTable(out.Name, out.Columns, unique), nil
}

func prune(conds []Condition, t *Table) []Condition {
	var out []Condition
	for _, c := range conds {
		if len(c.Any) > 0 {
			if sub := prune(c.Any, t); len(sub) == len(c.Any) {
				out = append(out, c)
				continue
			}
		} else if t.Index(c.Column) >= 0 {
			out = append(out, c)
			continue
		}
		zap.L().With(zap.String("component", "source")).Warn("dropping filter on missing column",
			zap.String("table", t.Name),
			zap.String("column", c.Column),
		)
	}
	return out
}
