package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/xlink/internal/linkage"
	"github.com/sells-group/xlink/internal/merge"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"20060102",
	"01/02/2006",
}

// ParseDate parses the date renderings found in extracts. "" and the "E"
// open-end marker parse to the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "E" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized date %q", s)
}

// parseInt accepts integral floats ("10001.0") as WRDS renders PERMNO.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, eris.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("not a number: %q", s)
	}
	return f, nil
}

// decoder reads named columns of a table row by row, remembering the first
// error with its position.
type decoder struct {
	t   *Table
	row int
	err error
}

func newDecoder(t *Table, required ...string) (*decoder, error) {
	for _, c := range required {
		if t.Index(c) < 0 {
			return nil, eris.Errorf("source: %s has no column %q", t.Name, c)
		}
	}
	return &decoder{t: t}, nil
}

func (d *decoder) str(col string, alts ...string) string {
	for _, c := range append([]string{col}, alts...) {
		if i := d.t.Index(c); i >= 0 && i < len(d.t.Rows[d.row]) {
			return strings.TrimSpace(d.t.Rows[d.row][i])
		}
	}
	return ""
}

func (d *decoder) fail(col string, err error) {
	if d.err == nil {
		d.err = eris.Wrapf(err, "source: %s row %d column %s", d.t.Name, d.row+1, col)
	}
}

func (d *decoder) int(col string) int64 {
	n, err := parseInt(d.str(col))
	if err != nil {
		d.fail(col, err)
	}
	return n
}

func (d *decoder) float(col string) float64 {
	f, err := parseFloat(d.str(col))
	if err != nil {
		d.fail(col, err)
	}
	return f
}

func (d *decoder) date(col string, alts ...string) time.Time {
	t, err := ParseDate(d.str(col, alts...))
	if err != nil {
		d.fail(col, err)
	}
	return t
}

func decodeRows[T any](t *Table, required []string, fn func(d *decoder) T) ([]T, error) {
	d, err := newDecoder(t, required...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, t.Len())
	for d.row = 0; d.row < t.Len(); d.row++ {
		v := fn(d)
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeHistory reads ratings history rows. Values are raw; the linker
// prepares them.
func DecodeHistory(t *Table) ([]linkage.HistoryRow, error) {
	return decodeRows(t, []string{"companyname", "cusip", "ticker", "year"}, func(d *decoder) linkage.HistoryRow {
		return linkage.HistoryRow{
			CompanyName: d.str("companyname"),
			CUSIP:       d.str("cusip"),
			Ticker:      d.str("ticker"),
			Year:        int(d.int("year")),
		}
	})
}

// DecodeNames reads name spells from crsp.stocknames or crsp.msenames, which
// spell the end date column differently.
func DecodeNames(t *Table) ([]linkage.NameRow, error) {
	return decodeRows(t, []string{"permno", "ncusip", "namedt"}, func(d *decoder) linkage.NameRow {
		return linkage.NameRow{
			PermNo:      d.int("permno"),
			NCUSIP:      d.str("ncusip"),
			Ticker:      d.str("ticker"),
			CompanyName: d.str("comnam"),
			NameDate:    d.date("namedt"),
			NameEndDate: d.date("nameenddt", "nameendt"),
		}
	})
}

// DecodeBridge reads link table spells.
func DecodeBridge(t *Table) ([]merge.BridgeRow, error) {
	return decodeRows(t, []string{"gvkey", "lpermno", "linkdt"}, func(d *decoder) merge.BridgeRow {
		return merge.BridgeRow{
			GVKey:       d.str("gvkey"),
			PermNo:      d.int("lpermno"),
			LinkType:    d.str("linktype"),
			LinkPrim:    d.str("linkprim"),
			LinkDate:    d.date("linkdt"),
			LinkEndDate: d.date("linkenddt"),
		}
	})
}

// DecodeFundamentals reads annual fundamentals.
func DecodeFundamentals(t *Table) ([]merge.Fundamental, error) {
	return decodeRows(t, []string{"gvkey", "datadate"}, func(d *decoder) merge.Fundamental {
		return merge.Fundamental{
			GVKey:       d.str("gvkey"),
			DataDate:    d.date("datadate"),
			FiscalYear:  int(d.int("fyear")),
			CompanyName: d.str("conm"),
			Sale:        d.float("sale"),
			Assets:      d.float("at"),
		}
	})
}

// DecodeMonthly reads monthly stock file keys.
func DecodeMonthly(t *Table) ([]merge.MonthlyRow, error) {
	return decodeRows(t, []string{"permno", "date"}, func(d *decoder) merge.MonthlyRow {
		return merge.MonthlyRow{
			PermNo: d.int("permno"),
			Date:   d.date("date"),
			CUSIP:  d.str("cusip"),
		}
	})
}

// DecodeSecurities reads Compustat securities.
func DecodeSecurities(t *Table) ([]merge.SecurityRow, error) {
	return decodeRows(t, []string{"gvkey", "cusip"}, func(d *decoder) merge.SecurityRow {
		return merge.SecurityRow{
			GVKey:  d.str("gvkey"),
			IID:    d.str("iid"),
			CUSIP:  d.str("cusip"),
			Ticker: d.str("tic"),
		}
	})
}
