package linkage

import (
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PrepareConfig configures cleaning of the ratings history.
type PrepareConfig struct {
	// MissingCUSIP and MissingTicker are placeholder values treated as empty.
	MissingCUSIP  []string `yaml:"missing_cusip" mapstructure:"missing_cusip"`
	MissingTicker []string `yaml:"missing_ticker" mapstructure:"missing_ticker"`
	// AugustCutoffYear is the last year observed at August 31. Later years are
	// observed at December 31.
	AugustCutoffYear int `yaml:"august_cutoff_year" mapstructure:"august_cutoff_year"`
}

// DefaultPrepareConfig returns the cleaning rules of the ratings history load.
func DefaultPrepareConfig() PrepareConfig {
	return PrepareConfig{
		MissingCUSIP:     []string{"NA", "0", "#N/A"},
		MissingTicker:    []string{"NA", "#N/A"},
		AugustCutoffYear: 2000,
	}
}

// Prepared is the cleaned ratings history.
type Prepared struct {
	Rows        []HistoryRow
	Corrections *CorrectionReport
	// Unidentified counts rows left without CUSIP and ticker after filling.
	Unidentified int
}

// Prepare cleans raw history rows: identifier repair, placeholder removal,
// upper-casing, in-company back/forward fill and observation dates. Input
// order is preserved and rows are never dropped.
func Prepare(rows []HistoryRow, c *Corrector, cfg PrepareConfig) *Prepared {
	log := zap.L().With(zap.String("component", "prepare"))

	out := make([]HistoryRow, len(rows))
	copy(out, rows)

	cusips := make([]string, len(out))
	for i, r := range out {
		cusips[i] = r.CUSIP
	}
	corrected, report := c.Correct(cusips)

	missingCUSIP := toSet(cfg.MissingCUSIP)
	missingTicker := toSet(cfg.MissingTicker)
	upper := cases.Upper(language.Und)

	for i := range out {
		out[i].CUSIP = corrected[i]
		if _, ok := missingCUSIP[out[i].CUSIP]; ok {
			out[i].CUSIP = ""
		}
		if _, ok := missingTicker[out[i].Ticker]; ok {
			out[i].Ticker = ""
		}
		out[i].CompanyName = upper.String(out[i].CompanyName)
		out[i].Ticker = upper.String(out[i].Ticker)
		out[i].Date = ObservationDate(out[i].Year, cfg.AugustCutoffYear)
	}

	fillWithinGroups(out, func(r *HistoryRow) *string { return &r.CUSIP })
	fillWithinGroups(out, func(r *HistoryRow) *string { return &r.Ticker })

	p := &Prepared{Rows: out, Corrections: report}
	for _, r := range out {
		if r.CUSIP == "" && r.Ticker == "" {
			p.Unidentified++
		}
	}

	log.Info("history prepared",
		zap.Int("rows", len(out)),
		zap.Int("unidentified", p.Unidentified),
	)
	return p
}

// ObservationDate returns the date a ratings year is observed at.
func ObservationDate(year, augustCutoff int) time.Time {
	if year <= augustCutoff {
		return time.Date(year, time.August, 31, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// fillWithinGroups back-fills then forward-fills the field selected by col
// within each company, walking the company's rows in year order. Rows with
// no company name are left untouched.
func fillWithinGroups(rows []HistoryRow, col func(*HistoryRow) *string) {
	groups := make(map[string][]int)
	var order []string
	for i, r := range rows {
		if r.CompanyName == "" {
			continue
		}
		if _, ok := groups[r.CompanyName]; !ok {
			order = append(order, r.CompanyName)
		}
		groups[r.CompanyName] = append(groups[r.CompanyName], i)
	}

	for _, name := range order {
		idx := groups[name]
		sort.SliceStable(idx, func(a, b int) bool { return rows[idx[a]].Year < rows[idx[b]].Year })

		next := ""
		for j := len(idx) - 1; j >= 0; j-- {
			v := col(&rows[idx[j]])
			if *v == "" {
				*v = next
			} else {
				next = *v
			}
		}
		prev := ""
		for _, i := range idx {
			v := col(&rows[i])
			if *v == "" {
				*v = prev
			} else {
				prev = *v
			}
		}
	}
}

func toSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}
