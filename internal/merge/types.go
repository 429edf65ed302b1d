// Package merge chains scored security links to firm identifiers and joins
// fundamentals and monthly records onto ratings observations.
package merge

import (
	"strconv"
	"time"

	"github.com/sells-group/xlink/internal/linkage"
)

const dateLayout = "2006-01-02"

// BridgeRow is one PERMNO→GVKEY link spell of the CRSP/Compustat link table.
type BridgeRow struct {
	GVKey       string
	PermNo      int64
	LinkType    string
	LinkPrim    string
	LinkDate    time.Time
	LinkEndDate time.Time // zero when the link is still open
}

// Usable reports whether the link type and primacy flags qualify the spell.
func (b BridgeRow) Usable() bool {
	return (b.LinkType == "LU" || b.LinkType == "LC") && (b.LinkPrim == "P" || b.LinkPrim == "C")
}

// ValidAt reports whether d falls inside the spell. An open end date is
// treated as today.
func (b BridgeRow) ValidAt(d, today time.Time) bool {
	end := b.LinkEndDate
	if end.IsZero() {
		end = today
	}
	return !d.Before(b.LinkDate) && !d.After(end)
}

// Fundamental is one annual Compustat record.
type Fundamental struct {
	GVKey       string
	DataDate    time.Time
	FiscalYear  int
	CompanyName string
	Sale        float64
	Assets      float64
}

// MonthlyRow is one CRSP monthly stock file record.
type MonthlyRow struct {
	PermNo int64
	Date   time.Time
	CUSIP  string
}

// SecurityRow is one Compustat security record.
type SecurityRow struct {
	GVKey  string
	IID    string
	CUSIP  string
	Ticker string
}

// YearLink ties one ratings observation to a firm.
type YearLink struct {
	CompanyName    string
	Year           int
	CUSIP          string
	Ticker         string
	PermNo         int64
	GVKey          string
	Score          int
	NameSimilarity int
}

// YearLinkColumns is the header written for YearLink tables.
var YearLinkColumns = []string{
	"companyname", "year", "cusip", "ticker", "permno", "gvkey", "score", "name_similarity",
}

// Record renders the link in YearLinkColumns order.
func (y YearLink) Record() []string {
	return []string{
		y.CompanyName,
		strconv.Itoa(y.Year),
		y.CUSIP,
		y.Ticker,
		strconv.FormatInt(y.PermNo, 10),
		y.GVKey,
		strconv.Itoa(y.Score),
		strconv.Itoa(y.NameSimilarity),
	}
}

// FirmYear is a YearLink joined with its fiscal-year fundamentals.
type FirmYear struct {
	YearLink
	Fundamental Fundamental
}

// FirmYearColumns is the header written for FirmYear tables.
var FirmYearColumns = append(append([]string{}, YearLinkColumns...),
	"datadate", "fyear", "conm", "sale", "at")

// Record renders the row in FirmYearColumns order.
func (f FirmYear) Record() []string {
	return append(f.YearLink.Record(),
		f.Fundamental.DataDate.Format(dateLayout),
		strconv.Itoa(f.Fundamental.FiscalYear),
		f.Fundamental.CompanyName,
		formatFloat(f.Fundamental.Sale),
		formatFloat(f.Fundamental.Assets),
	)
}

// MonthlyObservation is a ratings observation joined with a CRSP month
// through one of its company's links.
type MonthlyObservation struct {
	Observation linkage.HistoryRow
	Date        time.Time // last business day of the observation month
	Link        linkage.Link
	Monthly     MonthlyRow
}

// MonthlyColumns is the header written for MonthlyObservation tables.
var MonthlyColumns = []string{
	"companyname", "year", "date", "cusip_kld", "ticker_kld",
	"permno", "cusip_link", "ticker_link", "comnam", "name_similarity", "score", "cusip_crsp",
}

// Record renders the row in MonthlyColumns order.
func (m MonthlyObservation) Record() []string {
	return []string{
		m.Observation.CompanyName,
		strconv.Itoa(m.Observation.Year),
		m.Date.Format(dateLayout),
		m.Observation.CUSIP,
		m.Observation.Ticker,
		strconv.FormatInt(m.Link.PermNo, 10),
		m.Link.SourceIdentifier,
		m.Link.Ticker,
		m.Link.TargetName,
		strconv.Itoa(m.Link.NameSimilarity),
		strconv.Itoa(m.Link.Score),
		m.Monthly.CUSIP,
	}
}

// CoverageRow counts firms with fundamentals reachable in one year by each
// linking method.
type CoverageRow struct {
	Year  int `json:"year"`
	CCM   int `json:"ccm"`
	CUSIP int `json:"cusip"`
}

// CoverageColumns is the header written for coverage tables.
var CoverageColumns = []string{"year", "gvkey_ccm", "gvkey_cusip"}

// Record renders the row in CoverageColumns order.
func (c CoverageRow) Record() []string {
	return []string{strconv.Itoa(c.Year), strconv.Itoa(c.CCM), strconv.Itoa(c.CUSIP)}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
