package export

import (
	"io"
	"strconv"

	"github.com/sells-group/xlink/internal/linkage"
)

// LinkColumns is the outbound link table header, in contract order.
var LinkColumns = []string{
	"source_identifier",
	"ticker",
	"target_id",
	"company_name",
	"target_name",
	"name_similarity",
	"score",
}

// LinkRecord renders a link in LinkColumns order.
func LinkRecord(l linkage.Link) []string {
	return []string{
		l.SourceIdentifier,
		l.Ticker,
		l.TargetID(),
		l.CompanyName,
		l.TargetName,
		strconv.Itoa(l.NameSimilarity),
		strconv.Itoa(l.Score),
	}
}

// LinkRows renders every link of a table.
func LinkRows(table *linkage.LinkTable) [][]string {
	rows := make([][]string, len(table.Links))
	for i, l := range table.Links {
		rows[i] = LinkRecord(l)
	}
	return rows
}

// WriteLinks writes a link table as delimited text.
func WriteLinks(w io.Writer, delimiter rune, table *linkage.LinkTable) error {
	return WriteCSV(w, delimiter, LinkColumns, LinkRows(table))
}

// WriteLinksFile writes a link table to path as CSV or XLSX.
func WriteLinksFile(path, format string, delimiter rune, table *linkage.LinkTable) error {
	return WriteFile(path, format, delimiter, LinkColumns, LinkRows(table))
}
