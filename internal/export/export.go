// Package export writes link tables and merged outputs as delimited or XLSX files.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Recorder is a row that renders itself as strings in header order.
type Recorder interface {
	Record() []string
}

// Records renders items into rows.
func Records[T Recorder](items []T) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = it.Record()
	}
	return rows
}

// WriteCSV writes the header followed by rows. A zero delimiter means comma.
func WriteCSV(w io.Writer, delimiter rune, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}

	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return eris.Errorf("export: row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// WriteXLSX writes the header and rows to a single sheet at path. Every cell
// is a string so identifiers with leading zeros survive.
func WriteXLSX(path, sheetName string, header []string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", sheetName)
	}

	addRow(sheet, header)
	for _, r := range rows {
		addRow(sheet, r)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// WriteFile writes a table to path in the given format. An empty format is
// inferred from the file extension.
func WriteFile(path, format string, delimiter rune, header []string, rows [][]string) error {
	if format == "" {
		format = FormatFor(path)
	}

	switch format {
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		defer f.Close()
		if err := WriteCSV(f, delimiter, header, rows); err != nil {
			return err
		}
		return eris.Wrapf(f.Close(), "export: close %s", path)
	case FormatXLSX:
		return WriteXLSX(path, sheetFor(path), header, rows)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}

// FormatFor maps a file extension to an output format, defaulting to CSV.
func FormatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// sheetFor names the sheet after the file, within the 31 character limit.
func sheetFor(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = "Sheet1"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
