// Package export writes a list of submissions as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// SheetName is the worksheet written in XLSX exports.
const SheetName = "Submissions"

// Header is the column order of every export.
var Header = []string{"ID", "Name", "Email", "Company", "Status", "Submitted"}

// ParseFormat accepts csv, xlsx and excel (an alias of xlsx).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "xlsx", "excel", "":
		return XLSX, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (f Format) Filename() string {
	return "submissions." + string(f)
}

// Row returns the export columns of s.
func Row(s fsclient.Submission) []string {
	return []string{
		s.ID,
		s.FullLegalName,
		s.Email,
		s.CompanyName,
		string(s.CurrentStatus()),
		s.CreatedAt,
	}
}

// Neutralize prefixes v with a single quote when a spreadsheet would read it
// as a formula.
func Neutralize(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// Cells is Row with every value passed through Neutralize.
func Cells(s fsclient.Submission) []string {
	row := Row(s)
	for i, v := range row {
		row[i] = Neutralize(v)
	}
	return row
}

// Write encodes items in format f to w.
func Write(w io.Writer, f Format, items []fsclient.Submission) error {
	switch f {
	case CSV:
		return writeCSV(w, items)
	case XLSX:
		return writeXLSX(w, items)
	}
	return fmt.Errorf("export: unknown format %q", f)
}

func writeCSV(w io.Writer, items []fsclient.Submission) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range items {
		if err := cw.Write(Cells(items[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, items []fsclient.Submission) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	for i := range items {
		if err := setRow(f, i+2, Cells(items[i])); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("export: row %d: %w", row, err)
	}
	return nil
}
