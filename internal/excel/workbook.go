// Package excel reads service department workbooks exported from Google
// Sheets. The first row of every sheet is the header row.
package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/normalize"
)

// Sheet is one worksheet after normalization.
type Sheet struct {
	Name    string
	Headers []string
	Orders  []models.Order
	// Invalid counts rows that had data but lacked customer, unit or RO.
	Invalid int
}

// IsActive reports whether the sheet holds current work in progress.
// Every other sheet is an archive bucket named after its month.
func (s Sheet) IsActive() bool {
	name := strings.ToLower(s.Name)
	return strings.Contains(name, "current") || strings.Contains(name, "wip")
}

// ArchiveMonth is the bucket label for an archive sheet.
func (s Sheet) ArchiveMonth() string {
	return strings.TrimSpace(s.Name)
}

// ReadWorkbook loads every sheet of the workbook in tab order.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		sheets = append(sheets, parseSheet(name, rows))
	}
	return sheets, nil
}

func parseSheet(name string, rows [][]string) Sheet {
	sheet := Sheet{Name: name}
	if len(rows) == 0 {
		return sheet
	}

	for _, h := range rows[0] {
		sheet.Headers = append(sheet.Headers, strings.TrimSpace(h))
	}

	for _, row := range rows[1:] {
		if blankLead(row, 3) {
			continue
		}

		values := make(map[string]string, len(sheet.Headers))
		for i, header := range sheet.Headers {
			if header == "" {
				continue
			}
			if i < len(row) {
				values[header] = row[i]
			} else {
				values[header] = ""
			}
		}

		o, ok := normalize.FromMap(values)
		if !ok || !normalize.HasRequired(o) {
			sheet.Invalid++
			continue
		}
		sheet.Orders = append(sheet.Orders, o)
	}
	return sheet
}

// blankLead reports whether the first n cells of row are all empty.
func blankLead(row []string, n int) bool {
	for i := 0; i < n && i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return false
		}
	}
	return true
}
