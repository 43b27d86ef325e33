// Package report renders the operator-facing output of a batch run: one
// fixed-width row per record and a footer counting outcomes.
package report

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
)

// Column is one report column. Cells wider than Width are cut to fit.
type Column struct {
	Title string
	Width int
}

// Columns shared by most commands.
var (
	ColRO       = Column{Title: "RO", Width: 10}
	ColCustomer = Column{Title: "Customer", Width: 33}
	ColUnit     = Column{Title: "Unit", Width: 10}
	ColMonth    = Column{Title: "Month", Width: 16}
	ColResult   = Column{Title: "Result", Width: 10}
	ColDetail   = Column{Title: "Detail", Width: 40}
)

type Table struct {
	w    table.Writer
	cols []Column
	rows int
}

// NewTable prepares a table that renders to out.
func NewTable(out io.Writer, cols ...Column) *Table {
	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.Title
		configs[i] = table.ColumnConfig{Number: i + 1, WidthMin: c.Width}
	}
	w.AppendHeader(header)
	w.SetColumnConfigs(configs)

	return &Table{w: w, cols: cols}
}

// Append adds a row. Missing trailing cells render empty; extra cells are
// dropped.
func (t *Table) Append(cells ...string) {
	row := make(table.Row, len(t.cols))
	for i, c := range t.cols {
		var s string
		if i < len(cells) {
			s = cells[i]
		}
		row[i] = Fit(s, c.Width)
	}
	t.w.AppendRow(row)
	t.rows++
}

// Len is the number of rows appended so far.
func (t *Table) Len() int {
	return t.rows
}

// Render writes the table. An empty table writes nothing.
func (t *Table) Render() {
	if t.rows == 0 {
		return
	}
	t.w.Render()
}

// Fit flattens s to one line and cuts it to width display cells.
func Fit(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "")
}
