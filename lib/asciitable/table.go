// Entrascan
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package asciitable implements a simple ASCII table formatter for printing
// tabular values into a text terminal.
package asciitable

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// Column represents a column in the table.
type Column struct {
	Title string
	// MaxCellLength truncates cells longer than this to "cell...".
	// Zero means no limit.
	MaxCellLength int
	width         int
}

// Table holds tabular values in a rows and columns format.
type Table struct {
	columns []Column
	rows    [][]string
}

// MakeTable creates a new instance of the table with given column names.
// Optionally rows to be added to the table may be included.
func MakeTable(headers []string, rows ...[]string) Table {
	t := Table{columns: make([]Column, len(headers))}
	for i := range t.columns {
		t.columns[i].Title = headers[i]
		t.columns[i].width = len(headers[i])
	}
	for _, row := range rows {
		t.AddRow(row)
	}
	return t
}

// MakeTableWithTruncatedColumn creates a table where the column matching
// truncatedColumn is shortened to make the table fit the terminal width.
func MakeTableWithTruncatedColumn(columnOrder []string, rows [][]string, truncatedColumn string) Table {
	// With fewer than two columns there is no width left to apportion.
	if len(columnOrder) < 2 {
		return MakeTable(columnOrder, rows...)
	}
	width, _, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil || width == 0 {
		width = 80
	}
	truncatedColMinSize := 16
	maxColWidth := (width - truncatedColMinSize) / (len(columnOrder) - 1)

	t := MakeTable(nil)
	totalLen := 0
	columns := []Column{}
	for colIndex, colName := range columnOrder {
		column := Column{
			Title:         colName,
			MaxCellLength: len(colName),
		}
		if colName == truncatedColumn { // sized separately below
			columns = append(columns, column)
			continue
		}
		for _, row := range rows {
			column.MaxCellLength = max(column.MaxCellLength, len(row[colIndex]))
		}
		if column.MaxCellLength > maxColWidth {
			column.MaxCellLength = maxColWidth
			totalLen += column.MaxCellLength + 4 // "...<space>"
		} else {
			totalLen += column.MaxCellLength + 1 // +1 for column separator
		}
		columns = append(columns, column)
	}
	for _, column := range columns {
		if column.Title == truncatedColumn {
			column.MaxCellLength = max(width-totalLen-len("... "), 0)
		}
		t.AddColumn(column)
	}

	for _, row := range rows {
		t.AddRow(row)
	}
	return t
}

// AddColumn adds a column to the table's structure.
func (t *Table) AddColumn(c Column) {
	c.width = len(c.Title)
	t.columns = append(t.columns, c)
}

// AddRow adds a row of cells to the table. Cells beyond the table's columns
// are dropped.
func (t *Table) AddRow(row []string) {
	limit := min(len(row), len(t.columns))
	for i := range limit {
		cell := t.truncateCell(i, row[i])
		t.columns[i].width = max(len(cell), t.columns[i].width)
	}
	t.rows = append(t.rows, row[:limit])
}

// truncateCell truncates cell contents to shorter than the column's
// MaxCellLength.
func (t *Table) truncateCell(colIndex int, cell string) string {
	maxCellLength := t.columns[colIndex].MaxCellLength
	if maxCellLength == 0 || len(cell) <= maxCellLength {
		return cell
	}
	return fmt.Sprintf("%v...", cell[:maxCellLength])
}

// AsBuffer returns a *bytes.Buffer with the printed output of the table.
func (t *Table) AsBuffer() *bytes.Buffer {
	var buffer bytes.Buffer

	writer := tabwriter.NewWriter(&buffer, 5, 0, 1, ' ', 0)
	template := strings.Repeat("%v\t", len(t.columns))

	// Header and separator.
	var colh []any
	var cols []any
	for _, col := range t.columns {
		colh = append(colh, col.Title)
		cols = append(cols, strings.Repeat("-", col.width))
	}
	fmt.Fprintf(writer, template+"\n", colh...)
	fmt.Fprintf(writer, template+"\n", cols...)

	// Body.
	for _, row := range t.rows {
		var rowi []any
		for i := range row {
			rowi = append(rowi, t.truncateCell(i, row[i]))
		}
		fmt.Fprintf(writer, template+"\n", rowi...)
	}

	writer.Flush()
	return &buffer
}
