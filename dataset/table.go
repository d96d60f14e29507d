// Package dataset reads and writes the tabular employee records the
// attrition pipeline works on.
//
// A Table keeps every cell as the string found in the source file. Typing
// is left to the encoder, which knows which columns are categorical.
package dataset

import (
	"fmt"
	"strconv"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// Table is an ordered header plus rows of string cells.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string

	// Source is the path the table was loaded from, empty for tables built in memory.
	Source string
}

// NewTable builds a Table from a header and rows. Short rows are padded with
// empty cells; rows longer than the header are a FormatError.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	t := &Table{Columns: append([]string(nil), columns...)}
	if err := validateHeader("", t.Columns); err != nil {
		return nil, err
	}
	t.Rows = make([][]string, 0, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, errors.NewCellFormatError("", "", i+2,
				fmt.Sprintf("row has %d cells but header has %d", len(row), len(columns)))
		}
		t.Rows = append(t.Rows, padRow(row, len(columns)))
	}
	return t, nil
}

// NumRows returns the number of records.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, errors.NewSchemaError(name, "requested", t.Columns)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// ValueCounts counts the distinct values of the named column.
func (t *Table) ValueCounts(name string) (map[string]int, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	return counts, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
		Source:  t.Source,
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// WithColumn returns a copy of the table with values appended as the last
// column. The receiver is left untouched.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if _, exists := t.ColumnIndex(name); exists {
		return nil, errors.NewValidationError("column", "already exists", name)
	}
	if len(values) != len(t.Rows) {
		return nil, errors.NewDimensionError("Table.WithColumn", len(t.Rows), len(values), 0)
	}

	out := &Table{
		Columns: append(append([]string(nil), t.Columns...), name),
		Rows:    make([][]string, len(t.Rows)),
		Source:  t.Source,
	}
	for i, row := range t.Rows {
		r := make([]string, 0, len(row)+1)
		r = append(r, row...)
		out.Rows[i] = append(r, values[i])
	}
	return out, nil
}

// WithFloatColumn is WithColumn for numeric values, formatted with the
// shortest representation that round-trips.
func (t *Table) WithFloatColumn(name string, values []float64) (*Table, error) {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = FormatNumber(v)
	}
	return t.WithColumn(name, cells)
}

// FormatNumber formats v the way numeric cells are stored in a Table.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func padRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func validateHeader(path string, columns []string) error {
	if len(columns) == 0 {
		return errors.NewFormatError(path, "missing header row", nil)
	}
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return errors.NewFormatError(path, fmt.Sprintf("blank header in column %d", i+1), nil)
		}
		if prev, dup := seen[c]; dup {
			return errors.NewFormatError(path,
				fmt.Sprintf("duplicate header %q in columns %d and %d", c, prev+1, i+1), nil)
		}
		seen[c] = i
	}
	return nil
}
