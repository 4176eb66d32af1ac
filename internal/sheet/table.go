package sheet

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus data rows read from a sheet.
type Table struct {
	Header []string
	Rows   [][]string

	// SourceRows holds the 1-based sheet row of each data row, for error messages.
	SourceRows []int

	colIdx map[string]int
}

// NewTable treats the first row as the header. Rows whose cells are all
// blank are dropped; spreadsheet exports often carry trailing empty rows.
func NewTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("sheet: no header row")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{Header: header, colIdx: mapColumns(header)}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
		t.SourceRows = append(t.SourceRows, i+2)
	}
	return t, nil
}

// ReadFile loads a table from an .xlsx or .csv file. sheetName selects the
// worksheet for XLSX input and is ignored for CSV.
func ReadFile(path, sheetName string) (*Table, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		var err error
		rows, err = ReadXLSX(path, XLSXOptions{SheetName: sheetName})
		if err != nil {
			return nil, err
		}
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(f, CSVOptions{LazyQuotes: true})
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: read %s", path)
		}
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}

	t, err := NewTable(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: %s", path)
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the header contains name.
func (t *Table) Has(name string) bool {
	_, ok := t.colIdx[normalizeCol(name)]
	return ok
}

// Missing returns the names not present in the header, in the order given.
func (t *Table) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !t.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Value gets a cell by column name. Absent columns and short rows read as "".
func (t *Table) Value(row int, name string) string {
	return getCol(t.Rows[row], t.colIdx, name)
}

// Column returns the trimmed values of one column.
func (t *Table) Column(name string) ([]string, error) {
	idx, ok := t.colIdx[normalizeCol(name)]
	if !ok {
		return nil, eris.Errorf("sheet: no column %q", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = strings.TrimSpace(row[idx])
		}
	}
	return out, nil
}

// normalizeCol lowercases and trims for header matching, so "Route_Name" and
// "ROUTE_NAME " resolve to the same column.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapColumns builds a normalized column name → index map. The first
// occurrence of a repeated header wins.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		key := normalizeCol(col)
		if key == "" {
			continue
		}
		if _, seen := m[key]; seen {
			continue
		}
		m[key] = i
	}
	return m
}

func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
