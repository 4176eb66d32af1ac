package frame

import (
	"github.com/rotisserie/eris"
)

// Table is a set of equal-length named columns aligned on a string index
// (the respondent ID for survey tables). Column order is insertion order.
type Table struct {
	// IndexName names the index when it is persisted. An empty name means
	// the index is positional only and is not written out.
	IndexName string
	Index     []string

	names []string
	cols  map[string]Column
}

// New creates an empty table over the given index.
func New(indexName string, index []string) *Table {
	return &Table{
		IndexName: indexName,
		Index:     index,
		cols:      make(map[string]Column),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Index) }

// Add appends a column. The column length must match the index.
func (t *Table) Add(name string, c Column) error {
	if name == "" {
		return eris.New("frame: empty column name")
	}
	if _, dup := t.cols[name]; dup {
		return eris.Errorf("frame: duplicate column %q", name)
	}
	if c.Len() != len(t.Index) {
		return eris.Errorf("frame: column %q has %d rows, index has %d", name, c.Len(), len(t.Index))
	}
	t.names = append(t.names, name)
	t.cols[name] = c
	return nil
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// Strings returns the named column when it is a string column.
func (t *Table) Strings(name string) (*Strings, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, eris.Errorf("frame: no column %q", name)
	}
	s, ok := c.(*Strings)
	if !ok {
		return nil, eris.Errorf("frame: column %q is %T, not strings", name, c)
	}
	return s, nil
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Positions maps each index value to its row. Duplicate index values are an error.
func (t *Table) Positions() (map[string]int, error) {
	pos := make(map[string]int, len(t.Index))
	for i, id := range t.Index {
		if _, dup := pos[id]; dup {
			return nil, eris.Errorf("frame: duplicate index value %q", id)
		}
		pos[id] = i
	}
	return pos, nil
}

// Reindex conforms the table to index: rows are reordered to match, rows
// whose index value is absent from t come back null, and rows of t not in
// index are dropped.
func (t *Table) Reindex(index []string) (*Table, error) {
	pos, err := t.Positions()
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(index))
	for i, id := range index {
		p, ok := pos[id]
		if !ok {
			p = -1
		}
		idx[i] = p
	}

	out := New(t.IndexName, index)
	for _, name := range t.names {
		if err := out.Add(name, t.cols[name].take(idx)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Group is a named table contributed to a grouped concat.
type Group struct {
	Name  string
	Table *Table
}

// GroupSep joins a group name and a column name in a concatenated table.
const GroupSep = "."

// Concat joins groups column-wise onto index. Every group is reindexed to
// index first, so the result has exactly one row per index value no matter
// which rows each group covers. Columns are named "<group>.<column>".
func Concat(indexName string, index []string, groups ...Group) (*Table, error) {
	out := New(indexName, index)
	for _, g := range groups {
		aligned, err := g.Table.Reindex(index)
		if err != nil {
			return nil, eris.Wrapf(err, "frame: align group %q", g.Name)
		}
		for _, name := range aligned.names {
			if err := out.Add(g.Name+GroupSep+name, aligned.cols[name]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
