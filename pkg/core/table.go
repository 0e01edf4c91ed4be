package core

// Table is an in-memory tabular value. Procedural models produce one and
// the materializer reads a sample of every output back into one.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumRows returns the row count, treating nil as empty.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the values of the named column, or false if absent.
func (t *Table) Column(name string) ([]any, bool) {
	if t == nil {
		return nil, false
	}
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}
