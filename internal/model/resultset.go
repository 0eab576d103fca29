package model

// Field is one named value of a result row.
type Field struct {
	Name  string
	Value any
}

// Row keeps its fields in column order.
type Row []Field

// Names returns the column names of the row in order.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// ResultSet is the in-memory output of one query execution.
type ResultSet struct {
	Rows []Row
}

func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Empty reports whether the result set has no rows.
func (rs *ResultSet) Empty() bool {
	return rs.Len() == 0
}
