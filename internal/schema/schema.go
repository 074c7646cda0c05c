// Package schema models destination tables independently of any database
// backend and infers column types from sampled string values. The functions
// here are pure and deterministic, which makes them straightforward to test
// and reuse across storage backends.
package schema

// Type is a backend-agnostic logical column type. Storage dialects map these
// onto concrete SQL types.
type Type string

const (
	TypeText      Type = "text"
	TypeInteger   Type = "integer"
	TypeReal      Type = "real"
	TypeBoolean   Type = "boolean"
	TypeDate      Type = "date"
	TypeTimestamp Type = "timestamp"
)

// ColumnDef describes a single column in a table definition.
type ColumnDef struct {
	Name string
	Type Type
}

// TableDef holds a table name and an ordered list of columns. The name is
// logical (unquoted, unqualified); quoting and qualification happen at the
// dialect layer.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ColumnNames returns the column names in definition order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
