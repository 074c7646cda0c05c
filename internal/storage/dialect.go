package storage

import (
	"fmt"
	"strings"

	"supplyetl/internal/schema"
)

// Dialect captures the SQL differences between backends that the pipeline
// cares about: identifier quoting, placeholder style, logical-to-physical
// type mapping, materialization statements, and the two expression macros
// model files may use ({{ datediff_days }} and {{ cast_timestamp }}).
//
// TableRef must return a fully qualified, quoted reference honoring the
// configured schema where the backend supports schemas; all DDL helpers
// receive logical (unqualified) table names and qualify internally.
type Dialect interface {
	Name() string

	QuoteIdent(ident string) string
	TableRef(table string) string
	Placeholder(i int) string

	MapType(t schema.Type) string

	// DateDiffDays renders an integer day difference expression a - b.
	// Both operands are SQL expressions. NULL operands yield NULL.
	DateDiffDays(a, b string) string

	// CastTimestamp renders expr cast to the backend's timestamp type
	// (a no-op on backends without one).
	CastTimestamp(expr string) string

	// CreateTableAs returns the statement sequence that replaces table with
	// the result of query. Any previous table or view of the same name is
	// removed first.
	CreateTableAs(table, query string) []string

	// CreateViewAs is CreateTableAs for view materialization.
	CreateViewAs(table, query string) []string

	// DropRelation returns statements that remove table whether it currently
	// exists as a table or a view (or not at all).
	DropRelation(table string) []string
}

// QuoteDouble quotes an identifier with double quotes (Postgres, SQLite).
func QuoteDouble(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteBacktick quotes an identifier with backticks (MySQL).
func QuoteBacktick(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// BuildCreateTableSQL renders a CREATE TABLE statement for td against the
// given dialect. Raw-layer tables carry no constraints: source files are
// loaded verbatim and uniqueness is not enforced (full-replace semantics).
func BuildCreateTableSQL(d Dialect, td schema.TableDef) string {
	cols := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		cols[i] = fmt.Sprintf("%s %s", d.QuoteIdent(c.Name), d.MapType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.TableRef(td.Name), strings.Join(cols, ",\n  "))
}
