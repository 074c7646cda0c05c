package sqlite

import (
	"fmt"

	"supplyetl/internal/schema"
	"supplyetl/internal/storage"
)

// Dialect implements storage.Dialect for SQLite. SQLite has no schemas; the
// configured schema, if any, is ignored.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) QuoteIdent(id string) string { return storage.QuoteDouble(id) }

func (Dialect) TableRef(table string) string { return storage.QuoteDouble(table) }

func (Dialect) Placeholder(int) string { return "?" }

// MapType maps logical types onto SQLite storage classes. Temporal values are
// stored as text; booleans as 0/1 integers.
func (Dialect) MapType(t schema.Type) string {
	switch t {
	case schema.TypeInteger, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// DateDiffDays uses julianday over the date parts, which understands both
// "YYYY-MM-DD HH:MM:SS" and ISO-8601 text. NULL operands propagate through
// date(), julianday(), and CAST.
func (Dialect) DateDiffDays(a, b string) string {
	return fmt.Sprintf("CAST(julianday(date(%s)) - julianday(date(%s)) AS INTEGER)", a, b)
}

// CastTimestamp is a no-op: SQLite keeps temporal values as text.
func (Dialect) CastTimestamp(expr string) string { return "(" + expr + ")" }

func (d Dialect) DropRelation(table string) []string {
	ref := d.TableRef(table)
	return []string{
		"DROP VIEW IF EXISTS " + ref,
		"DROP TABLE IF EXISTS " + ref,
	}
}

func (d Dialect) CreateTableAs(table, query string) []string {
	return append(d.DropRelation(table),
		fmt.Sprintf("CREATE TABLE %s AS\n%s", d.TableRef(table), query))
}

func (d Dialect) CreateViewAs(table, query string) []string {
	return append(d.DropRelation(table),
		fmt.Sprintf("CREATE VIEW %s AS\n%s", d.TableRef(table), query))
}
