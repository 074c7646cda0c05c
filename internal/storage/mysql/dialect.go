package mysql

import (
	"fmt"

	"supplyetl/internal/schema"
	"supplyetl/internal/storage"
)

// Dialect implements storage.Dialect for MySQL. Schemas map onto databases in
// MySQL and are selected via the DSN, so the configured schema is ignored.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) QuoteIdent(id string) string { return storage.QuoteBacktick(id) }

func (Dialect) TableRef(table string) string { return storage.QuoteBacktick(table) }

func (Dialect) Placeholder(int) string { return "?" }

// MapType maps logical types onto MySQL types.
func (Dialect) MapType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeReal:
		return "DOUBLE"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeTimestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// DateDiffDays uses the native DATEDIFF, which returns a - b in days and
// propagates NULL.
func (Dialect) DateDiffDays(a, b string) string {
	return fmt.Sprintf("DATEDIFF(%s, %s)", a, b)
}

func (Dialect) CastTimestamp(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATETIME)", expr)
}

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
