package postgres

import (
	"fmt"
	"strings"

	"supplyetl/internal/schema"
	"supplyetl/internal/storage"
)

// Dialect implements storage.Dialect for Postgres.
type Dialect struct {
	// Schema namespaces all pipeline tables when non-empty.
	Schema string
}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) QuoteIdent(id string) string { return storage.QuoteDouble(id) }

// TableRef schema-qualifies and quotes a logical table name. Names that
// already carry a schema are quoted segment-wise.
func (d Dialect) TableRef(table string) string {
	if strings.Contains(table, ".") {
		parts := strings.Split(table, ".")
		for i, p := range parts {
			parts[i] = storage.QuoteDouble(p)
		}
		return strings.Join(parts, ".")
	}
	if d.Schema != "" {
		return storage.QuoteDouble(d.Schema) + "." + storage.QuoteDouble(table)
	}
	return storage.QuoteDouble(table)
}

func (Dialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

// MapType maps logical types onto Postgres types.
func (Dialect) MapType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeReal:
		return "DOUBLE PRECISION"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// DateDiffDays subtracts the date parts, which in Postgres yields an integer
// number of days. NULL operands propagate.
func (Dialect) DateDiffDays(a, b string) string {
	return fmt.Sprintf("((%s)::date - (%s)::date)", a, b)
}

func (Dialect) CastTimestamp(expr string) string {
	return fmt.Sprintf("(%s)::timestamp", expr)
}

// DropRelation removes any previous table or view of the same name. CASCADE
// also clears dependent staging views; the runner rebuilds every dependent in
// topological order afterwards, so nothing is left missing.
func (d Dialect) DropRelation(table string) []string {
	ref := d.TableRef(table)
	return []string{
		"DROP VIEW IF EXISTS " + ref + " CASCADE",
		"DROP TABLE IF EXISTS " + ref + " CASCADE",
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
