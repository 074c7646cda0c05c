package storage_test

import (
	"strings"
	"testing"

	"supplyetl/internal/schema"
	"supplyetl/internal/storage"
	"supplyetl/internal/storage/mysql"
	"supplyetl/internal/storage/postgres"
	"supplyetl/internal/storage/sqlite"
)

// TestQuoteHelpers checks identifier escaping.
func TestQuoteHelpers(t *testing.T) {
	t.Parallel()

	if got := storage.QuoteDouble(`or"ders`); got != `"or""ders"` {
		t.Errorf("QuoteDouble = %s", got)
	}
	if got := storage.QuoteBacktick("or`ders"); got != "`or``ders`" {
		t.Errorf("QuoteBacktick = %s", got)
	}
}

// TestBuildCreateTableSQL renders DDL per backend.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	td := schema.TableDef{
		Name: "orders",
		Columns: []schema.ColumnDef{
			{Name: "order_id", Type: schema.TypeText},
			{Name: "qty", Type: schema.TypeInteger},
			{Name: "price", Type: schema.TypeReal},
			{Name: "purchased_at", Type: schema.TypeTimestamp},
		},
	}

	cases := []struct {
		name    string
		dialect storage.Dialect
		wants   []string
	}{
		{
			"postgres",
			postgres.Dialect{Schema: "public"},
			[]string{`CREATE TABLE "public"."orders"`, `"qty" BIGINT`, `"price" DOUBLE PRECISION`, `"purchased_at" TIMESTAMP`},
		},
		{
			"sqlite",
			sqlite.Dialect{},
			[]string{`CREATE TABLE "orders"`, `"qty" INTEGER`, `"price" REAL`, `"purchased_at" TEXT`},
		},
		{
			"mysql",
			mysql.Dialect{},
			[]string{"CREATE TABLE `orders`", "`qty` BIGINT", "`price` DOUBLE", "`purchased_at` DATETIME"},
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := storage.BuildCreateTableSQL(c.dialect, td)
			for _, w := range c.wants {
				if !strings.Contains(got, w) {
					t.Errorf("%s DDL missing %q:\n%s", c.name, w, got)
				}
			}
		})
	}
}

// TestDateDiffDays pins the day-difference expression per backend.
func TestDateDiffDays(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dialect storage.Dialect
		want    string
	}{
		{postgres.Dialect{}, "((a)::date - (b)::date)"},
		{sqlite.Dialect{}, "CAST(julianday(date(a)) - julianday(date(b)) AS INTEGER)"},
		{mysql.Dialect{}, "DATEDIFF(a, b)"},
	}
	for _, c := range cases {
		if got := c.dialect.DateDiffDays("a", "b"); got != c.want {
			t.Errorf("%s: DateDiffDays = %q, want %q", c.dialect.Name(), got, c.want)
		}
	}
}

// TestCreateTableAsDropsFirst checks materialization statements remove any
// previous incarnation before creating.
func TestCreateTableAsDropsFirst(t *testing.T) {
	t.Parallel()

	for _, d := range []storage.Dialect{postgres.Dialect{}, sqlite.Dialect{}, mysql.Dialect{}} {
		stmts := d.CreateTableAs("fct_x", "select 1")
		if len(stmts) != 3 {
			t.Fatalf("%s: %d statements, want 3", d.Name(), len(stmts))
		}
		if !strings.Contains(stmts[0], "DROP VIEW IF EXISTS") {
			t.Errorf("%s: stmts[0] = %q", d.Name(), stmts[0])
		}
		if !strings.Contains(stmts[1], "DROP TABLE IF EXISTS") {
			t.Errorf("%s: stmts[1] = %q", d.Name(), stmts[1])
		}
		if !strings.Contains(stmts[2], "CREATE TABLE") {
			t.Errorf("%s: stmts[2] = %q", d.Name(), stmts[2])
		}

		views := d.CreateViewAs("stg_x", "select 1")
		if !strings.Contains(views[2], "CREATE VIEW") {
			t.Errorf("%s: view stmts[2] = %q", d.Name(), views[2])
		}
	}
}

// TestPostgresTableRef checks schema qualification rules.
func TestPostgresTableRef(t *testing.T) {
	t.Parallel()

	cases := []struct {
		schema, table, want string
	}{
		{"", "orders", `"orders"`},
		{"public", "orders", `"public"."orders"`},
		{"public", "other.orders", `"other"."orders"`},
	}
	for _, c := range cases {
		d := postgres.Dialect{Schema: c.schema}
		if got := d.TableRef(c.table); got != c.want {
			t.Errorf("TableRef(%q, schema=%q) = %s, want %s", c.table, c.schema, got, c.want)
		}
	}
}

// TestPlaceholders pins placeholder styles.
func TestPlaceholders(t *testing.T) {
	t.Parallel()

	if got := (postgres.Dialect{}).Placeholder(3); got != "$3" {
		t.Errorf("postgres Placeholder(3) = %q", got)
	}
	if got := (sqlite.Dialect{}).Placeholder(3); got != "?" {
		t.Errorf("sqlite Placeholder(3) = %q", got)
	}
	if got := (mysql.Dialect{}).Placeholder(3); got != "?" {
		t.Errorf("mysql Placeholder(3) = %q", got)
	}
}
