package model

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeModel(t *testing.T, dir, layer, name, body string) string {
	t.Helper()
	d := filepath.Join(dir, layer)
	if err := os.MkdirAll(d, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(d, name+".sql")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadFile parses a definition with a config header and macros.
func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeModel(t, t.TempDir(), "marts", "fct_orders", `-- materialized: table

select o.order_id, i.price
from {{ ref('stg_orders') }} o
join {{ ref('stg_items') }} i on i.order_id = o.order_id
join {{ source('raw', 'payments') }} p on p.order_id = o.order_id
`)

	def, err := LoadFile(path, "marts")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if def.Name != "fct_orders" || def.Layer != "marts" {
		t.Errorf("Name/Layer = %q/%q", def.Name, def.Layer)
	}
	if def.Materialized != MaterializedTable {
		t.Errorf("Materialized = %q", def.Materialized)
	}
	if !reflect.DeepEqual(def.Refs, []string{"stg_items", "stg_orders"}) {
		t.Errorf("Refs = %v", def.Refs)
	}
	if !reflect.DeepEqual(def.Sources, []SourceRef{{Source: "raw", Table: "payments"}}) {
		t.Errorf("Sources = %v", def.Sources)
	}
	if strings.Contains(def.SQL, "materialized") {
		t.Errorf("header not stripped from SQL: %q", def.SQL)
	}
}

// TestLoadFileDefaults checks per-layer materialization defaults.
func TestLoadFileDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cases := []struct {
		layer string
		want  Materialization
	}{
		{"staging", MaterializedView},
		{"marts", MaterializedTable},
	}
	for _, c := range cases {
		path := writeModel(t, dir, c.layer, "m_"+c.layer, "select 1 as v")
		def, err := LoadFile(path, c.layer)
		if err != nil {
			t.Fatalf("LoadFile(%s): %v", c.layer, err)
		}
		if def.Materialized != c.want {
			t.Errorf("layer %s: Materialized = %q, want %q", c.layer, def.Materialized, c.want)
		}
	}
}

// TestLoadFileHeaderOverride makes staging build a table when asked.
func TestLoadFileHeaderOverride(t *testing.T) {
	t.Parallel()

	path := writeModel(t, t.TempDir(), "staging", "stg_big", "-- materialized: table\nselect 1 as v")
	def, err := LoadFile(path, "staging")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if def.Materialized != MaterializedTable {
		t.Errorf("Materialized = %q, want table", def.Materialized)
	}
}

// TestLoadFileBadMaterialized rejects unknown materializations.
func TestLoadFileBadMaterialized(t *testing.T) {
	t.Parallel()

	path := writeModel(t, t.TempDir(), "marts", "bad", "-- materialized: incremental\nselect 1")
	if _, err := LoadFile(path, "marts"); err == nil {
		t.Fatal("want error for invalid materialized value")
	}
}

// TestLoadFilePlainCommentKeepsBody verifies ordinary comments survive in the
// SQL body and end the header block.
func TestLoadFilePlainCommentKeepsBody(t *testing.T) {
	t.Parallel()

	path := writeModel(t, t.TempDir(), "staging", "stg_c", `-- materialized: view
-- joins the translation table
select 1 as v`)
	def, err := LoadFile(path, "staging")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !strings.Contains(def.SQL, "joins the translation table") {
		t.Errorf("comment lost: %q", def.SQL)
	}
	if def.Materialized != MaterializedView {
		t.Errorf("Materialized = %q", def.Materialized)
	}
}

// TestLoadFileEmptyBody rejects definitions with no SQL.
func TestLoadFileEmptyBody(t *testing.T) {
	t.Parallel()

	path := writeModel(t, t.TempDir(), "marts", "empty", "-- materialized: table\n\n")
	if _, err := LoadFile(path, "marts"); err == nil {
		t.Fatal("want error for empty body")
	}
}

// TestLoadDir walks layer subdirectories and rejects duplicate names.
func TestLoadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeModel(t, dir, "staging", "stg_orders", "select 1 as v")
	writeModel(t, dir, "marts", "fct_orders", "select * from {{ ref('stg_orders') }}")

	defs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("len(defs) = %d, want 2", len(defs))
	}
}

func TestLoadDirDuplicate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeModel(t, dir, "staging", "orders", "select 1 as v")
	writeModel(t, dir, "marts", "orders", "select 2 as v")

	if _, err := LoadDir(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("want duplicate error, got %v", err)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	t.Parallel()
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("want error for empty models dir")
	}
}
