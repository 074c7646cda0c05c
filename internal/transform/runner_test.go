package transform

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"supplyetl/internal/model"
	"supplyetl/internal/storage"
	"supplyetl/internal/storage/sqlite"
	"supplyetl/pkg/records"
)

// execRepo records executed statements and fails any statement containing a
// configured marker.
type execRepo struct {
	mu     sync.Mutex
	stmts  []string
	failOn string
}

func (r *execRepo) Exec(_ context.Context, sql string, _ ...any) error {
	r.mu.Lock()
	r.stmts = append(r.stmts, sql)
	r.mu.Unlock()
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return errors.New("forced failure")
	}
	return nil
}

func (r *execRepo) CopyFrom(context.Context, string, []string, [][]any) (int64, error) {
	return 0, nil
}

func (r *execRepo) Query(context.Context, string, ...any) ([]records.Record, error) {
	return nil, nil
}

func (r *execRepo) Dialect() storage.Dialect { return sqlite.Dialect{} }
func (r *execRepo) Close()                   {}

func (r *execRepo) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.stmts))
	copy(out, r.stmts)
	return out
}

func mustGraph(t *testing.T, defs []*model.Definition, sources map[string]map[string]string) *model.Graph {
	t.Helper()
	g, err := model.BuildGraph(defs, sources)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// stagingDef and martDef build fixtures. Refs and Sources must mirror the
// macros in sql the same way LoadFile's scan would.
func stagingDef(name, sql string, refs ...string) *model.Definition {
	return &model.Definition{
		Name: name, Layer: model.LayerStaging,
		Materialized: model.MaterializedView, SQL: sql, Refs: refs,
		Sources: sourcesIn(sql),
	}
}

func martDef(name, sql string, refs ...string) *model.Definition {
	return &model.Definition{
		Name: name, Layer: model.LayerMarts,
		Materialized: model.MaterializedTable, SQL: sql, Refs: refs,
		Sources: sourcesIn(sql),
	}
}

func sourcesIn(sql string) []model.SourceRef {
	if strings.Contains(sql, "source('raw', 'orders')") {
		return []model.SourceRef{{Source: "raw", Table: "orders"}}
	}
	return nil
}

var testSources = map[string]map[string]string{
	"raw": {"orders": "orders"},
}

func testResolver() model.Resolver {
	return model.Resolver{Sources: testSources, Dialect: sqlite.Dialect{}}
}

// TestRunBuildsInOrder runs a small chain and checks every model built with
// dependencies executed first.
func TestRunBuildsInOrder(t *testing.T) {
	t.Parallel()

	defs := []*model.Definition{
		stagingDef("stg_orders", "select * from {{ source('raw', 'orders') }}"),
		martDef("fct_orders", "select * from {{ ref('stg_orders') }}", "stg_orders"),
	}
	repo := &execRepo{}
	runner := New(repo, mustGraph(t, defs, testSources), testResolver(), 2, "j")

	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Built != 2 || res.Failed != 0 || res.Skipped != 0 {
		t.Fatalf("res = %+v", res)
	}

	var createView, createTable int = -1, -1
	for i, s := range repo.executed() {
		if strings.HasPrefix(s, `CREATE VIEW "stg_orders"`) {
			createView = i
		}
		if strings.HasPrefix(s, `CREATE TABLE "fct_orders"`) {
			createTable = i
		}
	}
	if createView == -1 || createTable == -1 || createView > createTable {
		t.Errorf("statement order wrong:\n%s", strings.Join(repo.executed(), "\n"))
	}
}

// TestRunPartialFailure fails one branch and expects the independent branch
// to build while downstreams of the failure are skipped.
func TestRunPartialFailure(t *testing.T) {
	t.Parallel()

	defs := []*model.Definition{
		stagingDef("stg_bad", "select * from {{ source('raw', 'orders') }} where broken"),
		stagingDef("stg_good", "select * from {{ source('raw', 'orders') }}"),
		martDef("fct_downstream", "select * from {{ ref('stg_bad') }}", "stg_bad"),
		martDef("fct_independent", "select * from {{ ref('stg_good') }}", "stg_good"),
	}
	repo := &execRepo{failOn: "stg_bad"}
	runner := New(repo, mustGraph(t, defs, testSources), testResolver(), 2, "j")

	res, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("want error when a definition fails")
	}
	if !strings.Contains(err.Error(), "stg_bad") {
		t.Errorf("err %q should name stg_bad", err)
	}

	byName := map[string]ModelResult{}
	for _, m := range res.Models {
		byName[m.Name] = m
	}
	if byName["stg_bad"].Status != StatusFailed {
		t.Errorf("stg_bad = %v", byName["stg_bad"].Status)
	}
	if byName["stg_good"].Status != StatusBuilt {
		t.Errorf("stg_good = %v", byName["stg_good"].Status)
	}
	if byName["fct_independent"].Status != StatusBuilt {
		t.Errorf("fct_independent = %v", byName["fct_independent"].Status)
	}
	if byName["fct_downstream"].Status != StatusSkipped {
		t.Errorf("fct_downstream = %v", byName["fct_downstream"].Status)
	}
	if e := byName["fct_downstream"].Err; e == nil || !strings.Contains(e.Error(), "stg_bad") {
		t.Errorf("fct_downstream.Err = %v", e)
	}
	if res.Built != 2 || res.Failed != 1 || res.Skipped != 1 {
		t.Errorf("counts = built %d failed %d skipped %d", res.Built, res.Failed, res.Skipped)
	}
}

// TestRunSkipChain skips transitively: a failure near the root cascades.
func TestRunSkipChain(t *testing.T) {
	t.Parallel()

	defs := []*model.Definition{
		stagingDef("stg_a", "select * from {{ source('raw', 'orders') }} broken_marker"),
		martDef("fct_mid", "select * from {{ ref('stg_a') }}", "stg_a"),
		martDef("fct_top", "select * from {{ ref('fct_mid') }}", "fct_mid"),
	}
	repo := &execRepo{failOn: "broken_marker"}
	runner := New(repo, mustGraph(t, defs, testSources), testResolver(), 1, "j")

	res, _ := runner.Run(context.Background())
	byName := map[string]ModelResult{}
	for _, m := range res.Models {
		byName[m.Name] = m
	}
	if byName["fct_mid"].Status != StatusSkipped || byName["fct_top"].Status != StatusSkipped {
		t.Errorf("statuses = mid %v top %v", byName["fct_mid"].Status, byName["fct_top"].Status)
	}
	if e := byName["fct_top"].Err; e == nil || !strings.Contains(e.Error(), "fct_mid") {
		t.Errorf("fct_top.Err = %v, want mention of fct_mid", e)
	}
}

// TestRunCompileFailureExecutesNothing requires resolution errors to surface
// before any statement runs.
func TestRunCompileFailureExecutesNothing(t *testing.T) {
	t.Parallel()

	defs := []*model.Definition{
		stagingDef("stg_ok", "select * from {{ source('raw', 'orders') }}"),
		stagingDef("stg_typo", "select {{ bad_macro(1) }} from {{ source('raw', 'orders') }}"),
	}
	repo := &execRepo{}
	runner := New(repo, mustGraph(t, defs, testSources), testResolver(), 2, "j")

	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("want compile error")
	}
	if got := repo.executed(); len(got) != 0 {
		t.Errorf("statements executed despite compile failure: %v", got)
	}
}

// TestRunSequentialWorkers makes sure a single worker still completes a graph.
func TestRunSequentialWorkers(t *testing.T) {
	t.Parallel()

	defs := []*model.Definition{
		stagingDef("stg_orders", "select * from {{ source('raw', 'orders') }}"),
		martDef("fct_a", "select * from {{ ref('stg_orders') }}", "stg_orders"),
		martDef("fct_b", "select * from {{ ref('stg_orders') }}", "stg_orders"),
	}
	repo := &execRepo{}
	runner := New(repo, mustGraph(t, defs, testSources), testResolver(), 0, "j")

	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Built != 3 {
		t.Errorf("Built = %d, want 3", res.Built)
	}
}
