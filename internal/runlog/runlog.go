// Package runlog records pipeline executions in the destination database so
// that runs are auditable from SQL: one row per run in etl_runs and one row
// per materialized definition in etl_run_models, including the fingerprint of
// the exact SQL that was executed.
//
// The run log is strictly best-effort. A failure to write an audit row is
// logged and swallowed; it never fails the pipeline itself.
package runlog

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"supplyetl/internal/schema"
	"supplyetl/internal/storage"
)

// Table names used by the recorder.
const (
	RunsTable      = "etl_runs"
	RunModelsTable = "etl_run_models"
)

// Recorder writes audit rows for pipeline runs. A disabled Recorder is valid
// and does nothing.
type Recorder struct {
	repo    storage.Repository
	job     string
	enabled bool
}

// New constructs a Recorder.
func New(repo storage.Repository, job string, enabled bool) *Recorder {
	return &Recorder{repo: repo, job: job, enabled: enabled}
}

// Run is one open audit entry.
type Run struct {
	ID      uuid.UUID
	rec     *Recorder
	started time.Time
}

// Begin ensures the audit tables exist and opens a run entry. It always
// returns a usable *Run; on any error the run is detached (subsequent calls
// no-op) and the error is logged.
func (r *Recorder) Begin(ctx context.Context, trigger string) *Run {
	run := &Run{ID: uuid.New(), started: time.Now().UTC()}
	if !r.enabled {
		return run
	}
	if err := r.ensureTables(ctx); err != nil {
		log.Printf("runlog: disabled for this run: %v", err)
		return run
	}

	d := r.repo.Dialect()
	sqlText := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.TableRef(RunsTable),
		joinIdents(d, "run_id", "job", "triggered_by", "started_at", "status"),
		placeholders(d, 5),
	)
	if err := r.repo.Exec(ctx, sqlText, run.ID.String(), r.job, trigger, run.started, "running"); err != nil {
		log.Printf("runlog: open run entry: %v", err)
		return run
	}
	run.rec = r
	return run
}

// Model records one definition outcome for the run.
func (run *Run) Model(ctx context.Context, name string, fingerprint uint64, status string, elapsed time.Duration) {
	if run.rec == nil {
		return
	}
	d := run.rec.repo.Dialect()
	sqlText := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.TableRef(RunModelsTable),
		joinIdents(d, "run_id", "model", "fingerprint", "status", "duration_ms"),
		placeholders(d, 5),
	)
	err := run.rec.repo.Exec(ctx, sqlText,
		run.ID.String(), name, fmt.Sprintf("%016x", fingerprint), status, elapsed.Milliseconds())
	if err != nil {
		log.Printf("runlog: record model %s: %v", name, err)
	}
}

// Finish closes the run entry with a final status. runErr may be nil.
func (run *Run) Finish(ctx context.Context, rowsLoaded int64, modelsBuilt int, runErr error) {
	if run.rec == nil {
		return
	}
	status := "success"
	errText := ""
	if runErr != nil {
		status = "failure"
		errText = runErr.Error()
	}

	d := run.rec.repo.Dialect()
	sqlText := fmt.Sprintf(
		"UPDATE %s SET %s = %s, %s = %s, %s = %s, %s = %s, %s = %s WHERE %s = %s",
		d.TableRef(RunsTable),
		d.QuoteIdent("finished_at"), d.Placeholder(1),
		d.QuoteIdent("status"), d.Placeholder(2),
		d.QuoteIdent("rows_loaded"), d.Placeholder(3),
		d.QuoteIdent("models_built"), d.Placeholder(4),
		d.QuoteIdent("error"), d.Placeholder(5),
		d.QuoteIdent("run_id"), d.Placeholder(6),
	)
	err := run.rec.repo.Exec(ctx, sqlText,
		time.Now().UTC(), status, rowsLoaded, modelsBuilt, errText, run.ID.String())
	if err != nil {
		log.Printf("runlog: close run entry: %v", err)
	}
}

// ensureTables creates the audit tables when missing.
func (r *Recorder) ensureTables(ctx context.Context) error {
	d := r.repo.Dialect()

	runs := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s\n)",
		d.TableRef(RunsTable),
		d.QuoteIdent("run_id"), d.MapType(schema.TypeText),
		d.QuoteIdent("job"), d.MapType(schema.TypeText),
		d.QuoteIdent("triggered_by"), d.MapType(schema.TypeText),
		d.QuoteIdent("started_at"), d.MapType(schema.TypeTimestamp),
		d.QuoteIdent("finished_at"), d.MapType(schema.TypeTimestamp),
		d.QuoteIdent("status"), d.MapType(schema.TypeText),
		d.QuoteIdent("rows_loaded"), d.MapType(schema.TypeInteger),
		d.QuoteIdent("models_built"), d.MapType(schema.TypeInteger),
		d.QuoteIdent("error"), d.MapType(schema.TypeText),
	)
	if err := r.repo.Exec(ctx, runs); err != nil {
		return fmt.Errorf("create %s: %w", RunsTable, err)
	}

	models := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s,\n  %s %s\n)",
		d.TableRef(RunModelsTable),
		d.QuoteIdent("run_id"), d.MapType(schema.TypeText),
		d.QuoteIdent("model"), d.MapType(schema.TypeText),
		d.QuoteIdent("fingerprint"), d.MapType(schema.TypeText),
		d.QuoteIdent("status"), d.MapType(schema.TypeText),
		d.QuoteIdent("duration_ms"), d.MapType(schema.TypeInteger),
	)
	if err := r.repo.Exec(ctx, models); err != nil {
		return fmt.Errorf("create %s: %w", RunModelsTable, err)
	}
	return nil
}

func joinIdents(d storage.Dialect, names ...string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.QuoteIdent(n)
	}
	return strings.Join(out, ", ")
}

func placeholders(d storage.Dialect, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.Placeholder(i + 1)
	}
	return strings.Join(out, ", ")
}
