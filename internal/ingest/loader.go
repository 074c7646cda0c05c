// Package ingest implements the ingestion loader: a fixed, ordered mapping of
// delimited source files onto raw destination tables with full-replace
// semantics.
//
// Each file is read fully, its column types inferred from the data, and the
// destination table dropped and recreated before the rows are bulk-inserted
// in batches. There is no incremental path and no retry: the first failing
// file aborts the run, matching the orchestration contract where the whole
// loader task either succeeds or fails.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"supplyetl/internal/config"
	"supplyetl/internal/metrics"
	csvparser "supplyetl/internal/parser/csv"
	"supplyetl/internal/schema"
	"supplyetl/internal/storage"
)

// Loader bulk-loads the configured source files into raw tables.
type Loader struct {
	repo storage.Repository
	cfg  config.Ingest
	job  string
}

// Summary reports what a successful (or partially progressed) run did.
type Summary struct {
	Files    int
	Rows     int64
	PerTable map[string]int64
	Elapsed  time.Duration
}

// New constructs a Loader. The job name labels logs and metrics.
func New(repo storage.Repository, cfg config.Ingest, job string) *Loader {
	return &Loader{repo: repo, cfg: cfg, job: job}
}

// Run loads every configured file in order. It stops at the first failure and
// returns the summary of what had completed up to that point alongside the
// error. Reloading the same inputs reproduces identical tables.
func (l *Loader) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{PerTable: map[string]int64{}}

	comma := ','
	if l.cfg.Comma != "" {
		comma = []rune(l.cfg.Comma)[0]
	}
	parser := csvparser.NewParser(csvparser.Options{
		Comma:     comma,
		TrimSpace: true,
		Strict:    true,
	})

	for _, fm := range l.cfg.Files {
		stepStart := time.Now()
		n, err := l.loadFile(ctx, parser, fm)
		metrics.RecordStep(l.job, "ingest:"+fm.Table, err, time.Since(stepStart))
		if err != nil {
			sum.Elapsed = time.Since(start)
			return sum, fmt.Errorf("load %s into %s: %w", fm.Path, fm.Table, err)
		}
		sum.Files++
		sum.Rows += n
		sum.PerTable[fm.Table] = n
		metrics.RecordRows(l.job, "loaded", n)
	}

	sum.Elapsed = time.Since(start)
	log.Printf("loader: done files=%d rows=%d elapsed=%s",
		sum.Files, sum.Rows, sum.Elapsed.Truncate(time.Millisecond))
	return sum, nil
}

// loadFile ingests a single file: parse, infer, replace table, insert.
func (l *Loader) loadFile(ctx context.Context, parser *csvparser.Parser, fm config.FileMapping) (int64, error) {
	path := fm.Path
	if !filepath.IsAbs(path) && l.cfg.DatasetDir != "" {
		path = filepath.Join(l.cfg.DatasetDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	table, err := parser.Parse(f)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if len(table.Columns) == 0 {
		return 0, fmt.Errorf("no columns in header")
	}

	td := schema.Infer(fm.Table, table.Columns, table.Rows)
	if err := l.replaceTable(ctx, td); err != nil {
		return 0, err
	}

	log.Printf("loader: table=%s columns=%d rows=%d", fm.Table, len(td.Columns), len(table.Rows))
	return l.insertRows(ctx, td, table.Rows)
}

// replaceTable drops any previous incarnation of the destination and creates
// it fresh from the inferred definition.
func (l *Loader) replaceTable(ctx context.Context, td schema.TableDef) error {
	d := l.repo.Dialect()
	for _, stmt := range d.DropRelation(td.Name) {
		if err := l.repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("drop %s: %w", td.Name, err)
		}
	}
	if err := l.repo.Exec(ctx, storage.BuildCreateTableSQL(d, td)); err != nil {
		return fmt.Errorf("create %s: %w", td.Name, err)
	}
	return nil
}

// insertRows converts raw string rows to typed values and writes them in
// batches of the configured size.
func (l *Loader) insertRows(ctx context.Context, td schema.TableDef, rows [][]string) (int64, error) {
	columns := td.ColumnNames()
	batchSize := l.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}

	var total int64
	batch := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.repo.CopyFrom(ctx, td.Name, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("insert batch ending at row %d: %w", total, err)
		}
		return nil
	}

	for _, row := range rows {
		typed := make([]any, len(td.Columns))
		for i, c := range td.Columns {
			typed[i] = schema.Convert(row[i], c.Type)
		}
		batch = append(batch, typed)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
