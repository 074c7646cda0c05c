// Package pipeline ties the two stages together behind a single contract:
// ingest, then transform. The only ordering guarantee the pipeline needs from
// the outside world is that these two stages run in sequence without overlap,
// which this package enforces by construction; scheduling, retries, and
// non-overlap across runs belong to the caller (the schedule command or an
// external orchestrator).
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"supplyetl/internal/config"
	"supplyetl/internal/ingest"
	"supplyetl/internal/metrics"
	"supplyetl/internal/model"
	"supplyetl/internal/runlog"
	"supplyetl/internal/storage"
	"supplyetl/internal/transform"
)

// Pipeline is one configured pipeline bound to an open repository.
type Pipeline struct {
	cfg  config.Pipeline
	repo storage.Repository
	rec  *runlog.Recorder
}

// New opens the configured storage backend and returns a ready Pipeline.
// Callers own Close.
func New(ctx context.Context, cfg config.Pipeline) (*Pipeline, error) {
	repo, err := storage.New(ctx, storage.Config{
		Kind:   cfg.Storage.Kind,
		DSN:    cfg.Storage.DSN,
		Schema: cfg.Storage.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return &Pipeline{
		cfg:  cfg,
		repo: repo,
		rec:  runlog.New(repo, cfg.Job, cfg.RunLog.Enabled),
	}, nil
}

// Close releases the repository.
func (p *Pipeline) Close() { p.repo.Close() }

// Repo exposes the open repository for verification queries.
func (p *Pipeline) Repo() storage.Repository { return p.repo }

// Run executes a full run: loader first, runner only after the loader
// succeeded. trigger labels the run-log entry ("schedule", "manual").
func (p *Pipeline) Run(ctx context.Context, trigger string) error {
	start := time.Now()
	run := p.rec.Begin(ctx, trigger)
	log.Printf("pipeline: job=%s run=%s trigger=%s", p.cfg.Job, run.ID, trigger)

	sum, err := p.ingest(ctx)
	if err != nil {
		run.Finish(ctx, sum.Rows, 0, err)
		return err
	}

	res, err := p.transform(ctx, run)
	run.Finish(ctx, sum.Rows, res.Built, err)
	if err != nil {
		return err
	}

	log.Printf("pipeline: job=%s run=%s status=success rows=%d models=%d elapsed=%s",
		p.cfg.Job, run.ID, sum.Rows, res.Built, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// Ingest runs only the loader stage, with its own run-log entry.
func (p *Pipeline) Ingest(ctx context.Context, trigger string) error {
	run := p.rec.Begin(ctx, trigger)
	sum, err := p.ingest(ctx)
	run.Finish(ctx, sum.Rows, 0, err)
	return err
}

// Transform runs only the runner stage, with its own run-log entry.
func (p *Pipeline) Transform(ctx context.Context, trigger string) error {
	run := p.rec.Begin(ctx, trigger)
	res, err := p.transform(ctx, run)
	run.Finish(ctx, 0, res.Built, err)
	return err
}

// ValidateModels loads the model tree and builds the dependency graph
// without touching the database. It returns the execution order on success.
func (p *Pipeline) ValidateModels() ([]string, error) {
	graph, err := p.loadGraph()
	if err != nil {
		return nil, err
	}
	return graph.Order(), nil
}

func (p *Pipeline) ingest(ctx context.Context) (ingest.Summary, error) {
	loader := ingest.New(p.repo, p.cfg.Ingest, p.cfg.Job)
	return loader.Run(ctx)
}

func (p *Pipeline) transform(ctx context.Context, run *runlog.Run) (transform.Result, error) {
	graph, err := p.loadGraph()
	if err != nil {
		return transform.Result{}, err
	}

	resolver := model.Resolver{
		Sources: p.cfg.Models.Sources,
		Dialect: p.repo.Dialect(),
	}
	runner := transform.New(p.repo, graph, resolver, p.cfg.Runtime.Workers, p.cfg.Job)

	res, err := runner.Run(ctx)
	for _, m := range res.Models {
		run.Model(ctx, m.Name, m.Fingerprint, string(m.Status), m.Elapsed)
	}
	metrics.RecordModels(p.cfg.Job, string(transform.StatusBuilt), res.Built)
	metrics.RecordModels(p.cfg.Job, string(transform.StatusFailed), res.Failed)
	metrics.RecordModels(p.cfg.Job, string(transform.StatusSkipped), res.Skipped)
	return res, err
}

func (p *Pipeline) loadGraph() (*model.Graph, error) {
	defs, err := model.LoadDir(p.cfg.Models.Dir)
	if err != nil {
		return nil, err
	}
	return model.BuildGraph(defs, p.cfg.Models.Sources)
}
