// Package transform implements the transformation runner: it compiles every
// definition up front (so resolution failures happen before any SQL reaches
// the database), then materializes each one in dependency order.
//
// A failed definition poisons its transitive dependents, which are reported
// as skipped; independent branches still build. Nothing is rolled back: each
// definition replaces its own output and a rerun rebuilds everything, so
// partial results are only ever one run behind.
package transform

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"supplyetl/internal/metrics"
	"supplyetl/internal/model"
	"supplyetl/internal/storage"
)

// Status is the outcome of one definition within a run.
type Status string

const (
	StatusBuilt   Status = "built"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ModelResult reports one definition's outcome.
type ModelResult struct {
	Name        string
	Status      Status
	Fingerprint uint64
	Elapsed     time.Duration
	Err         error
}

// Result aggregates a full runner invocation.
type Result struct {
	Models  []ModelResult // execution order
	Built   int
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// Runner materializes a validated graph of definitions.
type Runner struct {
	repo     storage.Repository
	graph    *model.Graph
	resolver model.Resolver
	workers  int
	job      string
}

// New constructs a Runner. workers bounds concurrent builds of independent
// definitions; values below 2 mean strictly sequential execution.
func New(repo storage.Repository, graph *model.Graph, resolver model.Resolver, workers int, job string) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{repo: repo, graph: graph, resolver: resolver, workers: workers, job: job}
}

// Run compiles and executes the whole graph. The returned error is non-nil
// when compilation failed (nothing executed) or when at least one definition
// failed; the Result still describes every definition's outcome.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	compiled, err := r.compileAll()
	if err != nil {
		return Result{}, err
	}

	statuses := make(map[string]*ModelResult, r.graph.Len())
	order := r.graph.Order()
	for _, name := range order {
		statuses[name] = &ModelResult{Name: name, Fingerprint: compiled[name].Fingerprint}
	}

	var mu sync.Mutex
	pending := make(map[string]struct{}, len(order))
	for _, name := range order {
		pending[name] = struct{}{}
	}

	// Execute in waves: each wave runs every pending definition whose refs
	// have all built, bounded by the worker limit. Definitions downstream of
	// a failure are marked skipped between waves.
	for len(pending) > 0 {
		ready := r.readySet(pending, statuses)
		if len(ready) == 0 {
			r.markSkipped(pending, statuses)
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, name := range ready {
			name := name
			delete(pending, name)
			g.Go(func() error {
				res := r.execute(gctx, compiled[name])
				mu.Lock()
				*statuses[name] = res
				mu.Unlock()
				// Failures are recorded, not propagated: independent
				// branches must keep going.
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			r.markSkipped(pending, statuses)
			break
		}
	}

	result := Result{Elapsed: time.Since(start)}
	for _, name := range order {
		res := *statuses[name]
		result.Models = append(result.Models, res)
		switch res.Status {
		case StatusBuilt:
			result.Built++
		case StatusFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	log.Printf("runner: done built=%d failed=%d skipped=%d elapsed=%s",
		result.Built, result.Failed, result.Skipped, result.Elapsed.Truncate(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if result.Failed > 0 {
		return result, fmt.Errorf("%d definition(s) failed: %s", result.Failed, strings.Join(failedNames(result), ", "))
	}
	return result, nil
}

// compileAll resolves every definition before anything executes.
func (r *Runner) compileAll() (map[string]model.Compiled, error) {
	out := make(map[string]model.Compiled, r.graph.Len())
	for _, name := range r.graph.Order() {
		c, err := model.Compile(r.graph.Def(name), r.resolver)
		if err != nil {
			return nil, err
		}
		out[name] = c
	}
	return out, nil
}

// readySet returns pending definitions whose refs have all built, sorted.
func (r *Runner) readySet(pending map[string]struct{}, statuses map[string]*ModelResult) []string {
	var ready []string
	for name := range pending {
		ok := true
		for _, ref := range r.graph.Def(name).Refs {
			if statuses[ref].Status != StatusBuilt {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	return ready
}

// markSkipped marks every remaining pending definition as skipped, naming the
// upstream failure it is waiting on.
func (r *Runner) markSkipped(pending map[string]struct{}, statuses map[string]*ModelResult) {
	for name := range pending {
		statuses[name].Status = StatusSkipped
	}
	for name := range pending {
		res := statuses[name]
		for _, ref := range r.graph.Def(name).Refs {
			if s := statuses[ref].Status; s == StatusFailed || s == StatusSkipped {
				res.Err = fmt.Errorf("upstream %s %s", ref, s)
				break
			}
		}
		log.Printf("runner: model=%s status=skipped reason=%v", name, res.Err)
	}
}

// execute materializes one compiled definition.
func (r *Runner) execute(ctx context.Context, c model.Compiled) ModelResult {
	start := time.Now()
	res := ModelResult{Name: c.Def.Name, Fingerprint: c.Fingerprint}

	d := r.repo.Dialect()
	var stmts []string
	if c.Def.Materialized == model.MaterializedView {
		stmts = d.CreateViewAs(c.Def.Name, c.SQL)
	} else {
		stmts = d.CreateTableAs(c.Def.Name, c.SQL)
	}

	for _, stmt := range stmts {
		if err := r.repo.Exec(ctx, stmt); err != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("materialize %s: %w", c.Def.Name, err)
			res.Elapsed = time.Since(start)
			metrics.RecordStep(r.job, "transform:"+c.Def.Name, res.Err, res.Elapsed)
			log.Printf("runner: model=%s status=failed err=%v", c.Def.Name, res.Err)
			return res
		}
	}

	res.Status = StatusBuilt
	res.Elapsed = time.Since(start)
	metrics.RecordStep(r.job, "transform:"+c.Def.Name, nil, res.Elapsed)
	log.Printf("runner: model=%s layer=%s materialized=%s elapsed=%s",
		c.Def.Name, c.Def.Layer, c.Def.Materialized, res.Elapsed.Truncate(time.Millisecond))
	return res
}

func failedNames(res Result) []string {
	var out []string
	for _, m := range res.Models {
		if m.Status == StatusFailed {
			out = append(out, m.Name)
		}
	}
	return out
}
