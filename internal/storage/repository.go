// Package storage contains the storage-agnostic repository contract, the
// backend factory, and SQL dialect abstractions shared by the ingestion
// loader and the transformation runner.
//
// Concrete backends (postgres, sqlite, mysql) live in subpackages and
// register themselves with the factory at init time; importing
// supplyetl/internal/storage/all (typically as a blank import in the wiring
// layer) makes every built-in backend available without the rest of the
// application importing database drivers directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"supplyetl/pkg/records"
)

// Repository is the minimal surface the pipeline needs from a database:
// statement execution, bulk loading, and result reads for audit/verification
// queries. Implementations must be safe for sequential reuse across both
// pipeline stages.
type Repository interface {
	// Exec runs a single SQL statement. Placeholder syntax follows the
	// backend's dialect (see Dialect.Placeholder).
	Exec(ctx context.Context, sql string, args ...any) error

	// CopyFrom bulk-inserts rows into table. Each row must align with columns.
	// It returns the number of rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Query runs a SQL statement and returns all result rows keyed by column
	// name.
	Query(ctx context.Context, sql string, args ...any) ([]records.Record, error)

	// Dialect exposes the backend's SQL dialect.
	Dialect() Dialect

	// Close releases the underlying connections.
	Close()
}

// Config selects and configures a storage backend.
type Config struct {
	// Kind selects the registered backend: "postgres", "sqlite", "mysql".
	Kind string

	// DSN is the backend-specific connection string.
	DSN string

	// Schema optionally namespaces all pipeline tables. Only honored by
	// backends with schema support (postgres).
	Schema string
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) a backend factory for the given kind. It is
// typically called from backend packages' init() functions.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind. Unknown kinds report the registered
// alternatives so a typo in the config is immediately diagnosable.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return fn(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
