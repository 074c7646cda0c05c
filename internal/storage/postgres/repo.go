// Package postgres implements a Postgres-backed storage.Repository using pgx
// v5. Bulk loads go through the native COPY protocol; everything else runs on
// a shared pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"supplyetl/pkg/records"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string // connection string for pgxpool
	Schema string // optional schema for all pipeline tables, e.g. "public"
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool    *pgxpool.Pool
	dialect Dialect
}

// NewRepository constructs a Repository and returns a close function for
// cleanup. The pool is pinged so misconfigured DSNs fail here rather than on
// the first pipeline statement.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgxpool ping: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, dialect: Dialect{Schema: cfg.Schema}}, closeFn, nil
}

// Exec runs a single SQL statement with $N placeholders.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return describePgErr(err)
	}
	return nil
}

// CopyFrom bulk-inserts rows via the COPY protocol. The table name is logical
// and gets schema-qualified per the repository configuration.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := r.pool.CopyFrom(ctx, r.identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, describePgErr(err)
	}
	return n, nil
}

// Query runs a statement and materializes every result row.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) ([]records.Record, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, describePgErr(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []records.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(records.Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// identifier builds a pgx.Identifier for the logical table name, prefixing
// the configured schema when set.
func (r *Repository) identifier(table string) pgx.Identifier {
	if r.dialect.Schema != "" && !strings.Contains(table, ".") {
		return pgx.Identifier{r.dialect.Schema, table}
	}
	parts := strings.Split(table, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// describePgErr surfaces the server-side detail field, which for COPY and DDL
// failures usually names the offending column or value.
func describePgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s)", pgErr.Message, pgErr.Detail, pgErr.SQLState())
	}
	return err
}
