package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"supplyetl/internal/storage"
)

// Macro patterns. Argument bodies deliberately exclude braces so that a
// malformed or nested macro is left behind and caught by the leftover check
// in Compile.
var (
	refRe    = regexp.MustCompile(`\{\{\s*ref\(\s*['"]([A-Za-z0-9_]+)['"]\s*\)\s*\}\}`)
	sourceRe = regexp.MustCompile(`\{\{\s*source\(\s*['"]([A-Za-z0-9_]+)['"]\s*,\s*['"]([A-Za-z0-9_]+)['"]\s*\)\s*\}\}`)
	dateRe   = regexp.MustCompile(`\{\{\s*datediff_days\(([^{}]*)\)\s*\}\}`)
	castRe   = regexp.MustCompile(`\{\{\s*cast_timestamp\(([^{}]*)\)\s*\}\}`)
	anyRe    = regexp.MustCompile(`\{\{[^}]*\}\}`)
)

// scanMacros extracts the ref and source dependencies of a definition body.
func scanMacros(sql string) ([]string, []SourceRef, error) {
	refSet := map[string]struct{}{}
	for _, m := range refRe.FindAllStringSubmatch(sql, -1) {
		refSet[m[1]] = struct{}{}
	}
	refs := make([]string, 0, len(refSet))
	for r := range refSet {
		refs = append(refs, r)
	}
	sort.Strings(refs)

	srcSet := map[SourceRef]struct{}{}
	for _, m := range sourceRe.FindAllStringSubmatch(sql, -1) {
		srcSet[SourceRef{Source: m[1], Table: m[2]}] = struct{}{}
	}
	sources := make([]SourceRef, 0, len(srcSet))
	for s := range srcSet {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Source != sources[j].Source {
			return sources[i].Source < sources[j].Source
		}
		return sources[i].Table < sources[j].Table
	})

	return refs, sources, nil
}

// Resolver maps symbolic references onto physical, dialect-quoted table
// references.
type Resolver struct {
	// Sources is the config mapping: Sources[source][table] = physical name.
	Sources map[string]map[string]string

	// Dialect quotes and qualifies physical names.
	Dialect storage.Dialect
}

// ResolveRef returns the physical reference for another definition's output.
// Definition outputs are always named after the definition.
func (r Resolver) ResolveRef(name string) string {
	return r.Dialect.TableRef(name)
}

// ResolveSource returns the physical reference for a raw source table, or an
// error when the source or table is not declared in the configuration.
func (r Resolver) ResolveSource(src, table string) (string, error) {
	tables, ok := r.Sources[src]
	if !ok {
		return "", fmt.Errorf("unknown source %q", src)
	}
	physical, ok := tables[table]
	if !ok {
		return "", fmt.Errorf("source %q declares no table %q", src, table)
	}
	return r.Dialect.TableRef(physical), nil
}

// Compiled is a definition rendered to executable SQL for one backend.
type Compiled struct {
	Def *Definition

	// SQL is the SELECT body with every macro expanded.
	SQL string

	// Fingerprint identifies the compiled SQL content for the run log.
	Fingerprint uint64
}

// Compile expands every macro in def against the resolver. Any macro-like
// text left after expansion is an error, so typos fail at compile time
// rather than reaching the database.
func Compile(def *Definition, r Resolver) (Compiled, error) {
	sql := def.SQL
	var firstErr error

	sql = sourceRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := sourceRe.FindStringSubmatch(m)
		physical, err := r.ResolveSource(sub[1], sub[2])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return physical
	})
	if firstErr != nil {
		return Compiled{}, fmt.Errorf("compile %s: %w", def.Name, firstErr)
	}

	sql = refRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := refRe.FindStringSubmatch(m)
		return r.ResolveRef(sub[1])
	})

	sql = dateRe.ReplaceAllStringFunc(sql, func(m string) string {
		args := splitTwoArgs(dateRe.FindStringSubmatch(m)[1])
		if args == nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("datediff_days wants exactly two arguments in %q", m)
			}
			return m
		}
		return r.Dialect.DateDiffDays(args[0], args[1])
	})
	if firstErr != nil {
		return Compiled{}, fmt.Errorf("compile %s: %w", def.Name, firstErr)
	}

	sql = castRe.ReplaceAllStringFunc(sql, func(m string) string {
		return r.Dialect.CastTimestamp(strings.TrimSpace(castRe.FindStringSubmatch(m)[1]))
	})

	if left := anyRe.FindString(sql); left != "" {
		return Compiled{}, fmt.Errorf("compile %s: unrecognized macro %q", def.Name, left)
	}

	return Compiled{
		Def:         def,
		SQL:         sql,
		Fingerprint: xxh3.HashString(sql),
	}, nil
}

// splitTwoArgs splits a two-argument macro body on its single top-level
// comma. Parenthesized sub-expressions may contain commas of their own.
func splitTwoArgs(body string) []string {
	depth := 0
	split := -1
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if split >= 0 {
					return nil // more than two arguments
				}
				split = i
			}
		}
	}
	if split < 0 {
		return nil
	}
	a := strings.TrimSpace(body[:split])
	b := strings.TrimSpace(body[split+1:])
	if a == "" || b == "" {
		return nil
	}
	return []string{a, b}
}
