// Package model loads declarative SQL definitions, resolves their symbolic
// references, and arranges them into a dependency graph.
//
// A definition is one .sql file under <dir>/<layer>/<name>.sql producing
// exactly one table or view named after the file. Definitions never hard-code
// physical table names; they use reference macros instead:
//
//	{{ source('raw', 'orders') }}   upstream raw table, mapped via config
//	{{ ref('stg_orders') }}         another definition's output
//	{{ datediff_days(a, b) }}       dialect-specific day difference
//	{{ cast_timestamp(expr) }}      dialect-specific timestamp cast
//
// Optional leading "-- key: value" comment lines configure the definition;
// currently the only key is "materialized" (view or table). Staging defaults
// to view, every other layer to table.
package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Materialization selects how a definition's result is stored.
type Materialization string

const (
	MaterializedView  Materialization = "view"
	MaterializedTable Materialization = "table"
)

// Layer names follow the medallion convention used by the models directory.
const (
	LayerStaging = "staging"
	LayerMarts   = "marts"
)

// SourceRef is one {{ source(...) }} occurrence.
type SourceRef struct {
	Source string
	Table  string
}

// Definition is one loaded SQL model.
type Definition struct {
	Name         string
	Layer        string
	Path         string
	Materialized Materialization

	// SQL is the body with config header lines removed, macros intact.
	SQL string

	// Refs are the definition names this one depends on, sorted, unique.
	Refs []string

	// Sources are the raw-table references, sorted, unique.
	Sources []SourceRef
}

// LoadDir reads every *.sql file directly under the layer subdirectories of
// dir. Duplicate definition names across layers are an error since the name
// is also the output table name.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	var defs []*Definition
	byName := map[string]string{}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		layer := e.Name()
		files, err := filepath.Glob(filepath.Join(dir, layer, "*.sql"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, path := range files {
			def, err := LoadFile(path, layer)
			if err != nil {
				return nil, err
			}
			if prev, dup := byName[def.Name]; dup {
				return nil, fmt.Errorf("duplicate definition %q: %s and %s", def.Name, prev, path)
			}
			byName[def.Name] = path
			defs = append(defs, def)
		}
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no .sql definitions found under %s", dir)
	}
	return defs, nil
}

// LoadFile parses a single definition file.
func LoadFile(path, layer string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	def := &Definition{
		Name:  name,
		Layer: layer,
		Path:  path,
	}
	if layer == LayerStaging {
		def.Materialized = MaterializedView
	} else {
		def.Materialized = MaterializedTable
	}

	body, err := parseHeader(string(raw), def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.SQL = strings.TrimSpace(body)
	if def.SQL == "" {
		return nil, fmt.Errorf("%s: empty definition body", path)
	}

	refs, sources, err := scanMacros(def.SQL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Refs = refs
	def.Sources = sources

	return def, nil
}

// parseHeader consumes leading "-- key: value" lines, applying recognized
// keys to def, and returns the remaining body.
func parseHeader(content string, def *Definition) (string, error) {
	lines := strings.Split(content, "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		kv := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		key, value, found := strings.Cut(kv, ":")
		if !found {
			// A plain comment ends the header block.
			break
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "materialized":
			switch Materialization(value) {
			case MaterializedView, MaterializedTable:
				def.Materialized = Materialization(value)
			default:
				return "", fmt.Errorf("invalid materialized value %q (want view or table)", value)
			}
		default:
			// Unknown keys end the header; they are treated as plain comments.
			return strings.Join(lines[i:], "\n"), nil
		}
	}
	return strings.Join(lines[i:], "\n"), nil
}
