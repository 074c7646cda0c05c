// Package config defines the YAML-serializable configuration model for the
// pipeline and a lightweight linter over decoded values.
//
// A pipeline file describes the full run: where the source CSVs live and
// which raw table each one loads into, where the SQL model files live and how
// their symbolic sources map onto physical tables, the storage backend, the
// schedule, and optional metrics/run-log settings.
//
// Example (trimmed):
//
//	job: supply_chain
//	storage:
//	  kind: postgres
//	  dsn: ${DATABASE_URL}
//	ingest:
//	  dataset_dir: ./Dataset
//	  files:
//	    - { path: olist_orders_dataset.csv, table: orders }
//	models:
//	  dir: ./models
//	  sources:
//	    raw: { orders: orders }
//	schedule:
//	  cron: "0 0 * * *"
//
// ${VAR} references anywhere in the file are expanded from the environment
// before decoding, so credentials stay out of the file itself.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level object decoded from a pipeline YAML file.
type Pipeline struct {
	// Job names the pipeline for logs, metrics labels, and the run log.
	Job string `yaml:"job"`

	Storage  Storage  `yaml:"storage"`
	Ingest   Ingest   `yaml:"ingest"`
	Models   Models   `yaml:"models"`
	Schedule Schedule `yaml:"schedule"`
	Metrics  Metrics  `yaml:"metrics"`
	RunLog   RunLog   `yaml:"runlog"`
	Runtime  Runtime  `yaml:"runtime"`
}

// Storage selects and configures the destination database.
type Storage struct {
	// Kind selects the backend: "postgres", "sqlite", "mysql".
	Kind string `yaml:"kind"`

	// DSN is the backend connection string. Typically "${DATABASE_URL}".
	DSN string `yaml:"dsn"`

	// Schema optionally namespaces all pipeline tables (postgres only).
	Schema string `yaml:"schema"`
}

// Ingest configures the ingestion loader.
type Ingest struct {
	// DatasetDir is prepended to each relative file path.
	DatasetDir string `yaml:"dataset_dir"`

	// BatchSize caps rows per bulk insert. Defaults to 1000.
	BatchSize int `yaml:"batch_size"`

	// Comma overrides the field delimiter (single character). Default ",".
	Comma string `yaml:"comma"`

	// Files maps source files to destination raw tables, in load order.
	Files []FileMapping `yaml:"files"`
}

// FileMapping binds one source file to one destination table.
type FileMapping struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// Models configures the transformation runner.
type Models struct {
	// Dir is the root of the model tree (<dir>/<layer>/<name>.sql).
	Dir string `yaml:"dir"`

	// Sources maps {{ source('src','table') }} references onto physical
	// tables: Sources[src][table] = physical name.
	Sources map[string]map[string]string `yaml:"sources"`
}

// Schedule configures the built-in scheduler.
type Schedule struct {
	// Cron is a five-field cron expression. Defaults to daily at midnight.
	Cron string `yaml:"cron"`
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend: "pushgateway" or "none"/empty.
	Backend string `yaml:"backend"`

	// GatewayURL is the Pushgateway base URL when Backend is "pushgateway".
	GatewayURL string `yaml:"gateway_url"`
}

// RunLog configures run auditing.
type RunLog struct {
	// Enabled turns on the etl_runs / etl_run_models audit tables.
	Enabled bool `yaml:"enabled"`
}

// Runtime controls runner concurrency.
type Runtime struct {
	// Workers bounds concurrent model builds; dependencies are always
	// respected. 0 or 1 means sequential.
	Workers int `yaml:"workers"`
}

// Defaults applied by Load when fields are zero.
const (
	DefaultBatchSize = 1000
	DefaultCron      = "0 0 * * *"
)

// Load reads, env-expands, and decodes a pipeline file, then applies
// defaults. It does not validate; run Validate separately so callers can
// surface all issues at once.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(raw))

	var p Pipeline
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.applyDefaults()
	return p, nil
}

func (p *Pipeline) applyDefaults() {
	if p.Ingest.BatchSize == 0 {
		p.Ingest.BatchSize = DefaultBatchSize
	}
	if p.Schedule.Cron == "" {
		p.Schedule.Cron = DefaultCron
	}
}
