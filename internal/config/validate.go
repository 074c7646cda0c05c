// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// config (e.g. "storage.kind", "ingest.files[2].table").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the list is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a Pipeline. It does not mutate the
// pipeline; callers decide whether to treat warnings as fatal.
func Validate(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs, metrics, and run-log entries",
		})
	}

	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateIngest(p.Ingest)...)
	issues = append(issues, validateModels(p.Models)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	// Unknown kinds are warnings for forward compatibility; the factory
	// rejects them at open time with the registered alternatives.
	known := map[string]struct{}{"postgres": {}, "sqlite": {}, "mysql": {}}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty (did the ${VAR} reference expand to nothing?)",
		})
	}

	if s.Schema != "" && s.Kind != "postgres" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.schema",
			Message:  fmt.Sprintf("schema is ignored by the %q backend", s.Kind),
		})
	}

	return issues
}

func validateIngest(in Ingest) []Issue {
	var issues []Issue

	if len(in.Files) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.files",
			Message:  "at least one file mapping is required",
		})
	}

	if in.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.batch_size",
			Message:  "batch_size must not be negative",
		})
	}

	if len(in.Comma) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.comma",
			Message:  "comma must be a single character",
		})
	}

	seen := map[string]int{}
	for i, f := range in.Files {
		if strings.TrimSpace(f.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("ingest.files[%d].path", i),
				Message:  "path must not be empty",
			})
		}
		if strings.TrimSpace(f.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("ingest.files[%d].table", i),
				Message:  "table must not be empty",
			})
			continue
		}
		if prev, dup := seen[f.Table]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("ingest.files[%d].table", i),
				Message:  fmt.Sprintf("destination table %q already used by files[%d]; the later load would silently replace the earlier one", f.Table, prev),
			})
		}
		seen[f.Table] = i
	}

	return issues
}

func validateModels(m Models) []Issue {
	var issues []Issue

	if strings.TrimSpace(m.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "models.dir",
			Message:  "models.dir must not be empty",
		})
	}

	for src, tables := range m.Sources {
		if len(tables) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "models.sources." + src,
				Message:  "source declares no tables",
			})
		}
		for logical, physical := range tables {
			if strings.TrimSpace(physical) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("models.sources.%s.%s", src, logical),
					Message:  "physical table name must not be empty",
				})
			}
		}
	}

	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none", "pushgateway":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	if m.Backend == "pushgateway" && strings.TrimSpace(m.GatewayURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.gateway_url",
			Message:  "gateway_url is required when backend is \"pushgateway\"",
		})
	}
	return issues
}
