// Package cli wires the cobra command tree. Commands share the --config,
// --env-file and -v flags; each command loads and validates the pipeline
// configuration itself so that validation errors surface before any
// connection is opened.
package cli

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"supplyetl/internal/config"
)

// Exit codes reported by cmd/supplyetl.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
	ExitPanic = 3
)

// usageError marks errors caused by bad invocation or bad configuration
// rather than a failed run.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// ExitCodeForError maps an Execute error to a process exit code.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitError
}

var rootFlags struct {
	configPath string
	envFile    string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:   "supplyetl",
	Short: "Batch ETL for supply-chain order data",
	Long: `supplyetl loads raw CSV exports into a relational store and rebuilds the
staging and mart layers from declarative SQL definitions.

Exit Codes:
  0 - Success
  1 - Run failed (load or transform error)
  2 - Usage or configuration error
  3 - Panic or unexpected system error`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootFlags.envFile != "" {
			if err := godotenv.Load(rootFlags.envFile); err != nil {
				return usageError{fmt.Errorf("load env file %s: %w", rootFlags.envFile, err)}
			}
		} else {
			// Best effort, matching the common .env convention.
			_ = godotenv.Load()
		}
		if !rootFlags.verbose {
			log.SetFlags(log.LstdFlags)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "supplyetl: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "configs/pipeline.yaml",
		"Path to the pipeline configuration file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", "",
		"Env file to load before reading the configuration (default: .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false,
		"Enable verbose logging")
}

// loadPipeline reads, expands and validates the configuration. Warnings are
// logged; errors abort with a usage exit code.
func loadPipeline() (config.Pipeline, error) {
	p, err := config.Load(rootFlags.configPath)
	if err != nil {
		return config.Pipeline{}, usageError{err}
	}
	issues := config.Validate(p)
	for _, is := range issues {
		if is.Severity == config.SeverityWarning {
			log.Printf("config: warning %s", is)
		}
	}
	if config.HasErrors(issues) {
		for _, is := range issues {
			if is.Severity == config.SeverityError {
				fmt.Fprintf(os.Stderr, "config: %s\n", is)
			}
		}
		return config.Pipeline{}, usageError{fmt.Errorf("configuration invalid: %s", rootFlags.configPath)}
	}
	return p, nil
}
