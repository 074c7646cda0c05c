package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"supplyetl/internal/config"
	"supplyetl/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and model definitions without touching the database",
	Long: `Validate loads the configuration and every model definition, expands their
references and builds the dependency graph. Nothing is executed; the command
prints the execution order a run would use.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.Load(rootFlags.configPath)
		if err != nil {
			return usageError{err}
		}

		issues := config.Validate(p)
		for _, is := range issues {
			fmt.Fprintf(os.Stderr, "config: %s\n", is)
		}
		if config.HasErrors(issues) {
			return usageError{fmt.Errorf("configuration invalid: %s", rootFlags.configPath)}
		}

		defs, err := model.LoadDir(p.Models.Dir)
		if err != nil {
			return usageError{err}
		}
		graph, err := model.BuildGraph(defs, p.Models.Sources)
		if err != nil {
			return usageError{err}
		}

		fmt.Printf("configuration ok: %s\n", rootFlags.configPath)
		fmt.Printf("models ok: %d definition(s)\n", graph.Len())
		for i, name := range graph.Order() {
			def := graph.Def(name)
			fmt.Printf("  %2d. %s/%s (%s)\n", i+1, def.Layer, name, def.Materialized)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
