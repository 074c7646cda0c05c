package cli

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supplyetl/internal/config"
	"supplyetl/internal/metrics"
	"supplyetl/internal/metrics/prompush"
	"supplyetl/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full pipeline run (load, then transform)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			return p.Run(ctx, "manual")
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run only the load stage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			return p.Ingest(ctx, "manual")
		})
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Run only the transform stage against already loaded data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			return p.Transform(ctx, "manual")
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd, ingestCmd, transformCmd)
}

// withPipeline loads config, wires metrics, opens storage, runs fn under a
// signal-aware context and flushes metrics before returning.
func withPipeline(parent context.Context, fn func(context.Context, *pipeline.Pipeline) error) error {
	cfg, err := loadPipeline()
	if err != nil {
		return err
	}
	setupMetrics(cfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	runErr := fn(ctx, p)
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush failed err=%v", err)
	}
	return runErr
}

func setupMetrics(cfg config.Pipeline) {
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, cfg.Metrics.GatewayURL)
		if err != nil {
			log.Printf("metrics: pushgateway setup failed, metrics disabled err=%v", err)
			return
		}
		metrics.SetBackend(b)
	case "", "none":
	default:
		// Validate already warned; run without metrics.
		log.Printf("metrics: backend=%q not recognized, metrics disabled", cfg.Metrics.Backend)
	}
}
