package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"supplyetl/internal/config"
	"supplyetl/internal/metrics"
	"supplyetl/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cron schedule",
	Long: `Schedule starts a long-lived scheduler that triggers a full run on the
configured cron expression (default daily at midnight UTC). Runs never
overlap: if a run is still in progress when the next tick fires, the tick is
dropped. Stop with SIGINT or SIGTERM; an in-flight run is cancelled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadPipeline()
		if err != nil {
			return err
		}
		setupMetrics(cfg)
		return runSchedule(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(parent context.Context, cfg config.Pipeline) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()

	_, err = sched.Cron(cfg.Schedule.Cron).Do(func() {
		if err := p.Run(ctx, "schedule"); err != nil {
			log.Printf("schedule: job=%s status=failed err=%v", cfg.Job, err)
		}
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush failed err=%v", err)
		}
	})
	if err != nil {
		return usageError{fmt.Errorf("schedule %q: %w", cfg.Schedule.Cron, err)}
	}

	sched.StartAsync()
	log.Printf("schedule: job=%s cron=%q waiting", cfg.Job, cfg.Schedule.Cron)

	<-ctx.Done()
	log.Printf("schedule: job=%s stopping", cfg.Job)
	sched.Stop()
	return nil
}
