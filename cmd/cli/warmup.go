package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fulfilld/sourcing-service/internal/database"
	"github.com/fulfilld/sourcing-service/internal/filter"
)

var warmupConcurrency int64

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Precompute filter snapshots against the configured database",
	Long: `Runs the filter warm-start sweep in-process: every active filter with
precomputation enabled is compiled and evaluated against the full fleet
using the neutral probe order. Useful for verifying rules after a deploy.`,
	RunE: runWarmup,
}

func init() {
	warmupCmd.Flags().Int64Var(&warmupConcurrency, "concurrency", 4, "parallel filter evaluations")
	rootCmd.AddCommand(warmupCmd)
}

func runWarmup(cmd *cobra.Command, args []string) error {
	engine := filter.NewEngine(database.FilterRepo{}, database.LocationRepo{}, filter.Options{
		WarmupConcurrency: warmupConcurrency,
	})

	engine.WarmStart(context.Background())

	m := engine.Metrics()
	if m.Errors > 0 {
		return fmt.Errorf("warmup finished with %d failed filters", m.Errors)
	}
	logger.Info().
		Int64("executions", m.TotalExecutions).
		Float64("avg_ms", m.AverageExecutionTime).
		Msg("warmup finished")
	return nil
}
