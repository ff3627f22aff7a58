package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "combosurv",
		Short: "Survival analysis of drug combinations from digitized Kaplan-Meier curves",
		Long: `combosurv reconstructs patient data from digitized survival curves, predicts
combination survival under highest single agent, and compares predictions with
Cox proportional hazards tests and virtual trial simulation.

Each batch reads a dataset block from combosurv.yaml and processes every row
of the dataset's metadata sheet in parallel. A row that fails is reported in
the output table with status "failed" and never stops the batch.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./combosurv.yaml)")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", 0, "override analysis.workers")
	rootCmd.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "override analysis.seed")

	rootCmd.AddCommand(
		newSeedsCmd(opts),
		newPowerCmd(opts),
		newDiffCmd(opts),
		newConfigCmd(opts),
		newLedgerCmd(opts),
	)
	return rootCmd
}
