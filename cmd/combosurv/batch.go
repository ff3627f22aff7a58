package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"combosurv/adapters/hsa"
	"combosurv/adapters/rng"
	"combosurv/adapters/store"
	"combosurv/app"
	"combosurv/internal"
	"combosurv/internal/batch"
	"combosurv/internal/config"
	"combosurv/internal/errors"
	"combosurv/ports"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	workers    int
	seed       int64
}

// loadConfig reads the configuration and applies command-line overrides.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("workers") {
		if o.workers <= 0 {
			return nil, errors.InvalidInput("--workers must be positive")
		}
		cfg.Analysis.Workers = o.workers
	}
	if cmd.Flags().Changed("seed") {
		cfg.Analysis.Seed = o.seed
	}
	return cfg, nil
}

// openLedger connects the results ledger when one is configured.
func openLedger(ctx context.Context, cfg *config.Config) (ports.ResultsRepository, func(), error) {
	if !cfg.Store.Enabled() {
		return nil, func() {}, nil
	}
	db, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store.NewResultsRepository(db), func() { db.Close() }, nil
}

// setupDeps resolves everything a batch needs. Any error here aborts the
// command before a single row is processed.
func (o *globalOptions) setupDeps(cmd *cobra.Command, dataset string) (app.Deps, func(), error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return app.Deps{}, nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	ds, err := cfg.Dataset(dataset)
	if err != nil {
		return app.Deps{}, nil, err
	}
	ledger, closeLedger, err := openLedger(cmd.Context(), cfg)
	if err != nil {
		return app.Deps{}, nil, err
	}

	deps := app.Deps{
		Config:   cfg,
		Dataset:  ds,
		Executor: batch.NewExecutor(batch.Config{Workers: cfg.Analysis.Workers, RowTimeout: cfg.Analysis.RowTimeout}, logger),
		RNG:      rng.NewAdapter(),
		Ledger:   ledger,
		Logger:   logger,
	}
	return deps, closeLedger, nil
}

type batchRunner func(ctx context.Context, deps app.Deps) (*app.Report, error)

func newBatchCmd(opts *globalOptions, use, short, long string, run batchRunner) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   use + " <dataset>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, closeDeps, err := opts.setupDeps(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDeps()

			report, err := run(cmd.Context(), deps)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

func newSeedsCmd(opts *globalOptions) *cobra.Command {
	var keepRuns bool
	cmd := newBatchCmd(opts, "seeds", "Generate seeded HSA predictions and select the median run",
		`Generate analysis.seed_runs HSA predictions per metadata row, summarize each
run by the mean Time at analysis.landmarks and select the median run. The
median run becomes <pred_dir>/<Experimental>-<Control>_combination_predicted_ind.csv
and the seed sheet (metadata plus ind_median_std and ind_median_run) is written
to metadata_sheet_seed.

Example: combosurv seeds PFS --workers 8`,
		func(ctx context.Context, deps app.Deps) (*app.Report, error) {
			if keepRuns {
				cfg := *deps.Config
				cfg.Analysis.KeepRuns = true
				deps.Config = &cfg
			}
			predictor := hsa.NewPredictor(deps.Config.Analysis.NIPD)
			return app.NewSeedService(deps, predictor).Run(ctx)
		})
	cmd.Flags().BoolVar(&keepRuns, "keep-runs", false, "keep per-seed prediction files in pred_dir")
	return cmd
}

func newPowerCmd(opts *globalOptions) *cobra.Command {
	return newBatchCmd(opts, "power", "Estimate the predictive power of HSA predictions",
		`Simulate analysis.trial_runs virtual trials per row, each enrolling
max(N_control, N_experimental) patients resampled from the HSA prediction, and
report the fraction with p < alpha and upper HR bound < hr_threshold against
the control and the experimental arm. Writes <table_dir>/<dataset>_predictive_power.csv.

An arm without published IPD is reconstructed from its curve with its own
enrollment: N_control for the control arm, N_experimental for the experimental
arm. Results can therefore differ from runs that sized both arms by N_control.

Example: combosurv power PFS --seed 0`,
		func(ctx context.Context, deps app.Deps) (*app.Report, error) {
			return app.NewPowerService(deps).Run(ctx)
		})
}

func newDiffCmd(opts *globalOptions) *cobra.Command {
	return newBatchCmd(opts, "diff", "Compare additivity and HSA predictions",
		`Compute normalized survival differences (Combo - Control, HSA - Control,
Additivity - HSA, Combo - Additivity) and a Cox test of additivity against HSA
for every row. Writes <table_dir>/<dataset>_additivity_hsa_difference.csv.

Example: combosurv diff PFS`,
		func(ctx context.Context, deps app.Deps) (*app.Report, error) {
			return app.NewDiffService(deps).Run(ctx)
		})
}

func printReport(w io.Writer, report *app.Report, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	fmt.Fprintf(w, "Run:          %s\n", report.RunID)
	fmt.Fprintf(w, "Output:       %s\n", report.Output)
	fmt.Fprintf(w, "Rows:         %d\n", report.Rows)
	fmt.Fprintf(w, "Failed:       %d\n", report.Failed)
	fmt.Fprintf(w, "Inconclusive: %d\n", report.Inconclusive)
	return nil
}
