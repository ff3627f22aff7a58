package main

import (
	"fmt"
	"text/tabwriter"

	"combosurv/domain/core"
	"combosurv/internal/errors"
	"combosurv/internal/migration"

	"github.com/spf13/cobra"
)

func newLedgerCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect recorded batch runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the results ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled() {
				return errors.ConfigInvalid("store.driver is not configured")
			}
			// opening the store applies pending migrations
			_, closeLedger, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			closeLedger()
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger schema is at version %s (%s)\n", migration.NewRunner().Version(), cfg.Store.Driver)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded run and its row outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled() {
				return errors.ConfigInvalid("store.driver is not configured")
			}
			ledger, closeLedger, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeLedger()

			run, err := ledger.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			rows, err := ledger.ListRows(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s, dataset %s)\n", run.ID, run.Kind, run.Dataset)
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "Finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "Rows: %d, failed: %d\n\n", run.Rows, run.Failed)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW\tEXPERIMENTAL\tCONTROL\tSTATUS\tERROR")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.RowIndex, r.Experimental, r.Control, r.Status, r.Error)
			}
			return tw.Flush()
		},
	})
	return cmd
}
