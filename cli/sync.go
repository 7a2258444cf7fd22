package cli

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/semitexa/orm/syncer"
)

func (a *App) syncCommand() *cobra.Command {
	var dryRun, allowDestructive bool
	var outputFile string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the live database with the declared schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.connect(ctx); err != nil {
				return err
			}
			defer a.close()
			out := cmd.OutOrStdout()

			_, _, plan, err := a.buildPlan(ctx)
			if err != nil {
				return err
			}
			engine := &syncer.Engine{
				Executor:         a.adapter,
				Tx:               a.txm,
				Flavor:           a.flavor,
				AllowDestructive: allowDestructive,
				HistoryDir:       a.HistoryDir,
			}

			if outputFile != "" {
				run, _ := engine.Select(plan)
				script := (&syncer.Plan{Operations: run}).Statements()
				if err := os.WriteFile(outputFile, []byte(script), 0666); err != nil {
					return err
				}
				log.Infof("wrote %d operation(s) to %s", len(run), outputFile)
			}

			if dryRun {
				report := engine.DryRun(plan)
				if len(report.Applied) == 0 && len(report.Skipped) == 0 {
					fmt.Fprintln(out, "Schema is up to date.")
					return nil
				}
				for _, op := range report.Applied {
					fmt.Fprintf(out, "would run %s\n", describeOp(op))
				}
				for _, op := range report.Skipped {
					fmt.Fprintf(out, "would skip %s\n", describeOp(op))
				}
				return nil
			}

			report, err := engine.Execute(ctx, plan)
			if err != nil {
				if len(report.Applied) > 0 && !report.Transaction {
					for _, op := range report.Applied {
						fmt.Fprintf(out, "applied before failure: %s\n", op.Description)
					}
				}
				return err
			}
			if len(report.Applied) == 0 && len(report.Skipped) == 0 {
				fmt.Fprintln(out, "Schema is up to date.")
				return nil
			}
			fmt.Fprintf(out, "Applied %d operation(s), skipped %d destructive.\n",
				len(report.Applied), len(report.Skipped))
			if report.HistoryJSON != "" {
				fmt.Fprintf(out, "History: %s\n", report.HistoryJSON)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without executing it")
	cmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "execute destructive operations instead of skipping them")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "also write the selected operations as a SQL script to FILE")
	return cmd
}
