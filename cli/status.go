package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server capabilities, declared schema summary, and pending changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.connect(ctx); err != nil {
				return err
			}
			defer a.close()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Server version:   %s\n", a.flavor)
			fmt.Fprintf(out, "Database:         %s\n", a.cfg.Database)
			fmt.Fprintf(out, "Pool:             %d total, %d available\n", a.pool.Size(), a.pool.Available())
			fmt.Fprintln(out, "Capabilities:")
			fmt.Fprintf(out, "  atomic DDL          %s\n", yesNo(a.flavor.AtomicDDL()))
			fmt.Fprintf(out, "  instant ADD COLUMN  %s\n", yesNo(a.flavor.InstantAddColumn()))

			res := a.collector.Collect()
			var columns, indexes int
			for _, t := range res.Schema.Tables {
				columns += len(t.Columns)
				indexes += len(t.Indexes)
			}
			fmt.Fprintf(out, "Declared schema:  %d tables, %d columns, %d indexes\n",
				len(res.Schema.Tables), columns, indexes)
			for _, warning := range res.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", warning)
			}
			if !res.Ok() {
				for _, verr := range res.Errors {
					fmt.Fprintf(out, "  error: %s\n", verr.Error())
				}
				fmt.Fprintf(out, "Validation:       FAILED (%d errors)\n", len(res.Errors))
				return nil
			}
			fmt.Fprintln(out, "Validation:       ok")

			_, _, plan, err := a.buildPlan(ctx)
			if err != nil {
				return err
			}
			if len(plan.Operations) == 0 {
				fmt.Fprintln(out, "Sync:             up to date")
			} else {
				fmt.Fprintf(out, "Sync:             %d operation(s) pending, %d destructive\n",
					len(plan.Operations), plan.Destructive())
			}
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
