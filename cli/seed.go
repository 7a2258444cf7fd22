package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/semitexa/orm/hydrate"
	"github.com/semitexa/orm/seed"
)

func (a *App) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the default rows declared by seedable resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.connect(ctx); err != nil {
				return err
			}
			defer a.close()
			out := cmd.OutOrStdout()

			res, err := a.collect()
			if err != nil {
				return err
			}
			mapper := hydrate.NewMapper(res.Schema)
			runner := seed.NewRunner(seed.NewUpserter(mapper, a.adapter))
			counts, err := runner.Run(ctx, a.collector.Resources())
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(out, "No seedable resources registered.")
				return nil
			}
			tables := make([]string, 0, len(counts))
			for table := range counts {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			for _, table := range tables {
				c := counts[table]
				fmt.Fprintf(out, "%s: %d inserted, %d updated, %d unchanged\n",
					table, c.Inserted, c.Updated, c.Unchanged)
			}
			return nil
		},
	}
}
