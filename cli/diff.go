package cli

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/semitexa/orm/state"
)

func (a *App) diffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show the DDL operations a sync would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.connect(ctx); err != nil {
				return err
			}
			defer a.close()
			out := cmd.OutOrStdout()

			res, live, plan, err := a.buildPlan(ctx)
			if err != nil {
				return err
			}
			if len(plan.Operations) == 0 {
				fmt.Fprintln(out, "Schema is up to date.")
				return nil
			}

			for _, op := range plan.Operations {
				fmt.Fprintln(out, describeOp(op))
			}

			// Table-level unified diff: live rendition on the left, declared
			// on the right. Only tables present on both sides are shown; pure
			// creates and drops are already fully described above.
			liveByName := live.TablesByName()
			for _, t := range res.Schema.Tables {
				liveTable, exists := liveByName[t.Name]
				if !exists {
					continue
				}
				rendered, err := renderTableDiff(liveTable, t.CreateStatement())
				if err != nil {
					return err
				}
				if rendered != "" {
					fmt.Fprintln(out)
					fmt.Fprint(out, rendered)
				}
			}
			return nil
		},
	}
}

func renderTableDiff(live *state.Table, declared string) (string, error) {
	liveDef := live.Definition()
	if liveDef == declared {
		return "", nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(liveDef + "\n"),
		B:        difflib.SplitLines(declared + "\n"),
		FromFile: "live/" + live.Name,
		ToFile:   "declared/" + live.Name,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(text, "\n") + "\n", nil
}
