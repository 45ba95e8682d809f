package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

func newDiffsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diffs",
		Short: "Inspect diff records",
	}
	cmd.AddCommand(newDiffsListCmd(rt), newDiffsShowCmd(rt))
	return cmd
}

func newDiffsListCmd(rt *runtime) *cobra.Command {
	var (
		status string
		since  time.Duration
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diff records with a status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := domain.DiffStatus(status)
			if !st.IsValid() {
				return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
			}
			ctx := cmd.Context()
			c, err := rt.components(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			recs, err := c.Store.ListByStatus(ctx, st, rt.now().Add(-since), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tTOTAL\tIMPACTED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					r.ID, r.Timestamp.Format(time.RFC3339), r.DiffType, r.Summary.Total, r.Summary.ImpactedAccounts)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.StatusPending), "record status")
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "how far back to look")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records")
	return cmd
}

func newDiffsShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <diff-id>",
		Short: "Print one diff record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.ValidateDiffID(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := rt.components(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			rec, err := c.Store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(rt.out, rec)
		},
	}
}
