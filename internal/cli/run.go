package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

func newProcessCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Run diff detection now and post the result for approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := rt.components(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			inv := domain.Invocation{Kind: domain.InvocationProcess, Trigger: domain.TriggerManual, IssuedAt: rt.now().UTC()}
			res, err := c.Dispatcher.Handle(ctx, inv)
			if err != nil {
				return err
			}
			return printJSON(rt.out, res)
		},
	}
}

func newExecuteCmd(rt *runtime) *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:   "execute <diff-id>",
		Short: "Apply an approved diff now and cancel its pending one-shot trigger",
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

			inv := domain.NewExecuteInvocation(args[0], approvedBy, domain.ScheduleImmediate, rt.now())
			inv.Trigger = domain.TriggerManual
			res, err := c.Dispatcher.Handle(ctx, inv)
			if printErr := printJSON(rt.out, res); printErr != nil {
				return printErr
			}
			if err != nil {
				return fmt.Errorf("execute %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&approvedBy, "approved-by", "", "approver recorded on the invocation")
	return cmd
}
