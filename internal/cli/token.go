package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/zengin-sync/internal/auth"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

func newTokenCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue invocation tokens for POST /internal/invocations",
	}
	cmd.AddCommand(newTokenSignCmd(rt))
	return cmd
}

func newTokenSignCmd(rt *runtime) *cobra.Command {
	var (
		diffID     string
		approvedBy string
	)

	cmd := &cobra.Command{
		Use:       "sign <process|execute>",
		Short:     "Print a signed invocation token",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"process", "execute"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := rt.config()
			if err != nil {
				return err
			}
			if cfg.Invocation.Secret == "" {
				return domain.NewValidationError("invocation.secret", "not configured")
			}

			var inv domain.Invocation
			switch args[0] {
			case "process":
				inv = domain.Invocation{Kind: domain.InvocationProcess, Trigger: domain.TriggerManual, IssuedAt: rt.now().UTC()}
			case "execute":
				inv = domain.NewExecuteInvocation(diffID, approvedBy, domain.ScheduleImmediate, rt.now())
				inv.Trigger = domain.TriggerManual
			default:
				return domain.NewValidationError("kind", fmt.Sprintf("unknown kind %q", args[0]))
			}

			token, err := auth.NewInvocationSigner(cfg.Invocation.Secret, cfg.Invocation.Issuer, cfg.Invocation.TTL).Sign(inv)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(rt.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&diffID, "diff", "", "diff id (execute only)")
	cmd.Flags().StringVar(&approvedBy, "approved-by", "", "approver recorded on the invocation")
	return cmd
}
