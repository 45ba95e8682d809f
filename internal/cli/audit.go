package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres/audit"
	"github.com/heartmarshall/zengin-sync/internal/app"
	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/internal/service/auditlog"
)

func newAuditCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
	}
	cmd.AddCommand(newAuditListCmd(rt))
	return cmd
}

func newAuditListCmd(rt *runtime) *cobra.Command {
	var (
		f     domain.AuditFilter
		event string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Validated before the pool is opened.
			f.EventType = domain.AuditEventType(event)
			if f.EventType != "" && !f.EventType.IsValid() {
				return domain.NewValidationError("event", "unknown event type "+event)
			}

			cfg, logger, err := rt.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := app.OpenPool(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			entries, err := auditlog.NewLogger(logger, audit.New(pool), 0).List(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(rt.out, entries)
		},
	}
	cmd.Flags().StringVar(&f.UserID, "user", "", "only entries by this Slack user id")
	cmd.Flags().StringVar(&event, "event", "", "only entries of this event type")
	cmd.Flags().IntVar(&f.Limit, "limit", auditlog.DefaultLimit, "maximum entries")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "entries to skip")
	return cmd
}
