package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres"
	"github.com/heartmarshall/zengin-sync/internal/app"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := rt.config()
			if err != nil {
				return err
			}
			dsn, err := app.ResolveDSN(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return postgres.Migrate(cmd.Context(), dsn, logger)
		},
	}
}
