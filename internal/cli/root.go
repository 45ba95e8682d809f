// Package cli implements zenginctl, the operator command line for the diff
// workflow: manual runs, direct execution, migrations, audit queries and
// invocation tokens for the internal HTTP endpoint.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/zengin-sync/internal/app"
	"github.com/heartmarshall/zengin-sync/internal/config"
)

// runtime carries what commands need from the outside world.
type runtime struct {
	out        io.Writer
	loadConfig func(path string) (*config.Config, error)
	build      func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.Components, error)
	now        func() time.Time

	configPath string
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rt := &runtime{
		out:        os.Stdout,
		loadConfig: config.LoadFrom,
		build:      app.Build,
		now:        time.Now,
	}
	root := newRootCmd(rt)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "zenginctl",
		Short:         "Operate the zengin bank-master sync workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	root.SetOut(rt.out)

	root.AddCommand(
		newProcessCmd(rt),
		newExecuteCmd(rt),
		newDiffsCmd(rt),
		newAuditCmd(rt),
		newMigrateCmd(rt),
		newTokenCmd(rt),
		newVersionCmd(rt),
	)
	return root
}

func (rt *runtime) config() (*config.Config, *slog.Logger, error) {
	path := rt.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := rt.loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg.Log), nil
}

// components loads config and wires the full graph. The caller must Close it.
func (rt *runtime) components(ctx context.Context) (*app.Components, error) {
	cfg, logger, err := rt.config()
	if err != nil {
		return nil, err
	}
	return rt.build(ctx, cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(rt.out, "zenginctl %s\n", app.BuildVersion())
			return err
		},
	}
}
