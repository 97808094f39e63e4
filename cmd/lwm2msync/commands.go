package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
)

// newRootCommand runs the service by default; "migrate" manages the
// profile database schema without starting it.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lwm2msync",
		Short: "Keep backend device state in step with LwM2M devices",
		Long: `lwm2msync consumes registrations, read responses and notifications
from an LwM2M server stack over MQTT, applies per-device reporting profiles
and publishes attributes and telemetry to the backend.

The configuration file is read from $LWM2MSYNC_CONFIG, or
configs/config.yaml when unset.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.AddCommand(newMigrateCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or roll back the profile database schema",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				st, err := db.SchemaStatus(ctx)
				if err != nil {
					return err
				}
				return printSchemaStatus(cmd.OutOrStdout(), st)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the newest applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withDatabase(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				reverted, err := db.Rollback(ctx, steps)
				for _, v := range reverted {
					fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", v)
				}
				if err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				if len(reverted) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
				}
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	migrate.AddCommand(status, down)
	return migrate
}

// withDatabase opens the configured database for fn. It does not migrate.
func withDatabase(ctx context.Context, fn func(context.Context, *database.DB) error) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command
	return fn(ctx, db)
}

func printSchemaStatus(out io.Writer, st database.SchemaStatus) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, m := range st.Applied {
		fmt.Fprintf(tw, "%s\t%s\tapplied\n", m.Version, m.Name)
	}
	for _, m := range st.Pending {
		fmt.Fprintf(tw, "%s\t%s\tpending\n", m.Version, m.Name)
	}
	return tw.Flush()
}
