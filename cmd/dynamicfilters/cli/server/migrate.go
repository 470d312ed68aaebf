package server

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boutdepapier/dynamicfilters/internal/agent"
	config "github.com/boutdepapier/dynamicfilters/internal/config/server"
	"github.com/boutdepapier/dynamicfilters/pkg/db/migrations"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the filter store schema",
		Long:  "Apply, roll back or inspect the versioned migrations of the filter store.",
	}

	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateRollbackCommand())
	cmd.AddCommand(newMigrateStatusCommand())

	return cmd
}

func withMigrator(ctx context.Context, fn func(*migrations.Migrator) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	st, err := agent.OpenStore(ctx, cfg.Metadata)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(migrations.NewMigrator(st.DB()))
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				count, err := m.MigrateCount(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", count)
				return nil
			})
		},
	}
}

func newMigrateRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Revert the last applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				migration, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d (%s)\n", migration.Version, migration.Description)
				return nil
			})
		},
	}
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tAPPLIED\tAPPLIED AT\tDESCRIPTION")
				for _, s := range statuses {
					appliedAt := "-"
					if s.Applied {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", s.Version, s.Applied, appliedAt, s.Description)
				}
				return w.Flush()
			})
		},
	}
}
