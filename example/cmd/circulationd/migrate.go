package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/example/config"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the circulation tables",
		Long: `Create the circulation tables in the configured database.

The statements are idempotent; running migrate against an already migrated
database is a no-op.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), rootOpts)
		},
	}
}

func runMigrations(ctx context.Context, opts *RootOptions) error {
	logger := newLogger(opts)

	pool, poolErr := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolConfig())
	if poolErr != nil {
		return fmt.Errorf("connect to database: %w", poolErr)
	}
	defer pool.Close()

	for _, statement := range postgresengine.DefaultSchemaStatements() {
		if _, execErr := pool.Exec(ctx, statement); execErr != nil {
			return fmt.Errorf("apply schema statement: %w", execErr)
		}
	}

	logger.Info("schema is up to date")

	return nil
}
