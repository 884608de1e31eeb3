package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/example/api"
	"github.com/AntonStoeckl/library-circulation-go/example/config"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr         string
	MaxOpenLoans int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the circulation HTTP API",
		Long: `Start the circulation HTTP API backed by PostgreSQL.

The database DSN is taken from CIRCULATION_POSTGRES_DSN; reads are routed to
a replica when CIRCULATION_POSTGRES_REPLICA_DSN is set.

Example:
  circulationd serve --addr :8080
  circulationd serve --addr :8080 --max-open-loans 5 --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&opts.MaxOpenLoans, "max-open-loans", 0, "maximum open loans per member (0 = unlimited)")

	return cmd
}

func runServer(ctx context.Context, opts *ServeOptions) error {
	logger := newLogger(opts.RootOptions)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, poolErr := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolConfig())
	if poolErr != nil {
		return fmt.Errorf("connect to database: %w", poolErr)
	}
	defer pool.Close()

	handleOptions := []postgresengine.Option{
		postgresengine.WithLogger(logger),
	}

	var handle postgresengine.DBHandle
	var handleErr error

	if replicaConfig := config.PostgresPGXPoolReplicaConfig(); replicaConfig != nil {
		replicaPool, replicaErr := pgxpool.NewWithConfig(ctx, replicaConfig)
		if replicaErr != nil {
			return fmt.Errorf("connect to replica: %w", replicaErr)
		}
		defer replicaPool.Close()

		handle, handleErr = postgresengine.NewDBHandleFromPGXPoolAndReplica(pool, replicaPool, handleOptions...)
	} else {
		handle, handleErr = postgresengine.NewDBHandleFromPGXPool(pool, handleOptions...)
	}

	if handleErr != nil {
		return fmt.Errorf("create database handle: %w", handleErr)
	}

	ledger := postgresengine.NewInventoryLedger(handle)
	store := postgresengine.NewIssueRecordStore(handle)
	members := postgresengine.NewMemberDirectory(handle)
	auditLog := postgresengine.NewAuditLog(handle)
	facade := postgresengine.NewQueryFacade(handle)

	engineOptions := []circulation.EngineOption{
		circulation.WithLogger(logger),
		circulation.WithAuditLog(auditLog),
	}
	if opts.MaxOpenLoans > 0 {
		engineOptions = append(engineOptions, circulation.WithEligibilityPolicy(circulation.MaxOpenLoansPolicy(opts.MaxOpenLoans)))
	}

	engine, engineErr := circulation.NewCirculationEngine(ledger, store, members, engineOptions...)
	if engineErr != nil {
		return fmt.Errorf("create circulation engine: %w", engineErr)
	}

	handler := api.NewHandler(engine, facade, nil)

	server := &http.Server{
		Addr:    opts.Addr,
		Handler: api.NewRouter(handler),
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("circulation API listening", "addr", opts.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case serveErr := <-serverErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", serveErr)
		}

		return nil

	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}

		return nil
	}
}
