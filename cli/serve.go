package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/finance-gate/api"
	"github.com/warp/finance-gate/config"
	memstore "github.com/warp/finance-gate/generic/store"
	"github.com/warp/finance-gate/logging"
	"github.com/warp/finance-gate/metrics"
	"github.com/warp/finance-gate/store/sqlite"
)

type serveFlags struct {
	port          int
	db            string
	scenario      string
	auditInterval time.Duration
	noAudit       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP write gate",
		Long: `Run the HTTP API. Every document write is validated before it is
committed; rejected writes answer 422 with the verdict.

Settings come from the environment (SERVER_PORT, DB_PATH, POLICY_FILE,
GATE_FENCED, LOG_LEVEL, ...). Flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, flags)
		},
	}

	cmd.Flags().IntVar(&flags.port, "port", 0, "HTTP port (overrides SERVER_PORT)")
	cmd.Flags().StringVar(&flags.db, "db", "", "SQLite database path (overrides DB_PATH)")
	cmd.Flags().StringVar(&flags.scenario, "scenario", "", "demo dataset to load at startup")
	cmd.Flags().DurationVar(&flags.auditInterval, "audit-interval", time.Hour, "re-validation sweep interval")
	cmd.Flags().BoolVar(&flags.noAudit, "no-audit", false, "disable the background re-validation sweep")

	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, flags *serveFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}
	if flags.db != "" {
		cfg.Store.DBPath = flags.db
	}
	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	logging.Setup(level, cfg.Logging.Format)

	policyFile := opts.Policy
	if policyFile == "" {
		policyFile = cfg.Gate.PolicyFile
	}
	policy, err := loadPolicy(policyFile)
	if err != nil {
		return err
	}

	var store api.Store
	if cfg.Store.InMemory() {
		slog.Warn("no DB_PATH set, records are kept in memory only")
		store = memstore.NewMemory()
	} else {
		s, err := sqlite.New(cfg.Store.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to initialize database", err)
		}
		defer s.Close()
		store = s
	}

	handler := api.NewHandler(store, api.Options{
		Policy:          policy,
		Fenced:          cfg.Gate.Fenced,
		AcceptUnknown:   cfg.Gate.AcceptUnknown,
		MaxPayloadBytes: cfg.Gate.MaxPayloadBytes,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Metrics:         metrics.New(),
	})

	if flags.scenario != "" {
		if err := handler.LoadScenarioByID(ctx, flags.scenario); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load scenario %q", flags.scenario), err)
		}
	}

	handler.Auditor.CheckInterval = flags.auditInterval
	handler.Auditor.Enabled = !flags.noAudit && flags.auditInterval > 0
	handler.Auditor.Start()
	defer handler.Auditor.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr, "config", cfg.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return WrapExitError(ExitFailure, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "server forced to shutdown", err)
	}
	slog.Info("server stopped")
	return nil
}
