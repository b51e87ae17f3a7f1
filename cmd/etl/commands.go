package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	httpadapter "github.com/couchcryptid/rpp-data-etl-service/internal/adapter/http"
	"github.com/couchcryptid/rpp-data-etl-service/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "etl",
		Short:         "Build and distribute the Regional Price Parity store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := newApp()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				return err
			}
			*a = *loaded
			return nil
		},
	}

	root.AddCommand(
		stageCmd(a, "fetch", "Download metro and state price parities from the BEA API", a.fetch),
		stageCmd(a, "load", "Rebuild the SQLite store from the raw artifacts", a.load),
		stageCmd(a, "export", "Write the store as a chunked SQL bundle", a.export),
		stageCmd(a, "publish", "Upload and announce the exported bundle", a.publish),
		newRunCmd(a),
		newSeedCmd(a),
	)
	return root
}

// stageCmd wraps a single stage as a subcommand that logs its failure.
func stageCmd(a *app, use, short string, run func(context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := run(cmd.Context()); err != nil {
				a.logger.Error(use+" failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var opsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run fetch, load, export, and publish in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := pipeline.New(a.stages(), a.clock, a.logger, a.metrics)

			if opsAddr != "" {
				srv := httpadapter.NewServer(opsAddr, p, nil, a.logger)
				go func() {
					if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("http server error", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						a.logger.Error("http server shutdown error", "error", err)
					}
				}()
			}

			if err := p.Run(ctx); err != nil {
				a.logger.Error("pipeline failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opsAddr, "ops-addr", "", "Serve /healthz, /readyz and /metrics on this address while running")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		bundleDir string
		dbPath    string
		noVerify  bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply an exported bundle to a deployed store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bundleDir == "" {
				bundleDir = a.cfg.SeedDir
			}
			if dbPath == "" {
				dbPath = a.cfg.ServeDBPath
			}
			if err := a.seed(cmd.Context(), bundleDir, dbPath, !noVerify); err != nil {
				a.logger.Error("seed failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleDir, "bundle", "", "Bundle directory (default SEED_DIR)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Target store path (default SERVE_DB_PATH)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip manifest checksum verification")
	return cmd
}
