package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/bytedance/sonic"
	"github.com/rkbansal/postify/app"
	"github.com/rkbansal/postify/config"
	"github.com/rkbansal/postify/internal/observability"
	"github.com/rkbansal/postify/repositories/postgres"
	"github.com/rkbansal/postify/routes"
	"github.com/rkbansal/postify/services/providers/openrouter"
	"github.com/rkbansal/postify/services/routing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "postify",
		Short:         "Turn articles into social media posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newModelsCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users and posts tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if !cfg.DatabaseEnabled() {
				return errors.New("no database configured: set DATABASE_URL or DB_HOST")
			}
			db, err := postgres.NewDB(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}
			logger.Info("schema is up to date")
			return nil
		},
	}
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the free models and the fallback chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return printModels(ctx, cmd.OutOrStdout(), cfg, logger)
		},
	}
}

// bootstrap loads configuration and builds the logger shared by every command
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, error) {
	logger, err := initLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.New(ctx)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger, nil
}

// initLogger builds the logger from LOG_LEVEL and LOG_FORMAT before the rest
// of the configuration is loaded
func initLogger() (*zap.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "json"
	}
	return observability.NewLogger(config.ObservabilityConfig{LogLevel: level, LogFormat: format})
}

func runServe(ctx context.Context) error {
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	logger.Info("starting postify",
		zap.String("environment", cfg.Environment),
		zap.String("address", cfg.Server.Address()))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		_ = logger.Sync()
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := deps.Close(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return serveUntilDone(ctx, srv, cfg.Server, logger)
}

// serveUntilDone runs srv until ctx is cancelled and then drains in-flight requests
func serveUntilDone(ctx context.Context, srv *http.Server, cfg config.ServerConfig, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

type modelsReport struct {
	DefaultModel     string   `json:"defaultModel"`
	PreferFreeModels bool     `json:"preferFreeModels"`
	FreeModels       []string `json:"freeModels"`
	FallbackChain    []string `json:"fallbackChain"`
}

func printModels(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger) error {
	gateway, err := openrouter.New(openrouter.ConfigFrom(cfg.OpenRouter), logger)
	if err != nil {
		return err
	}

	cache := routing.NewFreeModelCache(gateway, routing.NewMemoryStore(), routing.SystemClock, logger)
	coord := routing.NewCoordinator(routing.Config{
		DefaultModel:     cfg.OpenRouter.DefaultModel,
		PreferFreeModels: cfg.OpenRouter.PreferFreeModels,
		RetryDelay:       cfg.OpenRouter.RetryDelay,
	}, gateway, cache, routing.NewHealthTable(routing.SystemClock), routing.TimerSleeper, logger)

	report := modelsReport{
		DefaultModel:     coord.DefaultModel(),
		PreferFreeModels: coord.PreferFreeModels(),
		FreeModels:       []string{},
		FallbackChain:    coord.BuildFallbackChain(ctx),
	}
	for _, m := range coord.GetFreeModels(ctx) {
		report.FreeModels = append(report.FreeModels, m.ID)
	}

	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
