package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mind-engage/nopenaltycalc/internal/config"
	"github.com/mind-engage/nopenaltycalc/internal/db"
	"github.com/mind-engage/nopenaltycalc/internal/logging"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nopenaltyd",
		Short:         "No-penalty grade store and read API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.AddCommand(serveCmd(), migrateCmd(), showCmd(), tokenCmd())
	return root
}

func loadConfig() (config.Config, error) { return config.Load(configPath) }

// setup loads config, builds the logger and opens the database.
func setup(ctx context.Context) (config.Config, *zap.Logger, *sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return cfg, nil, nil, err
	}
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return cfg, logger, nil, err
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	if err != nil {
		return cfg, logger, nil, fmt.Errorf("db open failed: %w", err)
	}
	return cfg, logger, dbh, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the no_penalty_finalgrades table if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, dbh, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer dbh.Close()
			defer logger.Sync() //nolint:errcheck
			logger.Info("schema up to date", zap.String("driver", cfg.DBDriver))
			return nil
		},
	}
}
