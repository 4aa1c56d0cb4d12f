package main

import (
	"cmp"
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/urfave/cli/v3"
)

// envConfigPath selects a config file other than ./config.toml.
const envConfigPath = "SHELFX_CONFIG"

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	configPath := cmp.Or(os.Getenv(envConfigPath), "config.toml")
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	config.ApplyEnv()
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		logger.Fatalf("failed to run migrations: %v", err)
	}

	runner, err := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Storage:    repositories.NewKVRepository(db),
		History:    repositories.NewExportRepository(db),
		Logger:     logger,
	})
	if err != nil {
		db.Close()
		logger.Fatalf("failed to initialize: %v", err)
	}

	app := &cli.Command{
		Name:     "shelfx",
		Usage:    "Search Google Books and organize your bookshelves from the terminal",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = app.Run(ctx, os.Args)
	stop()
	runner.Close()
	db.Close()

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrMissingCredentials):
		logger.Error(err)
		os.Exit(1)
	default:
		logger.Fatalf("application error: %v", err)
	}
}
