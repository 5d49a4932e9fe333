package main

import (
	"fmt"
	"os"

	"github.com/brroMonta/gifting/config"
	"github.com/brroMonta/gifting/internal/app"
	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/db"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/redis"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "giftctl",
	Short: "Operate the gifting service",
	Long: `giftctl - operator tools for the gifting service.

Reads the same environment (and .env file) as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.Initialize(logger.Config{Level: level, Format: "console", EnableColor: true})

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// session holds the connections one command needs.
type session struct {
	services *app.Services
	close    func()
}

// openSession connects to the database and, when enabled, to Redis so cached
// projections are invalidated. Live viewers are not notified from the CLI.
func openSession() (*session, error) {
	database, err := db.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var cache service.ProjectionCache
	var client *redis.Client
	if cfg.Redis.Enabled {
		client, err = redis.New(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, cached projections may be stale", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			cache = client
		}
	}

	return &session{
		services: app.NewServices(database, cfg, cache, nil),
		close: func() {
			if client != nil {
				client.Close()
			}
			db.Close(database)
		},
	}, nil
}
