package cmd

import (
	"context"
	"fmt"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/pkg/goseed"
)

// loadConfig reads the config file, applies the CLI overrides and validates
// the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(GetCLIOverrides())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSession opens a goseed session for the commands. Without connect the
// catalog comes from the config alone.
func openSession(ctx context.Context, cfg *config.Config, log *logger.Logger, connect bool) (*goseed.Session, error) {
	opts := []goseed.Option{goseed.WithLogger(log)}
	if !connect {
		opts = append(opts, goseed.Offline())
	}
	return goseed.Open(ctx, cfg, opts...)
}
