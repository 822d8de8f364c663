package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/arkup/internal/config"
	"github.com/kebairia/arkup/internal/logger"
	"github.com/kebairia/arkup/internal/vault"
)

// configFile is the path to the YAML configuration.
var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "arkup",
		Short: "Back up databases and filesystem paths into self-contained artifacts",
		Long: `arkup dumps SQLite/PostgreSQL/MySQL databases to replayable SQL
scripts, archives files and directory trees into tar artifacts, and prunes
old artifacts per your retention policy.`,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(pruneCmd)
}

// loadConfig parses and validates the configuration file.
func loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := cfg.Load(configFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// secretsFor builds a Vault client when the config references one.
func secretsFor(ctx context.Context, cfg *config.Config) (config.SecretResolver, error) {
	if cfg.Vault.Address == "" && os.Getenv("VAULT_ADDR") == "" {
		return nil, nil
	}
	client, err := vault.NewClient(ctx,
		vault.WithAddress(cfg.Vault.Address),
		vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.SecretID),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func mustLogger() logger.Logger {
	log, err := logger.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: logger init: %v\n", err)
		os.Exit(1)
	}
	return log
}
