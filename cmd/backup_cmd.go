package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/arkup/internal/operations"
	"github.com/kebairia/arkup/internal/retention"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up all configured targets",
	Run: func(cmd *cobra.Command, args []string) {
		log := mustLogger()

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		if cfg.Backup.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Backup.Timeout)
			defer cancel()
		}

		secrets, err := secretsFor(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		targets, err := cfg.Resolve(ctx, secrets)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}

		runner := operations.NewRunner(log, cfg.Backup.OutputDirectory,
			operations.WithRetention(retention.Policy{
				KeepLast:   cfg.Retention.KeepLast,
				MaxAgeDays: cfg.Retention.MaxAgeDays,
			}),
			operations.WithWorkers(cfg.Backup.Workers),
		)
		summary := runner.Run(ctx, targets)
		if summary.FailureCount > 0 {
			os.Exit(1)
		}
	},
}
