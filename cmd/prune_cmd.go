package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/arkup/internal/retention"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old artifacts per the retention policy, without backing up",
	Run: func(cmd *cobra.Command, args []string) {
		log := mustLogger()

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		policy := retention.Policy{
			KeepLast:   cfg.Retention.KeepLast,
			MaxAgeDays: cfg.Retention.MaxAgeDays,
		}
		if !policy.Enabled() {
			fmt.Fprintln(os.Stderr, "ERROR: no retention policy configured")
			os.Exit(1)
		}

		res := retention.Prune(cfg.Backup.OutputDirectory, policy, time.Now(), log)
		for _, err := range res.Errors {
			log.Warn("prune error", "error", err.Error())
		}
		log.Info("prune finished", "deleted", res.Deleted)
	},
}
