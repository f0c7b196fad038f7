package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hududed/bayanlab/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bayanlab",
	Short: "Staging-to-canonical reconciliation pipeline",
	Long:  "Reconciles multi-source event and business records into a clean, deduplicated, geocoded canonical dataset with full provenance.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
