package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var migrateReleaseClaims time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "migrations applied")

		if migrateReleaseClaims > 0 {
			n, err := st.ReleaseStaleClaims(ctx, migrateReleaseClaims)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "released %d stale claims\n", n)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().DurationVar(&migrateReleaseClaims, "release-claims-older-than", 0,
		"also release stale staging claims older than this duration (e.g. 1h)")
	rootCmd.AddCommand(migrateCmd)
}
