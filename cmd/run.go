package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hududed/bayanlab/internal/model"
	"github.com/hududed/bayanlab/internal/pipeline"
)

var (
	runKind  string
	runRunID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a reconciliation run over unprocessed staging records",
	Long:  "Claims unprocessed staging records and pushes each through mapping, identity resolution, geocoding, DQ evaluation, and the canonical writer. Re-running over a processed batch is a no-op.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		kinds, err := pipeline.Kinds(runKind)
		if err != nil {
			return err
		}

		ingestRunID := uuid.New()
		if runRunID != "" {
			ingestRunID, err = uuid.Parse(runRunID)
			if err != nil {
				return eris.Wrapf(err, "parse run id %q", runRunID)
			}
		}

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var runs []*model.IngestRun
		for _, kind := range kinds {
			run, err := e.Orchestrator.Run(ctx, ingestRunID, kind)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	},
}

func init() {
	runCmd.Flags().StringVar(&runKind, "kind", "all", "entity kind to process: events, businesses, or all")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "ingest run id to record (default: new id)")
	rootCmd.AddCommand(runCmd)
}
