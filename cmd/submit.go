package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hududed/bayanlab/internal/model"
)

var (
	submitKind   string
	submitSource string
	submitRunID  string
)

// submitLine is one JSON-lines input row: an optional source-local ref plus
// the raw payload handed to the staging store untouched.
type submitLine struct {
	SourceRef string          `json:"source_ref"`
	Payload   json.RawMessage `json:"payload"`
}

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit raw records from a JSON-lines file into staging",
	Long:  "Each input line is {\"source_ref\": ..., \"payload\": {...}}. Payloads are staged as-is; the field mapper absorbs per-source schema differences at run time.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind := model.EntityKind(submitKind)
		if !kind.Valid() {
			return eris.Errorf("unknown entity kind %q (want event or business)", submitKind)
		}
		source := model.Source(submitSource)
		if !source.Valid() {
			return eris.Errorf("unknown source %q", submitSource)
		}

		ingestRunID := uuid.New()
		if submitRunID != "" {
			var err error
			ingestRunID, err = uuid.Parse(submitRunID)
			if err != nil {
				return eris.Wrapf(err, "parse run id %q", submitRunID)
			}
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var submitted int
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var in submitLine
			if err := json.Unmarshal(line, &in); err != nil {
				return eris.Wrapf(err, "parse input line %d", submitted+1)
			}
			if len(in.Payload) == 0 {
				return eris.Errorf("input line %d has no payload", submitted+1)
			}

			if _, err := st.SubmitRaw(ctx, &model.RawRecord{
				IngestRunID: ingestRunID,
				EntityKind:  kind,
				Source:      source,
				SourceRef:   in.SourceRef,
				RawPayload:  in.Payload,
			}); err != nil {
				return err
			}
			submitted++
		}
		if err := scanner.Err(); err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		fmt.Fprintf(os.Stdout, "submitted %d records (ingest_run_id=%s)\n", submitted, ingestRunID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitKind, "kind", "", "entity kind: event or business (required)")
	submitCmd.Flags().StringVar(&submitSource, "source", "", "source tag: ics, csv, osm, certifier, or claim (required)")
	submitCmd.Flags().StringVar(&submitRunID, "run-id", "", "ingest run id to tag records with (default: new id)")
	submitCmd.MarkFlagRequired("kind")   //nolint:errcheck
	submitCmd.MarkFlagRequired("source") //nolint:errcheck
	rootCmd.AddCommand(submitCmd)
}
