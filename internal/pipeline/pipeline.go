// Package pipeline orchestrates one reconciliation run: claim unprocessed
// staging records, push each through map → identity → geocode → dq → write,
// and record per-record and per-run outcomes. One bad record never aborts a
// run; only storage-level failures do.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hududed/bayanlab/internal/canon"
	"github.com/hududed/bayanlab/internal/dq"
	"github.com/hududed/bayanlab/internal/identity"
	"github.com/hududed/bayanlab/internal/mapper"
	"github.com/hududed/bayanlab/internal/model"
	"github.com/hududed/bayanlab/internal/store"
	"github.com/hududed/bayanlab/pkg/geocode"
)

// SystemicError marks a failure that aborts the run, as opposed to
// per-record errors which are recorded and skipped. Storage being
// unreachable is the canonical case.
type SystemicError struct {
	Err error
}

func (e *SystemicError) Error() string { return "systemic: " + e.Err.Error() }
func (e *SystemicError) Unwrap() error { return e.Err }

// IsSystemic reports whether the error chain contains a SystemicError.
func IsSystemic(err error) bool {
	var se *SystemicError
	return eris.As(err, &se)
}

// Orchestrator drives reconciliation runs.
type Orchestrator struct {
	store     store.Store
	mapper    *mapper.Registry
	resolver  *identity.Resolver
	geocoder  geocode.Resolver
	evaluator *dq.Evaluator
	writer    *canon.Writer
	workers   int
	batchSize int
}

// Config wires an Orchestrator's collaborators.
type Config struct {
	Store     store.Store
	Mapper    *mapper.Registry
	Resolver  *identity.Resolver
	Geocoder  geocode.Resolver
	Evaluator *dq.Evaluator
	Writer    *canon.Writer
	Workers   int
	BatchSize int
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Orchestrator{
		store:     cfg.Store,
		mapper:    cfg.Mapper,
		resolver:  cfg.Resolver,
		geocoder:  cfg.Geocoder,
		evaluator: cfg.Evaluator,
		writer:    cfg.Writer,
		workers:   workers,
		batchSize: batchSize,
	}
}

// Run executes one reconciliation pass over all unprocessed staging records
// of the given kind belonging to ingestRunID's staging set. Replaying over
// an already-processed batch is a no-op: only processed=false records are
// claimed. The returned run reflects the final build_metadata row.
func (o *Orchestrator) Run(ctx context.Context, ingestRunID uuid.UUID, kind model.EntityKind) (*model.IngestRun, error) {
	run, err := o.store.CreateRun(ctx, kind, ingestRunID)
	if err != nil {
		return nil, &SystemicError{Err: eris.Wrap(err, "pipeline: create run")}
	}

	log := zap.L().With(
		zap.String("build_id", run.BuildID.String()),
		zap.String("build_type", string(kind)),
	)
	log.Info("pipeline: run started")

	var processed, failed atomic.Int64

	for {
		batch, err := o.store.ClaimBatch(ctx, run.BuildID, ingestRunID, kind, o.batchSize)
		if err != nil {
			return o.abort(ctx, run, &processed, &failed, eris.Wrap(err, "pipeline: claim batch"))
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for i := range batch {
			rec := batch[i]
			g.Go(func() error {
				if err := o.processRecord(gctx, &rec); err != nil {
					// Per-record failure: record it and move on.
					failed.Add(1)
					log.Warn("pipeline: record failed",
						zap.String("staging_id", rec.StagingID.String()),
						zap.String("source", string(rec.Source)),
						zap.Error(err),
					)
					if merr := o.store.MarkProcessed(gctx, rec.StagingID, err.Error()); merr != nil {
						return eris.Wrap(merr, "pipeline: mark failed record")
					}
					return nil
				}
				processed.Add(1)
				if merr := o.store.MarkProcessed(gctx, rec.StagingID, ""); merr != nil {
					return eris.Wrap(merr, "pipeline: mark processed record")
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return o.abort(ctx, run, &processed, &failed, err)
		}
	}

	if err := o.store.CompleteRun(ctx, run.BuildID, model.RunSuccess,
		int(processed.Load()), int(failed.Load()), ""); err != nil {
		return nil, &SystemicError{Err: eris.Wrap(err, "pipeline: complete run")}
	}

	log.Info("pipeline: run finished",
		zap.Int64("records_processed", processed.Load()),
		zap.Int64("records_failed", failed.Load()),
	)
	return o.store.GetRun(ctx, run.BuildID)
}

// abort records a systemic failure on the run and surfaces it.
func (o *Orchestrator) abort(ctx context.Context, run *model.IngestRun, processed, failed *atomic.Int64, cause error) (*model.IngestRun, error) {
	if err := o.store.CompleteRun(ctx, run.BuildID, model.RunFailed,
		int(processed.Load()), int(failed.Load()), cause.Error()); err != nil {
		zap.L().Error("pipeline: record run failure",
			zap.String("build_id", run.BuildID.String()),
			zap.Error(err),
		)
	}
	return nil, &SystemicError{Err: cause}
}

// processRecord runs the stage sequence for one staging record. Returned
// errors are per-record failures; context cancellation is surfaced as-is.
func (o *Orchestrator) processRecord(ctx context.Context, rec *model.RawRecord) error {
	c, err := o.mapper.Map(rec)
	if err != nil {
		return err
	}

	id, err := o.resolver.Resolve(ctx, c)
	if err != nil {
		return err
	}

	if !c.HasCoordinates() {
		result, err := o.geocoder.Resolve(ctx, geocode.AddressInput{
			Street: c.Street,
			City:   c.City,
			State:  c.State,
			Zip:    c.Zip,
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return err
		case err != nil:
			// Exhausted providers still mean the record proceeds without
			// coordinates; the DQ evaluator flags it.
			zap.L().Debug("pipeline: geocoding failed",
				zap.String("staging_id", rec.StagingID.String()),
				zap.Error(err),
			)
		case result.Matched:
			c.Latitude = &result.Latitude
			c.Longitude = &result.Longitude
		}
	}

	dqr := o.evaluator.Evaluate(c)

	if _, err := o.writer.Upsert(ctx, c, dqr, id); err != nil {
		return err
	}
	return nil
}

// Kinds expands a CLI kind selector into the entity kinds to run.
func Kinds(selector string) ([]model.EntityKind, error) {
	switch selector {
	case "all", "":
		return []model.EntityKind{model.KindEvent, model.KindBusiness}, nil
	case "events", string(model.KindEvent):
		return []model.EntityKind{model.KindEvent}, nil
	case "businesses", string(model.KindBusiness):
		return []model.EntityKind{model.KindBusiness}, nil
	}
	return nil, eris.Errorf("unknown kind %q (want events, businesses, or all)", selector)
}
