package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hududed/bayanlab/internal/canon"
	"github.com/hududed/bayanlab/internal/config"
	"github.com/hududed/bayanlab/internal/dq"
	"github.com/hududed/bayanlab/internal/identity"
	"github.com/hududed/bayanlab/internal/mapper"
	"github.com/hududed/bayanlab/internal/pipeline"
	"github.com/hududed/bayanlab/internal/store"
	"github.com/hududed/bayanlab/pkg/geocode"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "bayanlab.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the wired pipeline collaborators for a command invocation.
type env struct {
	Store        store.Store
	Orchestrator *pipeline.Orchestrator
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	regions, err := config.LoadRegions(cfg.DQ.RegionsFile)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	geocoder, err := geocode.New(cfg.Geocoder)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	resolver := identity.NewResolver(st)
	orch := pipeline.New(pipeline.Config{
		Store:     st,
		Mapper:    mapper.NewRegistry(cfg.Pipeline.DefaultRegion),
		Resolver:  resolver,
		Geocoder:  geocoder,
		Evaluator: dq.NewEvaluator(regions, cfg.DQ.StalenessDays),
		Writer:    canon.NewWriter(st, resolver, cfg.Pipeline.SourcePriority),
		Workers:   cfg.Pipeline.Workers,
		BatchSize: cfg.Pipeline.BatchSize,
	})

	return &env{Store: st, Orchestrator: orch}, nil
}
