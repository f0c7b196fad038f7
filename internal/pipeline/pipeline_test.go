package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hududed/bayanlab/internal/canon"
	"github.com/hududed/bayanlab/internal/config"
	"github.com/hududed/bayanlab/internal/dq"
	"github.com/hududed/bayanlab/internal/identity"
	"github.com/hududed/bayanlab/internal/mapper"
	"github.com/hududed/bayanlab/internal/model"
	"github.com/hududed/bayanlab/internal/store"
	"github.com/hududed/bayanlab/pkg/geocode"
)

const testRegionsYAML = `
regions:
  CO:
    name: Colorado Front Range
    timezone: America/Denver
    bbox:
      west: -105.40
      south: 39.30
      east: -104.50
      north: 40.20
`

// stubGeocoder is a canned Resolver for pipeline tests.
type stubGeocoder struct {
	result *geocode.Result
	err    error
	calls  atomic.Int64
}

func (s *stubGeocoder) Resolve(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

var denverHit = &geocode.Result{Latitude: 39.74, Longitude: -104.98, Source: "nominatim", Matched: true}

// testClock pins evaluation to a fixed date so staleness checks are stable.
var testClock = func() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

type testEnv struct {
	store        store.Store
	orchestrator *Orchestrator
	geocoder     *stubGeocoder
}

func newTestEnv(t *testing.T, geocoder *stubGeocoder) *testEnv {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	regions, err := config.ParseRegions([]byte(testRegionsYAML))
	require.NoError(t, err)

	resolver := identity.NewResolver(s)
	orch := New(Config{
		Store:     s,
		Mapper:    mapper.NewRegistry("CO"),
		Resolver:  resolver,
		Geocoder:  geocoder,
		Evaluator: dq.NewEvaluator(regions, 30, dq.WithClock(testClock)),
		Writer:    canon.NewWriter(s, resolver, []string{"claim", "certifier", "csv", "ics", "osm"}),
		Workers:   2,
		BatchSize: 10,
	})
	return &testEnv{store: s, orchestrator: orch, geocoder: geocoder}
}

func (e *testEnv) submit(t *testing.T, runID uuid.UUID, kind model.EntityKind, source model.Source, sourceRef string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	_, err = e.store.SubmitRaw(context.Background(), &model.RawRecord{
		IngestRunID: runID,
		EntityKind:  kind,
		Source:      source,
		SourceRef:   sourceRef,
		RawPayload:  raw,
	})
	require.NoError(t, err)
}

func marketPayload() map[string]any {
	return map[string]any{
		"name":           "Al-Noor Market",
		"category":       "grocery",
		"address_street": "2045 S Havana St",
		"address_city":   "denver",
		"address_state":  "Colorado",
		"region":         "CO",
		"source_ref":     "row-17",
	}
}

func TestRun_BusinessWithoutCoordinatesGetsGeocoded(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()
	runID := uuid.New()

	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())

	run, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, 1, run.RecordsProcessed)
	assert.Equal(t, 0, run.RecordsFailed)
	require.NotNil(t, run.CompletedAt)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "Al-Noor Market", b.Name)
	assert.Equal(t, "Denver", b.City)
	assert.Equal(t, "CO", b.State)
	require.NotNil(t, b.Latitude)
	assert.InDelta(t, 39.74, *b.Latitude, 1e-9)
	assert.Equal(t, model.DQOK, b.DQStatus)
	assert.Equal(t, int64(1), env.geocoder.calls.Load())

	entries, err := env.store.ListProvenance(ctx, model.KindBusiness, b.BusinessID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionCreated, entries[0].Action)
}

func TestRun_ReplayIsIdempotent(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()
	runID := uuid.New()

	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())

	first, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RecordsProcessed)

	// Everything is processed; a second run claims nothing.
	second, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, second.Status)
	assert.Equal(t, 0, second.RecordsProcessed)
	assert.Equal(t, 0, second.RecordsFailed)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	require.NotNil(t, b)
	entries, err := env.store.ListProvenance(ctx, model.KindBusiness, b.BusinessID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_SecondSourceMergesIntoExistingRow(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()

	csvRun := uuid.New()
	env.submit(t, csvRun, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())
	_, err := env.orchestrator.Run(ctx, csvRun, model.KindBusiness)
	require.NoError(t, err)

	// A later OSM ingest sees the same market and adds a phone number.
	osmRun := uuid.New()
	env.submit(t, osmRun, model.KindBusiness, model.SourceOSM, "node/42", map[string]any{
		"type": "node",
		"id":   42,
		"lat":  39.74,
		"lon":  -104.98,
		"tags": map[string]string{
			"name":       "Al-Noor Market",
			"shop":       "supermarket",
			"addr:city":  "Denver",
			"addr:state": "CO",
			"phone":      "(303) 555-0142",
		},
		"region": "CO",
	})
	run, err := env.orchestrator.Run(ctx, osmRun, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsProcessed)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "(303) 555-0142", b.Phone)

	entries, err := env.store.ListProvenance(ctx, model.KindBusiness, b.BusinessID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionMerged, entries[1].Action)
}

func TestRun_ScopedToIngestRun(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()

	runA := uuid.New()
	runB := uuid.New()
	env.submit(t, runA, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())

	// A run for a different ingest batch must leave run A's records alone.
	run, err := env.orchestrator.Run(ctx, runB, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, 0, run.RecordsProcessed)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	assert.Nil(t, b)

	// The record is still claimable by its own ingest run.
	run, err = env.orchestrator.Run(ctx, runA, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsProcessed)

	b, err = env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestRun_MalformedRecordDoesNotAbortRun(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()
	runID := uuid.New()

	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())
	_, err := env.store.SubmitRaw(ctx, &model.RawRecord{
		IngestRunID: runID,
		EntityKind:  model.KindBusiness,
		Source:      model.SourceCSV,
		SourceRef:   "row-18",
		RawPayload:  json.RawMessage(`{"name": `),
	})
	require.NoError(t, err)

	run, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, 1, run.RecordsProcessed)
	assert.Equal(t, 1, run.RecordsFailed)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	assert.NotNil(t, b, "good record still lands")
}

func TestRun_StaleEventWrittenWithWarning(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()
	runID := uuid.New()

	// 45 days before the pinned clock: past the 30-day staleness window.
	env.submit(t, runID, model.KindEvent, model.SourceICS, "uid-9", map[string]any{
		"uid":     "uid-9",
		"summary": "Eid Carnival",
		"dtstart": "2026-06-17T10:00:00Z",
		"dtend":   "2026-06-17T18:00:00Z",
		"location": map[string]any{
			"venue_name": "Central Park",
			"city":       "Denver",
			"state":      "CO",
		},
		"region": "CO",
	})

	run, err := env.orchestrator.Run(ctx, runID, model.KindEvent)
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsProcessed)
	assert.Equal(t, 0, run.RecordsFailed)

	ev, err := env.store.FindEventByKey(ctx, "CO", "eid carnival|denver|co")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, model.DQWarning, ev.DQStatus)

	entries, err := env.store.ListProvenance(ctx, model.KindEvent, ev.EventID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionDQFlagged, entries[1].Action)

	var details model.DQFlaggedDetails
	require.NoError(t, json.Unmarshal(entries[1].Details, &details))
	assert.Contains(t, details.Issues, "event is old")
}

func TestRun_GeocoderFailureProceedsWithoutCoordinates(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{err: assert.AnError})
	ctx := context.Background()
	runID := uuid.New()

	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())

	run, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsProcessed)
	assert.Equal(t, 0, run.RecordsFailed)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Nil(t, b.Latitude)
	assert.Equal(t, model.DQWarning, b.DQStatus)
}

func TestRun_UnmatchedGeocodeFlagsMissingCoordinates(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: &geocode.Result{Matched: false, Source: "chain"}})
	ctx := context.Background()
	runID := uuid.New()

	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())

	_, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Nil(t, b.Latitude)
	assert.Equal(t, model.DQWarning, b.DQStatus)
}

func TestRun_RecordsWithCoordinatesSkipGeocoding(t *testing.T) {
	geocoder := &stubGeocoder{result: denverHit}
	env := newTestEnv(t, geocoder)
	ctx := context.Background()
	runID := uuid.New()

	payload := marketPayload()
	payload["latitude"] = 39.68
	payload["longitude"] = -104.87
	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", payload)

	_, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, int64(0), geocoder.calls.Load())

	b, err := env.store.FindBusinessByKey(ctx, "CO", "al-noor market|denver|co")
	require.NoError(t, err)
	require.NotNil(t, b)
	require.NotNil(t, b.Latitude)
	assert.InDelta(t, 39.68, *b.Latitude, 1e-9)
}

func TestRun_KindFilteringLeavesOtherKindsUnclaimed(t *testing.T) {
	env := newTestEnv(t, &stubGeocoder{result: denverHit})
	ctx := context.Background()
	runID := uuid.New()

	env.submit(t, runID, model.KindBusiness, model.SourceCSV, "row-17", marketPayload())
	env.submit(t, runID, model.KindEvent, model.SourceCSV, "ev-1", map[string]any{
		"title":        "Friday Bazaar",
		"start_time":   "2026-07-25T17:00:00Z",
		"end_time":     "2026-07-25T21:00:00Z",
		"address_city": "Denver",
		"source_ref":   "ev-1",
		"region":       "CO",
	})

	run, err := env.orchestrator.Run(ctx, runID, model.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsProcessed)

	// The event record stays unprocessed until an event run picks it up.
	ev, err := env.store.FindEventByKey(ctx, "CO", "friday bazaar|denver|co")
	require.NoError(t, err)
	assert.Nil(t, ev)

	evRun, err := env.orchestrator.Run(ctx, runID, model.KindEvent)
	require.NoError(t, err)
	assert.Equal(t, 1, evRun.RecordsProcessed)

	ev, err = env.store.FindEventByKey(ctx, "CO", "friday bazaar|denver|co")
	require.NoError(t, err)
	assert.NotNil(t, ev)
}

func TestKinds(t *testing.T) {
	tests := []struct {
		selector string
		want     []model.EntityKind
		wantErr  bool
	}{
		{"all", []model.EntityKind{model.KindEvent, model.KindBusiness}, false},
		{"", []model.EntityKind{model.KindEvent, model.KindBusiness}, false},
		{"events", []model.EntityKind{model.KindEvent}, false},
		{"event", []model.EntityKind{model.KindEvent}, false},
		{"businesses", []model.EntityKind{model.KindBusiness}, false},
		{"business", []model.EntityKind{model.KindBusiness}, false},
		{"venues", nil, true},
	}
	for _, tt := range tests {
		t.Run("selector "+tt.selector, func(t *testing.T) {
			got, err := Kinds(tt.selector)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSystemic(t *testing.T) {
	assert.True(t, IsSystemic(&SystemicError{Err: assert.AnError}))
	assert.False(t, IsSystemic(assert.AnError))
	assert.False(t, IsSystemic(nil))
}
