package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hududed/bayanlab/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func submitTestRecord(t *testing.T, s Store, runID uuid.UUID, kind model.EntityKind, sourceRef string) uuid.UUID {
	t.Helper()
	id, err := s.SubmitRaw(context.Background(), &model.RawRecord{
		IngestRunID: runID,
		EntityKind:  kind,
		Source:      model.SourceCSV,
		SourceRef:   sourceRef,
		RawPayload:  json.RawMessage(`{"name": "test"}`),
	})
	require.NoError(t, err)
	return id
}

func testBusiness(region, dedupKey string) *model.CanonicalBusiness {
	now := time.Now().UTC()
	return &model.CanonicalBusiness{
		BusinessID: uuid.New(),
		DedupKey:   dedupKey,
		Region:     region,
		Name:       "Al-Noor Market",
		Category:   model.CategoryGrocery,
		City:       "Denver",
		State:      "CO",
		Source:     model.SourceCSV,
		SourceRef:  "row-17",
		DQStatus:   model.DQOK,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSubmitRaw(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := &model.RawRecord{
		IngestRunID: uuid.New(),
		EntityKind:  model.KindBusiness,
		Source:      model.SourceCSV,
		RawPayload:  json.RawMessage(`{"name": "x"}`),
	}
	id, err := s.SubmitRaw(ctx, rec)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.False(t, rec.IngestedAt.IsZero(), "submit assigns ingested_at")

	batch, err := s.ClaimBatch(ctx, uuid.New(), rec.IngestRunID, model.KindBusiness, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, id, batch[0].StagingID)
	assert.Equal(t, rec.IngestRunID, batch[0].IngestRunID)
	assert.JSONEq(t, `{"name": "x"}`, string(batch[0].RawPayload))
	assert.False(t, batch[0].Processed)
}

func TestClaimBatch_OrderAndLimit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runID := uuid.New()
	first := submitTestRecord(t, s, runID, model.KindBusiness, "a")
	time.Sleep(2 * time.Millisecond)
	second := submitTestRecord(t, s, runID, model.KindBusiness, "b")
	time.Sleep(2 * time.Millisecond)
	submitTestRecord(t, s, runID, model.KindBusiness, "c")

	batch, err := s.ClaimBatch(ctx, uuid.New(), runID, model.KindBusiness, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, first, batch[0].StagingID)
	assert.Equal(t, second, batch[1].StagingID)
}

func TestClaimBatch_ExclusiveBetweenTokens(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runID := uuid.New()
	submitTestRecord(t, s, runID, model.KindBusiness, "a")

	tokenA := uuid.New()
	batch, err := s.ClaimBatch(ctx, tokenA, runID, model.KindBusiness, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// Another run must not see claimed records.
	batch, err = s.ClaimBatch(ctx, uuid.New(), runID, model.KindBusiness, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	// The claimholder can reclaim its own unprocessed records after a crash.
	batch, err = s.ClaimBatch(ctx, tokenA, runID, model.KindBusiness, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestClaimBatch_ScopedToKind(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runID := uuid.New()
	submitTestRecord(t, s, runID, model.KindBusiness, "a")
	eventID := submitTestRecord(t, s, runID, model.KindEvent, "b")

	batch, err := s.ClaimBatch(ctx, uuid.New(), runID, model.KindEvent, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, eventID, batch[0].StagingID)
}

func TestClaimBatch_ScopedToIngestRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runA := uuid.New()
	runB := uuid.New()
	recordA := submitTestRecord(t, s, runA, model.KindBusiness, "a")
	submitTestRecord(t, s, runB, model.KindBusiness, "b")

	// Claiming for run A must not touch run B's staging set.
	batch, err := s.ClaimBatch(ctx, uuid.New(), runA, model.KindBusiness, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, recordA, batch[0].StagingID)

	// Run B's record is still there, unclaimed, for its own run.
	batch, err = s.ClaimBatch(ctx, uuid.New(), runB, model.KindBusiness, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, runB, batch[0].IngestRunID)
}

func TestMarkProcessed(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runID := uuid.New()
	id := submitTestRecord(t, s, runID, model.KindBusiness, "a")
	token := uuid.New()
	_, err := s.ClaimBatch(ctx, token, runID, model.KindBusiness, 10)
	require.NoError(t, err)

	require.NoError(t, s.MarkProcessed(ctx, id, "bad payload"))

	// Processed records are never claimed again, even by the same token.
	batch, err := s.ClaimBatch(ctx, token, runID, model.KindBusiness, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMarkProcessed_UnknownRecord(t *testing.T) {
	s := newTestSQLite(t)
	err := s.MarkProcessed(context.Background(), uuid.New(), "")
	require.Error(t, err)
}

func TestReleaseStaleClaims(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runID := uuid.New()
	submitTestRecord(t, s, runID, model.KindBusiness, "a")
	_, err := s.ClaimBatch(ctx, uuid.New(), runID, model.KindBusiness, 10)
	require.NoError(t, err)

	// A fresh claim stays put.
	n, err := s.ReleaseStaleClaims(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	time.Sleep(20 * time.Millisecond)
	n, err = s.ReleaseStaleClaims(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Released records are claimable by a new token.
	batch, err := s.ClaimBatch(ctx, uuid.New(), runID, model.KindBusiness, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestBusinessRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b := testBusiness("CO", "al-noor market|denver|co")
	lat, lon := 39.74, -104.98
	b.Latitude, b.Longitude = &lat, &lon
	b.Placekey = "227-223@5x4-4b4"
	require.NoError(t, s.InsertBusiness(ctx, b))

	got, err := s.GetBusiness(ctx, b.BusinessID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.Name, got.Name)
	assert.Equal(t, model.CategoryGrocery, got.Category)
	assert.Equal(t, model.SourceCSV, got.Source)
	assert.Equal(t, model.DQOK, got.DQStatus)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 39.74, *got.Latitude, 1e-9)

	byKey, err := s.FindBusinessByKey(ctx, "CO", b.DedupKey)
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, b.BusinessID, byKey.BusinessID)

	byPlacekey, err := s.FindBusinessByPlacekey(ctx, "CO", b.Placekey)
	require.NoError(t, err)
	require.NotNil(t, byPlacekey)
	assert.Equal(t, b.BusinessID, byPlacekey.BusinessID)
}

func TestFindBusiness_NoMatch(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b, err := s.FindBusinessByKey(ctx, "CO", "nope")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = s.GetBusiness(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestInsertBusiness_DuplicateKey(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBusiness(ctx, testBusiness("CO", "k")))

	err := s.InsertBusiness(ctx, testBusiness("CO", "k"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Same key in another region is a different record.
	require.NoError(t, s.InsertBusiness(ctx, testBusiness("AZ", "k")))
}

func TestInsertBusiness_DuplicatePlacekey(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a := testBusiness("CO", "k1")
	a.Placekey = "227-223@abc"
	require.NoError(t, s.InsertBusiness(ctx, a))

	b := testBusiness("CO", "k2")
	b.Placekey = "227-223@abc"
	err := s.InsertBusiness(ctx, b)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Empty placekeys never collide.
	require.NoError(t, s.InsertBusiness(ctx, testBusiness("CO", "k3")))
	require.NoError(t, s.InsertBusiness(ctx, testBusiness("CO", "k4")))
}

func TestUpdateBusiness(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b := testBusiness("CO", "k")
	require.NoError(t, s.InsertBusiness(ctx, b))

	b.Phone = "(303) 555-0142"
	b.HalalCertified = true
	require.NoError(t, s.UpdateBusiness(ctx, b))

	got, err := s.GetBusiness(ctx, b.BusinessID)
	require.NoError(t, err)
	assert.Equal(t, "(303) 555-0142", got.Phone)
	assert.True(t, got.HalalCertified)

	missing := testBusiness("CO", "other")
	require.Error(t, s.UpdateBusiness(ctx, missing))
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC()
	e := &model.CanonicalEvent{
		EventID:   uuid.New(),
		DedupKey:  "eid carnival|denver|co",
		Region:    "CO",
		Title:     "Eid Carnival",
		StartTime: time.Date(2026, 7, 20, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 7, 20, 18, 0, 0, 0, time.UTC),
		City:      "Denver",
		State:     "CO",
		Source:    model.SourceICS,
		SourceRef: "uid-9",
		DQStatus:  model.DQOK,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.InsertEvent(ctx, e))

	got, err := s.FindEventByKey(ctx, "CO", e.DedupKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.EventID, got.EventID)
	assert.Equal(t, "Eid Carnival", got.Title)
	assert.True(t, got.StartTime.Equal(e.StartTime))
	assert.True(t, got.EndTime.Equal(e.EndTime))

	err = s.InsertEvent(ctx, &model.CanonicalEvent{
		EventID:   uuid.New(),
		DedupKey:  e.DedupKey,
		Region:    "CO",
		Title:     "Eid Carnival",
		Source:    model.SourceICS,
		DQStatus:  model.DQOK,
		CreatedAt: now,
		UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestProvenance(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	entityID := uuid.New()

	add := func(action model.ProvenanceAction, details string) {
		require.NoError(t, s.AppendProvenance(ctx, &model.ProvenanceEntry{
			EntityType: model.KindBusiness,
			EntityID:   entityID,
			Action:     action,
			Details:    json.RawMessage(details),
		}))
		time.Sleep(2 * time.Millisecond)
	}

	add(model.ActionCreated, `{"dedup_key": "k"}`)
	add(model.ActionDQFlagged, `{"status": "warning"}`)
	add(model.ActionMerged, `{"changes": {}}`)
	add(model.ActionDQFlagged, `{"status": "ok"}`)

	entries, err := s.ListProvenance(ctx, model.KindBusiness, entityID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, model.ActionCreated, entries[0].Action)
	assert.Equal(t, model.ActionDQFlagged, entries[3].Action)

	latest, err := s.LatestProvenance(ctx, model.KindBusiness, entityID, model.ActionDQFlagged)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.JSONEq(t, `{"status": "ok"}`, string(latest.Details))

	latest, err = s.LatestProvenance(ctx, model.KindBusiness, entityID, model.ActionUpdated)
	require.NoError(t, err)
	assert.Nil(t, latest)

	entries, err = s.ListProvenance(ctx, model.KindEvent, entityID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ingestRunID := uuid.New()
	run, err := s.CreateRun(ctx, model.KindBusiness, ingestRunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, run.Status)

	got, err := s.GetRun(ctx, run.BuildID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ingestRunID, got.IngestRunID)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.CompleteRun(ctx, run.BuildID, model.RunSuccess, 10, 2, ""))

	got, err = s.GetRun(ctx, run.BuildID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, got.Status)
	assert.Equal(t, 10, got.RecordsProcessed)
	assert.Equal(t, 2, got.RecordsFailed)
	require.NotNil(t, got.CompletedAt)

	// A completed run is immutable.
	err = s.CompleteRun(ctx, run.BuildID, model.RunFailed, 0, 0, "late failure")
	require.Error(t, err)

	missing, err := s.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, model.KindBusiness, uuid.New())
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, a.BuildID, model.RunSuccess, 1, 0, ""))

	b, err := s.CreateRun(ctx, model.KindEvent, uuid.New())
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, b.BuildID, model.RunFailed, 0, 0, "boom"))

	_, err = s.CreateRun(ctx, model.KindEvent, uuid.New())
	require.NoError(t, err)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	events, err := s.ListRuns(ctx, RunFilter{BuildType: model.KindEvent})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.BuildID, failed[0].BuildID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPing(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}
