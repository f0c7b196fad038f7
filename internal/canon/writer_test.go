package canon

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hududed/bayanlab/internal/dq"
	"github.com/hududed/bayanlab/internal/identity"
	"github.com/hududed/bayanlab/internal/model"
	"github.com/hududed/bayanlab/internal/store"
)

var testPriority = []string{"claim", "certifier", "csv", "ics", "osm"}

func newTestWriter(t *testing.T) (*Writer, store.Store, *identity.Resolver) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	resolver := identity.NewResolver(s)
	return NewWriter(s, resolver, testPriority), s, resolver
}

func ptr(v float64) *float64 { return &v }

func marketCandidate(source model.Source) *model.Candidate {
	return &model.Candidate{
		Kind:      model.KindBusiness,
		Source:    source,
		SourceRef: "ref-" + string(source),
		Region:    "CO",
		Street:    "2045 S Havana St",
		City:      "Denver",
		State:     "CO",
		Latitude:  ptr(39.74),
		Longitude: ptr(-104.98),
		Business: &model.BusinessFields{
			Name:     "Al-Noor Market",
			Category: model.CategoryGrocery,
		},
	}
}

var okResult = &dq.Result{Status: model.DQOK}

func TestUpsert_InsertCreatesRowAndProvenance(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	c := marketCandidate(model.SourceCSV)
	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	require.Nil(t, id.Existing)

	entityID, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)

	b, err := s.GetBusiness(ctx, entityID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "Al-Noor Market", b.Name)
	assert.Equal(t, "al-noor market|denver|co", b.DedupKey)
	assert.Equal(t, model.DQOK, b.DQStatus)

	entries, err := s.ListProvenance(ctx, model.KindBusiness, entityID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionCreated, entries[0].Action)

	var details model.CreatedDetails
	require.NoError(t, json.Unmarshal(entries[0].Details, &details))
	assert.Equal(t, model.SourceCSV, details.Source)
	assert.Equal(t, "al-noor market|denver|co", details.DedupKey)
}

func TestUpsert_IdempotentReplay(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	c := marketCandidate(model.SourceCSV)
	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	first, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)

	// Same candidate again, now resolving to the existing row.
	id, err = resolver.Resolve(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, id.Existing)
	second, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := s.ListProvenance(ctx, model.KindBusiness, first)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "replay must not add provenance")
}

func TestUpsert_MergeFillsEmptyFields(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	c := marketCandidate(model.SourceCSV)
	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	entityID, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)

	// Second sighting from another source adds a phone number.
	c2 := marketCandidate(model.SourceOSM)
	c2.Business.Phone = "(303) 555-0142"
	id, err = resolver.Resolve(ctx, c2)
	require.NoError(t, err)
	require.NotNil(t, id.Existing)

	merged, err := w.Upsert(ctx, c2, okResult, id)
	require.NoError(t, err)
	assert.Equal(t, entityID, merged)

	b, err := s.GetBusiness(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, "(303) 555-0142", b.Phone)

	entries, err := s.ListProvenance(ctx, model.KindBusiness, entityID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionMerged, entries[1].Action)

	var details model.MergedDetails
	require.NoError(t, json.Unmarshal(entries[1].Details, &details))
	assert.Equal(t, model.SourceOSM, details.Source)
	assert.Contains(t, details.Changes, "phone")
}

func TestUpsert_MergeRespectsSourcePriority(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	// Owner claim sets the website.
	c := marketCandidate(model.SourceClaim)
	c.Business.Website = "https://alnoormarket.com"
	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	entityID, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)

	// A scraped import must not overwrite the owner-attested website.
	c2 := marketCandidate(model.SourceOSM)
	c2.Business.Website = "https://facebook.com/alnoor"
	id, err = resolver.Resolve(ctx, c2)
	require.NoError(t, err)
	_, err = w.Upsert(ctx, c2, okResult, id)
	require.NoError(t, err)

	b, err := s.GetBusiness(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, "https://alnoormarket.com", b.Website)

	// But a claim overwrites a scraped value.
	w2, s2, resolver2 := newTestWriter(t)
	c3 := marketCandidate(model.SourceOSM)
	c3.Business.Website = "https://facebook.com/alnoor"
	id, err = resolver2.Resolve(ctx, c3)
	require.NoError(t, err)
	entityID2, err := w2.Upsert(ctx, c3, okResult, id)
	require.NoError(t, err)

	c4 := marketCandidate(model.SourceClaim)
	c4.Business.Website = "https://alnoormarket.com"
	id, err = resolver2.Resolve(ctx, c4)
	require.NoError(t, err)
	_, err = w2.Upsert(ctx, c4, okResult, id)
	require.NoError(t, err)

	b2, err := s2.GetBusiness(ctx, entityID2)
	require.NoError(t, err)
	assert.Equal(t, "https://alnoormarket.com", b2.Website)
	assert.Equal(t, model.SourceClaim, b2.Source)
}

func TestUpsert_FlagsNonOKStatus(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	c := marketCandidate(model.SourceCSV)
	c.Latitude = nil
	c.Longitude = nil
	warn := &dq.Result{Status: model.DQWarning, Issues: []string{"missing coordinates"}}

	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	entityID, err := w.Upsert(ctx, c, warn, id)
	require.NoError(t, err)

	entries, err := s.ListProvenance(ctx, model.KindBusiness, entityID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionDQFlagged, entries[1].Action)

	var details model.DQFlaggedDetails
	require.NoError(t, json.Unmarshal(entries[1].Details, &details))
	assert.Equal(t, model.DQWarning, details.Status)
	assert.Equal(t, []string{"missing coordinates"}, details.Issues)

	// Replaying the same flagged candidate must not duplicate the entry.
	id, err = resolver.Resolve(ctx, c)
	require.NoError(t, err)
	_, err = w.Upsert(ctx, c, warn, id)
	require.NoError(t, err)

	entries, err = s.ListProvenance(ctx, model.KindBusiness, entityID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUpsert_InsertConflictFallsBackToMerge(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	// Row exists already.
	c := marketCandidate(model.SourceCSV)
	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	entityID, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)

	// A second worker raced: its identity snapshot predates the insert, so
	// it attempts a blind insert, hits the unique constraint, and must
	// re-resolve into a merge.
	c2 := marketCandidate(model.SourceOSM)
	c2.Business.Phone = "(303) 555-0142"
	stale := &identity.Identity{Key: id.Key}

	merged, err := w.Upsert(ctx, c2, okResult, stale)
	require.NoError(t, err)
	assert.Equal(t, entityID, merged)

	b, err := s.GetBusiness(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, "(303) 555-0142", b.Phone)
}

func TestUpsert_PlacekeyUniqueness(t *testing.T) {
	w, s, resolver := newTestWriter(t)
	ctx := context.Background()

	c := marketCandidate(model.SourceCSV)
	c.Business.Placekey = "227-223@5x4-4b4"
	id, err := resolver.Resolve(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "227-223@5x4-4b4", id.Key)

	entityID, err := w.Upsert(ctx, c, okResult, id)
	require.NoError(t, err)

	// Same placekey, different name spelling: still the same row.
	c2 := marketCandidate(model.SourceOSM)
	c2.Business.Name = "Al Noor Mkt"
	c2.Business.Placekey = "227-223@5x4-4b4"
	id, err = resolver.Resolve(ctx, c2)
	require.NoError(t, err)
	require.NotNil(t, id.Existing)
	assert.Equal(t, entityID, *id.Existing)

	merged, err := w.Upsert(ctx, c2, okResult, id)
	require.NoError(t, err)
	assert.Equal(t, entityID, merged)

	b, err := s.GetBusiness(ctx, entityID)
	require.NoError(t, err)
	// csv outranks osm, so the original name stays.
	assert.Equal(t, "Al-Noor Market", b.Name)
}

func TestKeyLock_StableAndBounded(t *testing.T) {
	w, _, _ := newTestWriter(t)

	// The same (region, key) pair always lands on the same mutex.
	assert.Same(t, w.keyLock("CO", "al-noor market|denver|co"), w.keyLock("CO", "al-noor market|denver|co"))

	// Distinct mutexes stay capped at the stripe count no matter how many
	// keys a run touches.
	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10_000; i++ {
		seen[w.keyLock("CO", fmt.Sprintf("key-%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), lockStripes)
}
