// Package canon writes validated candidates into canonical storage: insert
// on first sight of a dedup key, field-level merge on subsequent matches,
// and an append-only provenance trail. Upsert is idempotent: replaying an
// unchanged candidate writes no new rows and no new provenance.
package canon

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hududed/bayanlab/internal/dq"
	"github.com/hududed/bayanlab/internal/identity"
	"github.com/hududed/bayanlab/internal/model"
	"github.com/hududed/bayanlab/internal/store"
)

// insertRetries bounds how often a lost insert race is retried as a merge.
const insertRetries = 2

// lockStripes sizes the fixed lock set serializing per-key writes. Memory
// use stays constant no matter how many distinct keys a run touches.
const lockStripes = 64

// Writer performs canonical upserts.
type Writer struct {
	store    store.Store
	resolver *identity.Resolver
	priority map[model.Source]int

	locks [lockStripes]sync.Mutex
}

// NewWriter creates a writer. priorityOrder lists sources from most to
// least authoritative; unknown sources rank below all listed ones.
func NewWriter(st store.Store, resolver *identity.Resolver, priorityOrder []string) *Writer {
	priority := make(map[model.Source]int, len(priorityOrder))
	for i, s := range priorityOrder {
		// Lower rank = more authoritative.
		priority[model.Source(s)] = i
	}
	return &Writer{
		store:    st,
		resolver: resolver,
		priority: priority,
	}
}

// keyLock returns the stripe mutex serializing writes for one (region,
// dedup key) pair. The same pair always maps to the same stripe; distinct
// pairs may share one, which only costs a little concurrency.
func (w *Writer) keyLock(region, key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(region))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return &w.locks[h.Sum32()%lockStripes]
}

// outranks reports whether source a is at least as authoritative as b.
func (w *Writer) outranks(a, b model.Source) bool {
	ra, ok := w.priority[a]
	if !ok {
		ra = len(w.priority)
	}
	rb, ok := w.priority[b]
	if !ok {
		rb = len(w.priority)
	}
	return ra <= rb
}

// Upsert writes a candidate to canonical storage and returns the canonical
// row id. A lost insert race (another worker created the row for the same
// key first) is absorbed by re-resolving identity and merging.
func (w *Writer) Upsert(ctx context.Context, c *model.Candidate, dqr *dq.Result, id *identity.Identity) (uuid.UUID, error) {
	lock := w.keyLock(c.Region, id.Key)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; ; attempt++ {
		var (
			entityID uuid.UUID
			err      error
		)
		if id.Existing != nil {
			entityID, err = w.merge(ctx, c, dqr, *id.Existing)
		} else {
			entityID, err = w.insert(ctx, c, dqr, id.Key)
		}
		if err == nil {
			return entityID, w.flagDQ(ctx, c.Kind, entityID, dqr)
		}
		if !errors.Is(err, store.ErrDuplicateKey) || attempt >= insertRetries {
			return uuid.Nil, err
		}

		// Lost the insert race: the row exists now. Re-resolve and merge.
		zap.L().Debug("canon: insert conflict, re-resolving identity",
			zap.String("region", c.Region),
			zap.String("dedup_key", id.Key),
		)
		id, err = w.resolver.Resolve(ctx, c)
		if err != nil {
			return uuid.Nil, err
		}
	}
}

func (w *Writer) insert(ctx context.Context, c *model.Candidate, dqr *dq.Result, key string) (uuid.UUID, error) {
	now := time.Now().UTC()

	var entityID uuid.UUID
	switch c.Kind {
	case model.KindBusiness:
		b := businessFromCandidate(c, dqr, key, now)
		if err := w.store.InsertBusiness(ctx, b); err != nil {
			return uuid.Nil, err
		}
		entityID = b.BusinessID
	case model.KindEvent:
		e := eventFromCandidate(c, dqr, key, now)
		if err := w.store.InsertEvent(ctx, e); err != nil {
			return uuid.Nil, err
		}
		entityID = e.EventID
	default:
		return uuid.Nil, eris.Errorf("canon: unknown entity kind %q", c.Kind)
	}

	details, err := json.Marshal(model.CreatedDetails{
		Source:    c.Source,
		SourceRef: c.SourceRef,
		DedupKey:  key,
	})
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "canon: marshal created details")
	}
	if err := w.store.AppendProvenance(ctx, &model.ProvenanceEntry{
		EntityType: c.Kind,
		EntityID:   entityID,
		Action:     model.ActionCreated,
		Details:    details,
	}); err != nil {
		return uuid.Nil, err
	}
	return entityID, nil
}

func (w *Writer) merge(ctx context.Context, c *model.Candidate, dqr *dq.Result, existingID uuid.UUID) (uuid.UUID, error) {
	var changes map[string]model.FieldChange

	switch c.Kind {
	case model.KindBusiness:
		existing, err := w.store.GetBusiness(ctx, existingID)
		if err != nil {
			return uuid.Nil, err
		}
		if existing == nil {
			return uuid.Nil, eris.Errorf("canon: merge target business %s vanished", existingID)
		}
		changes = w.mergeBusiness(existing, c, dqr)
		if len(changes) > 0 {
			existing.UpdatedAt = time.Now().UTC()
			if err := w.store.UpdateBusiness(ctx, existing); err != nil {
				return uuid.Nil, err
			}
		}
	case model.KindEvent:
		existing, err := w.store.GetEvent(ctx, existingID)
		if err != nil {
			return uuid.Nil, err
		}
		if existing == nil {
			return uuid.Nil, eris.Errorf("canon: merge target event %s vanished", existingID)
		}
		changes = w.mergeEvent(existing, c, dqr)
		if len(changes) > 0 {
			existing.UpdatedAt = time.Now().UTC()
			if err := w.store.UpdateEvent(ctx, existing); err != nil {
				return uuid.Nil, err
			}
		}
	default:
		return uuid.Nil, eris.Errorf("canon: unknown entity kind %q", c.Kind)
	}

	// An unchanged replay writes nothing: no row update, no provenance.
	if len(changes) == 0 {
		return existingID, nil
	}

	details, err := json.Marshal(model.MergedDetails{
		Source:    c.Source,
		SourceRef: c.SourceRef,
		Changes:   changes,
	})
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "canon: marshal merged details")
	}
	if err := w.store.AppendProvenance(ctx, &model.ProvenanceEntry{
		EntityType: c.Kind,
		EntityID:   existingID,
		Action:     model.ActionMerged,
		Details:    details,
	}); err != nil {
		return uuid.Nil, err
	}
	return existingID, nil
}

// flagDQ appends a dq_flagged provenance entry for non-ok statuses, unless
// the latest dq_flagged entry already records the identical status and
// issue list (replay suppression).
func (w *Writer) flagDQ(ctx context.Context, kind model.EntityKind, entityID uuid.UUID, dqr *dq.Result) error {
	if dqr == nil || dqr.Status == model.DQOK {
		return nil
	}

	details, err := json.Marshal(model.DQFlaggedDetails{
		Status: dqr.Status,
		Issues: dqr.Issues,
	})
	if err != nil {
		return eris.Wrap(err, "canon: marshal dq details")
	}

	latest, err := w.store.LatestProvenance(ctx, kind, entityID, model.ActionDQFlagged)
	if err != nil {
		return err
	}
	if latest != nil && string(latest.Details) == string(details) {
		return nil
	}

	return w.store.AppendProvenance(ctx, &model.ProvenanceEntry{
		EntityType: kind,
		EntityID:   entityID,
		Action:     model.ActionDQFlagged,
		Details:    details,
	})
}
