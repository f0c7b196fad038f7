package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hududed/bayanlab/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// The claim transaction assumes a single writer.
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS staging_records (
	staging_id    TEXT PRIMARY KEY,
	ingest_run_id TEXT NOT NULL,
	entity_kind   TEXT NOT NULL,
	source        TEXT NOT NULL,
	source_ref    TEXT NOT NULL DEFAULT '',
	raw_payload   TEXT NOT NULL,
	ingested_at   DATETIME NOT NULL,
	processed     INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	claimed_by    TEXT,
	claimed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_staging_unprocessed ON staging_records(entity_kind, ingested_at);
CREATE INDEX IF NOT EXISTS idx_staging_run ON staging_records(ingest_run_id);

CREATE TABLE IF NOT EXISTS business_canonical (
	business_id     TEXT PRIMARY KEY,
	dedup_key       TEXT NOT NULL,
	region          TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT 'other',
	website         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	muslim_owned    INTEGER NOT NULL DEFAULT 0,
	halal_certified INTEGER NOT NULL DEFAULT 0,
	certifier_name  TEXT NOT NULL DEFAULT '',
	certifier_ref   TEXT NOT NULL DEFAULT '',
	placekey        TEXT NOT NULL DEFAULT '',
	street          TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	zip             TEXT NOT NULL DEFAULT '',
	latitude        REAL,
	longitude       REAL,
	source          TEXT NOT NULL,
	source_ref      TEXT NOT NULL DEFAULT '',
	dq_status       TEXT NOT NULL DEFAULT 'ok',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (region, dedup_key)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_business_placekey ON business_canonical(region, placekey) WHERE placekey <> '';

CREATE TABLE IF NOT EXISTS event_canonical (
	event_id          TEXT PRIMARY KEY,
	dedup_key         TEXT NOT NULL,
	region            TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	start_time        DATETIME,
	end_time          DATETIME,
	all_day           INTEGER NOT NULL DEFAULT 0,
	venue_name        TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	organizer_name    TEXT NOT NULL DEFAULT '',
	organizer_contact TEXT NOT NULL DEFAULT '',
	street            TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	zip               TEXT NOT NULL DEFAULT '',
	latitude          REAL,
	longitude         REAL,
	source            TEXT NOT NULL,
	source_ref        TEXT NOT NULL DEFAULT '',
	dq_status         TEXT NOT NULL DEFAULT 'ok',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	UNIQUE (region, dedup_key)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	prov_id     TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	details     TEXT,
	ts          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provenance_entity ON provenance_log(entity_type, entity_id, ts);

CREATE TABLE IF NOT EXISTS build_metadata (
	build_id          TEXT PRIMARY KEY,
	build_type        TEXT NOT NULL,
	ingest_run_id     TEXT NOT NULL,
	started_at        DATETIME NOT NULL,
	completed_at      DATETIME,
	status            TEXT NOT NULL DEFAULT 'running',
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_failed    INTEGER NOT NULL DEFAULT 0,
	error_log         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_build_metadata_status ON build_metadata(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteUniqueViolation reports whether err is a UNIQUE constraint failure.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s", entity)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %v", entity, id)
	}
	return nil
}

// Staging

func (s *SQLiteStore) SubmitRaw(ctx context.Context, rec *model.RawRecord) (uuid.UUID, error) {
	if rec.StagingID == uuid.Nil {
		rec.StagingID = uuid.New()
	}
	if rec.IngestedAt.IsZero() {
		rec.IngestedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staging_records (staging_id, ingest_run_id, entity_kind, source, source_ref, raw_payload, ingested_at, processed, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, '')`,
		rec.StagingID.String(), rec.IngestRunID.String(), string(rec.EntityKind), string(rec.Source),
		rec.SourceRef, string(rec.RawPayload), rec.IngestedAt,
	)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "sqlite: submit raw record")
	}
	return rec.StagingID, nil
}

func (s *SQLiteStore) ClaimBatch(ctx context.Context, claim, ingestRunID uuid.UUID, kind model.EntityKind, limit int) ([]model.RawRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim batch begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE staging_records
		 SET claimed_by = ?, claimed_at = ?
		 WHERE staging_id IN (
			SELECT staging_id FROM staging_records
			WHERE processed = 0
			  AND ingest_run_id = ?
			  AND entity_kind = ?
			  AND (claimed_by IS NULL OR claimed_by = ?)
			ORDER BY ingested_at
			LIMIT ?
		 )`,
		claim.String(), now, ingestRunID.String(), string(kind), claim.String(), limit,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: claim batch update")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+stagingColumns+` FROM staging_records
		 WHERE processed = 0 AND claimed_by = ? AND entity_kind = ? AND ingest_run_id = ?
		 ORDER BY ingested_at`,
		claim.String(), string(kind), ingestRunID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim batch select")
	}
	defer rows.Close()

	var recs []model.RawRecord
	for rows.Next() {
		rec, err := scanSQLiteStaging(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan staging record")
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: claim batch iterate")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: claim batch commit")
	}
	return recs, nil
}

func scanSQLiteStaging(row rowScanner) (*model.RawRecord, error) {
	var rec model.RawRecord
	var stagingID, runID, payload string
	var claimedBy *string

	if err := row.Scan(&stagingID, &runID, &rec.EntityKind, &rec.Source, &rec.SourceRef,
		&payload, &rec.IngestedAt, &rec.Processed, &rec.ErrorMessage, &claimedBy); err != nil {
		return nil, err
	}

	var err error
	if rec.StagingID, err = uuid.Parse(stagingID); err != nil {
		return nil, eris.Wrapf(err, "parse staging id %q", stagingID)
	}
	if rec.IngestRunID, err = uuid.Parse(runID); err != nil {
		return nil, eris.Wrapf(err, "parse run id %q", runID)
	}
	if claimedBy != nil {
		id, err := uuid.Parse(*claimedBy)
		if err != nil {
			return nil, eris.Wrapf(err, "parse claim id %q", *claimedBy)
		}
		rec.ClaimedBy = &id
	}
	rec.RawPayload = []byte(payload)
	return &rec, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, stagingID uuid.UUID, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_records SET processed = 1, error_message = ? WHERE staging_id = ?`,
		errMsg, stagingID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %s", stagingID)
	}
	return checkRowsAffected(res, "staging record", stagingID)
}

func (s *SQLiteStore) ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_records
		 SET claimed_by = NULL, claimed_at = NULL
		 WHERE processed = 0 AND claimed_by IS NOT NULL AND claimed_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: release stale claims")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: release stale claims rows")
	}
	return int(n), nil
}

// Canonical businesses

func (s *SQLiteStore) findBusiness(ctx context.Context, query string, args ...any) (*model.CanonicalBusiness, error) {
	b, err := scanBusiness(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find business")
	}
	return b, nil
}

func (s *SQLiteStore) FindBusinessByPlacekey(ctx context.Context, region, placekey string) (*model.CanonicalBusiness, error) {
	return s.findBusiness(ctx,
		`SELECT `+businessColumns+` FROM business_canonical WHERE region = ? AND placekey = ?`,
		region, placekey,
	)
}

func (s *SQLiteStore) FindBusinessByKey(ctx context.Context, region, key string) (*model.CanonicalBusiness, error) {
	return s.findBusiness(ctx,
		`SELECT `+businessColumns+` FROM business_canonical WHERE region = ? AND dedup_key = ?`,
		region, key,
	)
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id uuid.UUID) (*model.CanonicalBusiness, error) {
	return s.findBusiness(ctx,
		`SELECT `+businessColumns+` FROM business_canonical WHERE business_id = ?`,
		id.String(),
	)
}

func (s *SQLiteStore) InsertBusiness(ctx context.Context, b *model.CanonicalBusiness) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO business_canonical (`+businessColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BusinessID.String(), b.DedupKey, b.Region, b.Name, string(b.Category), b.Website,
		b.Phone, b.Email, b.MuslimOwned, b.HalalCertified, b.CertifierName,
		b.CertifierRef, b.Placekey, b.Street, b.City, b.State, b.Zip,
		b.Latitude, b.Longitude, string(b.Source), b.SourceRef, string(b.DQStatus),
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return eris.Wrap(ErrDuplicateKey, "sqlite: insert business")
		}
		return eris.Wrap(err, "sqlite: insert business")
	}
	return nil
}

func (s *SQLiteStore) UpdateBusiness(ctx context.Context, b *model.CanonicalBusiness) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE business_canonical SET
		 dedup_key = ?, region = ?, name = ?, category = ?, website = ?, phone = ?,
		 email = ?, muslim_owned = ?, halal_certified = ?, certifier_name = ?,
		 certifier_ref = ?, placekey = ?, street = ?, city = ?, state = ?,
		 zip = ?, latitude = ?, longitude = ?, source = ?, source_ref = ?,
		 dq_status = ?, updated_at = ?
		 WHERE business_id = ?`,
		b.DedupKey, b.Region, b.Name, string(b.Category), b.Website, b.Phone,
		b.Email, b.MuslimOwned, b.HalalCertified, b.CertifierName,
		b.CertifierRef, b.Placekey, b.Street, b.City, b.State, b.Zip,
		b.Latitude, b.Longitude, string(b.Source), b.SourceRef, string(b.DQStatus),
		b.UpdatedAt, b.BusinessID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update business %s", b.BusinessID)
	}
	return checkRowsAffected(res, "business", b.BusinessID)
}

// Canonical events

func (s *SQLiteStore) findEvent(ctx context.Context, query string, args ...any) (*model.CanonicalEvent, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find event")
	}
	return e, nil
}

func (s *SQLiteStore) FindEventByKey(ctx context.Context, region, key string) (*model.CanonicalEvent, error) {
	return s.findEvent(ctx,
		`SELECT `+eventColumns+` FROM event_canonical WHERE region = ? AND dedup_key = ?`,
		region, key,
	)
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id uuid.UUID) (*model.CanonicalEvent, error) {
	return s.findEvent(ctx,
		`SELECT `+eventColumns+` FROM event_canonical WHERE event_id = ?`,
		id.String(),
	)
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, e *model.CanonicalEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_canonical (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID.String(), e.DedupKey, e.Region, e.Title, e.Description,
		nullableTime(e.StartTime), nullableTime(e.EndTime), e.AllDay, e.VenueName, e.URL,
		e.OrganizerName, e.OrganizerContact, e.Street, e.City, e.State, e.Zip,
		e.Latitude, e.Longitude, string(e.Source), e.SourceRef, string(e.DQStatus),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return eris.Wrap(ErrDuplicateKey, "sqlite: insert event")
		}
		return eris.Wrap(err, "sqlite: insert event")
	}
	return nil
}

func (s *SQLiteStore) UpdateEvent(ctx context.Context, e *model.CanonicalEvent) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE event_canonical SET
		 dedup_key = ?, region = ?, title = ?, description = ?, start_time = ?,
		 end_time = ?, all_day = ?, venue_name = ?, url = ?, organizer_name = ?,
		 organizer_contact = ?, street = ?, city = ?, state = ?, zip = ?,
		 latitude = ?, longitude = ?, source = ?, source_ref = ?,
		 dq_status = ?, updated_at = ?
		 WHERE event_id = ?`,
		e.DedupKey, e.Region, e.Title, e.Description,
		nullableTime(e.StartTime), nullableTime(e.EndTime), e.AllDay, e.VenueName, e.URL,
		e.OrganizerName, e.OrganizerContact, e.Street, e.City, e.State, e.Zip,
		e.Latitude, e.Longitude, string(e.Source), e.SourceRef, string(e.DQStatus),
		e.UpdatedAt, e.EventID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update event %s", e.EventID)
	}
	return checkRowsAffected(res, "event", e.EventID)
}

// Provenance

func (s *SQLiteStore) AppendProvenance(ctx context.Context, entry *model.ProvenanceEntry) error {
	if entry.ProvID == uuid.Nil {
		entry.ProvID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provenance_log (prov_id, entity_type, entity_id, action, details, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ProvID.String(), string(entry.EntityType), entry.EntityID.String(),
		string(entry.Action), string(entry.Details), entry.Timestamp,
	)
	return eris.Wrap(err, "sqlite: append provenance")
}

func scanSQLiteProvenance(row rowScanner) (*model.ProvenanceEntry, error) {
	var entry model.ProvenanceEntry
	var provID, entityID, details string

	if err := row.Scan(&provID, &entry.EntityType, &entityID, &entry.Action, &details, &entry.Timestamp); err != nil {
		return nil, err
	}

	var err error
	if entry.ProvID, err = uuid.Parse(provID); err != nil {
		return nil, eris.Wrapf(err, "parse provenance id %q", provID)
	}
	if entry.EntityID, err = uuid.Parse(entityID); err != nil {
		return nil, eris.Wrapf(err, "parse entity id %q", entityID)
	}
	entry.Details = []byte(details)
	return &entry, nil
}

func (s *SQLiteStore) LatestProvenance(ctx context.Context, entityType model.EntityKind, entityID uuid.UUID, action model.ProvenanceAction) (*model.ProvenanceEntry, error) {
	entry, err := scanSQLiteProvenance(s.db.QueryRowContext(ctx,
		`SELECT prov_id, entity_type, entity_id, action, details, ts FROM provenance_log
		 WHERE entity_type = ? AND entity_id = ? AND action = ?
		 ORDER BY ts DESC, prov_id DESC LIMIT 1`,
		string(entityType), entityID.String(), string(action),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest provenance")
	}
	return entry, nil
}

func (s *SQLiteStore) ListProvenance(ctx context.Context, entityType model.EntityKind, entityID uuid.UUID) ([]model.ProvenanceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prov_id, entity_type, entity_id, action, details, ts FROM provenance_log
		 WHERE entity_type = ? AND entity_id = ?
		 ORDER BY ts ASC, prov_id ASC`,
		string(entityType), entityID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provenance")
	}
	defer rows.Close()

	var entries []model.ProvenanceEntry
	for rows.Next() {
		entry, err := scanSQLiteProvenance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provenance")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list provenance iterate")
}

// Runs

func (s *SQLiteStore) CreateRun(ctx context.Context, buildType model.EntityKind, ingestRunID uuid.UUID) (*model.IngestRun, error) {
	run := &model.IngestRun{
		BuildID:     uuid.New(),
		BuildType:   buildType,
		IngestRunID: ingestRunID,
		StartedAt:   time.Now().UTC(),
		Status:      model.RunRunning,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_metadata (build_id, build_type, ingest_run_id, started_at, status, records_processed, records_failed, error_log)
		 VALUES (?, ?, ?, ?, ?, 0, 0, '')`,
		run.BuildID.String(), string(run.BuildType), run.IngestRunID.String(), run.StartedAt, string(run.Status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, buildID uuid.UUID, status model.RunStatus, processed, failed int, errorLog string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE build_metadata
		 SET completed_at = ?, status = ?, records_processed = ?, records_failed = ?, error_log = ?
		 WHERE build_id = ? AND completed_at IS NULL`,
		time.Now().UTC(), string(status), processed, failed, errorLog, buildID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", buildID)
	}
	return checkRowsAffected(res, "run", buildID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, buildID uuid.UUID) (*model.IngestRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM build_metadata WHERE build_id = ?`,
		buildID.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", buildID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error) {
	query := `SELECT ` + runColumns + ` FROM build_metadata WHERE true`
	args := []any{}

	if filter.BuildType != "" {
		query += ` AND build_type = ?`
		args = append(args, string(filter.BuildType))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
