package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hududed/bayanlab/internal/db"
	"github.com/hududed/bayanlab/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"mark_processed":    `UPDATE staging_records SET processed = TRUE, error_message = $1 WHERE staging_id = $2`,
	"find_business_key": `SELECT ` + businessColumns + ` FROM business_canonical WHERE region = $1 AND dedup_key = $2`,
	"find_event_key":    `SELECT ` + eventColumns + ` FROM event_canonical WHERE region = $1 AND dedup_key = $2`,
	"append_provenance": `INSERT INTO provenance_log (prov_id, entity_type, entity_id, action, details, ts) VALUES ($1, $2, $3, $4, $5, $6)`,
	"latest_provenance": `SELECT prov_id, entity_type, entity_id, action, details, ts FROM provenance_log WHERE entity_type = $1 AND entity_id = $2 AND action = $3 ORDER BY ts DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests use this with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS staging_records (
	staging_id    TEXT PRIMARY KEY,
	ingest_run_id TEXT NOT NULL,
	entity_kind   TEXT NOT NULL,
	source        TEXT NOT NULL,
	source_ref    TEXT NOT NULL DEFAULT '',
	raw_payload   JSONB NOT NULL,
	ingested_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed     BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	claimed_by    TEXT,
	claimed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_staging_unprocessed ON staging_records(entity_kind, ingested_at) WHERE processed = FALSE;
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
	muslim_owned    BOOLEAN NOT NULL DEFAULT FALSE,
	halal_certified BOOLEAN NOT NULL DEFAULT FALSE,
	certifier_name  TEXT NOT NULL DEFAULT '',
	certifier_ref   TEXT NOT NULL DEFAULT '',
	placekey        TEXT NOT NULL DEFAULT '',
	street          TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	zip             TEXT NOT NULL DEFAULT '',
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	source          TEXT NOT NULL,
	source_ref      TEXT NOT NULL DEFAULT '',
	dq_status       TEXT NOT NULL DEFAULT 'ok',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (region, dedup_key)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_business_placekey ON business_canonical(region, placekey) WHERE placekey <> '';

CREATE TABLE IF NOT EXISTS event_canonical (
	event_id          TEXT PRIMARY KEY,
	dedup_key         TEXT NOT NULL,
	region            TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	start_time        TIMESTAMPTZ,
	end_time          TIMESTAMPTZ,
	all_day           BOOLEAN NOT NULL DEFAULT FALSE,
	venue_name        TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	organizer_name    TEXT NOT NULL DEFAULT '',
	organizer_contact TEXT NOT NULL DEFAULT '',
	street            TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	zip               TEXT NOT NULL DEFAULT '',
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	source            TEXT NOT NULL,
	source_ref        TEXT NOT NULL DEFAULT '',
	dq_status         TEXT NOT NULL DEFAULT 'ok',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (region, dedup_key)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	prov_id     TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	details     JSONB,
	ts          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_provenance_entity ON provenance_log(entity_type, entity_id, ts DESC);

CREATE TABLE IF NOT EXISTS build_metadata (
	build_id          TEXT PRIMARY KEY,
	build_type        TEXT NOT NULL,
	ingest_run_id     TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at      TIMESTAMPTZ,
	status            TEXT NOT NULL DEFAULT 'running',
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_failed    INTEGER NOT NULL DEFAULT 0,
	error_log         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_build_metadata_status ON build_metadata(status);
CREATE INDEX IF NOT EXISTS idx_build_metadata_run ON build_metadata(ingest_run_id);
`

const businessColumns = `business_id, dedup_key, region, name, category, website, phone, email, muslim_owned, halal_certified, certifier_name, certifier_ref, placekey, street, city, state, zip, latitude, longitude, source, source_ref, dq_status, created_at, updated_at`

const eventColumns = `event_id, dedup_key, region, title, description, start_time, end_time, all_day, venue_name, url, organizer_name, organizer_contact, street, city, state, zip, latitude, longitude, source, source_ref, dq_status, created_at, updated_at`

const stagingColumns = `staging_id, ingest_run_id, entity_kind, source, source_ref, raw_payload, ingested_at, processed, error_message, claimed_by`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Staging

func (s *PostgresStore) SubmitRaw(ctx context.Context, rec *model.RawRecord) (uuid.UUID, error) {
	if rec.StagingID == uuid.Nil {
		rec.StagingID = uuid.New()
	}
	if rec.IngestedAt.IsZero() {
		rec.IngestedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO staging_records (staging_id, ingest_run_id, entity_kind, source, source_ref, raw_payload, ingested_at, processed, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, '')`,
		rec.StagingID.String(), rec.IngestRunID.String(), string(rec.EntityKind), string(rec.Source),
		rec.SourceRef, []byte(rec.RawPayload), rec.IngestedAt,
	)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "postgres: submit raw record")
	}
	return rec.StagingID, nil
}

func (s *PostgresStore) ClaimBatch(ctx context.Context, claim, ingestRunID uuid.UUID, kind model.EntityKind, limit int) ([]model.RawRecord, error) {
	rows, err := s.pool.Query(ctx,
		`WITH picked AS (
			SELECT staging_id FROM staging_records
			WHERE processed = FALSE
			  AND ingest_run_id = $1
			  AND entity_kind = $2
			  AND (claimed_by IS NULL OR claimed_by = $3)
			ORDER BY ingested_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE staging_records s
		SET claimed_by = $3, claimed_at = now()
		FROM picked
		WHERE s.staging_id = picked.staging_id
		RETURNING s.staging_id, s.ingest_run_id, s.entity_kind, s.source, s.source_ref, s.raw_payload, s.ingested_at, s.processed, s.error_message, s.claimed_by`,
		ingestRunID.String(), string(kind), claim.String(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim batch")
	}
	defer rows.Close()

	var recs []model.RawRecord
	for rows.Next() {
		rec, err := scanStaging(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan staging record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: claim batch iterate")
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, stagingID uuid.UUID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_records SET processed = TRUE, error_message = $1 WHERE staging_id = $2`,
		errMsg, stagingID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %s", stagingID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("staging record not found: %s", stagingID)
	}
	return nil
}

func (s *PostgresStore) ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_records
		 SET claimed_by = NULL, claimed_at = NULL
		 WHERE processed = FALSE AND claimed_by IS NOT NULL AND claimed_at < now() - $1::interval`,
		olderThan.String(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: release stale claims")
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStaging(row rowScanner) (*model.RawRecord, error) {
	var rec model.RawRecord
	var stagingID, runID string
	var payload []byte
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
	rec.RawPayload = payload
	return &rec, nil
}

// Canonical businesses

func scanBusiness(row rowScanner) (*model.CanonicalBusiness, error) {
	var b model.CanonicalBusiness
	var id string

	if err := row.Scan(&id, &b.DedupKey, &b.Region, &b.Name, &b.Category, &b.Website,
		&b.Phone, &b.Email, &b.MuslimOwned, &b.HalalCertified, &b.CertifierName,
		&b.CertifierRef, &b.Placekey, &b.Street, &b.City, &b.State, &b.Zip,
		&b.Latitude, &b.Longitude, &b.Source, &b.SourceRef, &b.DQStatus,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if b.BusinessID, err = uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(err, "parse business id %q", id)
	}
	return &b, nil
}

func (s *PostgresStore) findBusiness(ctx context.Context, query string, args ...any) (*model.CanonicalBusiness, error) {
	b, err := scanBusiness(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find business")
	}
	return b, nil
}

func (s *PostgresStore) FindBusinessByPlacekey(ctx context.Context, region, placekey string) (*model.CanonicalBusiness, error) {
	return s.findBusiness(ctx,
		`SELECT `+businessColumns+` FROM business_canonical WHERE region = $1 AND placekey = $2`,
		region, placekey,
	)
}

func (s *PostgresStore) FindBusinessByKey(ctx context.Context, region, key string) (*model.CanonicalBusiness, error) {
	return s.findBusiness(ctx,
		`SELECT `+businessColumns+` FROM business_canonical WHERE region = $1 AND dedup_key = $2`,
		region, key,
	)
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id uuid.UUID) (*model.CanonicalBusiness, error) {
	return s.findBusiness(ctx,
		`SELECT `+businessColumns+` FROM business_canonical WHERE business_id = $1`,
		id.String(),
	)
}

func (s *PostgresStore) InsertBusiness(ctx context.Context, b *model.CanonicalBusiness) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO business_canonical (`+businessColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		b.BusinessID.String(), b.DedupKey, b.Region, b.Name, string(b.Category), b.Website,
		b.Phone, b.Email, b.MuslimOwned, b.HalalCertified, b.CertifierName,
		b.CertifierRef, b.Placekey, b.Street, b.City, b.State, b.Zip,
		b.Latitude, b.Longitude, string(b.Source), b.SourceRef, string(b.DQStatus),
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrap(ErrDuplicateKey, "postgres: insert business")
		}
		return eris.Wrap(err, "postgres: insert business")
	}
	return nil
}

func (s *PostgresStore) UpdateBusiness(ctx context.Context, b *model.CanonicalBusiness) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE business_canonical SET
		 dedup_key = $2, region = $3, name = $4, category = $5, website = $6, phone = $7,
		 email = $8, muslim_owned = $9, halal_certified = $10, certifier_name = $11,
		 certifier_ref = $12, placekey = $13, street = $14, city = $15, state = $16,
		 zip = $17, latitude = $18, longitude = $19, source = $20, source_ref = $21,
		 dq_status = $22, updated_at = $23
		 WHERE business_id = $1`,
		b.BusinessID.String(), b.DedupKey, b.Region, b.Name, string(b.Category), b.Website,
		b.Phone, b.Email, b.MuslimOwned, b.HalalCertified, b.CertifierName,
		b.CertifierRef, b.Placekey, b.Street, b.City, b.State, b.Zip,
		b.Latitude, b.Longitude, string(b.Source), b.SourceRef, string(b.DQStatus),
		b.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update business %s", b.BusinessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("business not found: %s", b.BusinessID)
	}
	return nil
}

// Canonical events

func scanEvent(row rowScanner) (*model.CanonicalEvent, error) {
	var e model.CanonicalEvent
	var id string
	var start, end *time.Time

	if err := row.Scan(&id, &e.DedupKey, &e.Region, &e.Title, &e.Description,
		&start, &end, &e.AllDay, &e.VenueName, &e.URL, &e.OrganizerName,
		&e.OrganizerContact, &e.Street, &e.City, &e.State, &e.Zip,
		&e.Latitude, &e.Longitude, &e.Source, &e.SourceRef, &e.DQStatus,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if e.EventID, err = uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(err, "parse event id %q", id)
	}
	if start != nil {
		e.StartTime = *start
	}
	if end != nil {
		e.EndTime = *end
	}
	return &e, nil
}

func (s *PostgresStore) FindEventByKey(ctx context.Context, region, key string) (*model.CanonicalEvent, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM event_canonical WHERE region = $1 AND dedup_key = $2`,
		region, key,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find event")
	}
	return e, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*model.CanonicalEvent, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM event_canonical WHERE event_id = $1`,
		id.String(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get event")
	}
	return e, nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, e *model.CanonicalEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_canonical (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		e.EventID.String(), e.DedupKey, e.Region, e.Title, e.Description,
		nullableTime(e.StartTime), nullableTime(e.EndTime), e.AllDay, e.VenueName, e.URL,
		e.OrganizerName, e.OrganizerContact, e.Street, e.City, e.State, e.Zip,
		e.Latitude, e.Longitude, string(e.Source), e.SourceRef, string(e.DQStatus),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrap(ErrDuplicateKey, "postgres: insert event")
		}
		return eris.Wrap(err, "postgres: insert event")
	}
	return nil
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, e *model.CanonicalEvent) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE event_canonical SET
		 dedup_key = $2, region = $3, title = $4, description = $5, start_time = $6,
		 end_time = $7, all_day = $8, venue_name = $9, url = $10, organizer_name = $11,
		 organizer_contact = $12, street = $13, city = $14, state = $15, zip = $16,
		 latitude = $17, longitude = $18, source = $19, source_ref = $20,
		 dq_status = $21, updated_at = $22
		 WHERE event_id = $1`,
		e.EventID.String(), e.DedupKey, e.Region, e.Title, e.Description,
		nullableTime(e.StartTime), nullableTime(e.EndTime), e.AllDay, e.VenueName, e.URL,
		e.OrganizerName, e.OrganizerContact, e.Street, e.City, e.State, e.Zip,
		e.Latitude, e.Longitude, string(e.Source), e.SourceRef, string(e.DQStatus),
		e.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update event %s", e.EventID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("event not found: %s", e.EventID)
	}
	return nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Provenance

func (s *PostgresStore) AppendProvenance(ctx context.Context, entry *model.ProvenanceEntry) error {
	if entry.ProvID == uuid.Nil {
		entry.ProvID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO provenance_log (prov_id, entity_type, entity_id, action, details, ts) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ProvID.String(), string(entry.EntityType), entry.EntityID.String(),
		string(entry.Action), []byte(entry.Details), entry.Timestamp,
	)
	return eris.Wrap(err, "postgres: append provenance")
}

func scanProvenance(row rowScanner) (*model.ProvenanceEntry, error) {
	var entry model.ProvenanceEntry
	var provID, entityID string
	var details []byte

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
	entry.Details = details
	return &entry, nil
}

func (s *PostgresStore) LatestProvenance(ctx context.Context, entityType model.EntityKind, entityID uuid.UUID, action model.ProvenanceAction) (*model.ProvenanceEntry, error) {
	entry, err := scanProvenance(s.pool.QueryRow(ctx,
		`SELECT prov_id, entity_type, entity_id, action, details, ts FROM provenance_log
		 WHERE entity_type = $1 AND entity_id = $2 AND action = $3
		 ORDER BY ts DESC LIMIT 1`,
		string(entityType), entityID.String(), string(action),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest provenance")
	}
	return entry, nil
}

func (s *PostgresStore) ListProvenance(ctx context.Context, entityType model.EntityKind, entityID uuid.UUID) ([]model.ProvenanceEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prov_id, entity_type, entity_id, action, details, ts FROM provenance_log
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY ts ASC`,
		string(entityType), entityID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provenance")
	}
	defer rows.Close()

	var entries []model.ProvenanceEntry
	for rows.Next() {
		entry, err := scanProvenance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan provenance")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list provenance iterate")
}

// Runs

func (s *PostgresStore) CreateRun(ctx context.Context, buildType model.EntityKind, ingestRunID uuid.UUID) (*model.IngestRun, error) {
	run := &model.IngestRun{
		BuildID:     uuid.New(),
		BuildType:   buildType,
		IngestRunID: ingestRunID,
		StartedAt:   time.Now().UTC(),
		Status:      model.RunRunning,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO build_metadata (build_id, build_type, ingest_run_id, started_at, status, records_processed, records_failed, error_log)
		 VALUES ($1, $2, $3, $4, $5, 0, 0, '')`,
		run.BuildID.String(), string(run.BuildType), run.IngestRunID.String(), run.StartedAt, string(run.Status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, buildID uuid.UUID, status model.RunStatus, processed, failed int, errorLog string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE build_metadata
		 SET completed_at = now(), status = $1, records_processed = $2, records_failed = $3, error_log = $4
		 WHERE build_id = $5 AND completed_at IS NULL`,
		string(status), processed, failed, errorLog, buildID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", buildID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found or already completed: %s", buildID)
	}
	return nil
}

func scanRun(row rowScanner) (*model.IngestRun, error) {
	var run model.IngestRun
	var buildID, runID string

	if err := row.Scan(&buildID, &run.BuildType, &runID, &run.StartedAt, &run.CompletedAt,
		&run.Status, &run.RecordsProcessed, &run.RecordsFailed, &run.ErrorLog); err != nil {
		return nil, err
	}

	var err error
	if run.BuildID, err = uuid.Parse(buildID); err != nil {
		return nil, eris.Wrapf(err, "parse build id %q", buildID)
	}
	if run.IngestRunID, err = uuid.Parse(runID); err != nil {
		return nil, eris.Wrapf(err, "parse run id %q", runID)
	}
	return &run, nil
}

const runColumns = `build_id, build_type, ingest_run_id, started_at, completed_at, status, records_processed, records_failed, error_log`

func (s *PostgresStore) GetRun(ctx context.Context, buildID uuid.UUID) (*model.IngestRun, error) {
	run, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM build_metadata WHERE build_id = $1`,
		buildID.String(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", buildID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error) {
	query := `SELECT ` + runColumns + ` FROM build_metadata WHERE true`
	args := []any{}
	argIdx := 1

	if filter.BuildType != "" {
		query += fmt.Sprintf(` AND build_type = $%d`, argIdx)
		args = append(args, string(filter.BuildType))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
