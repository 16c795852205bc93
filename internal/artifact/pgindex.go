package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresIndex is an optional manifest index backed by Postgres. Content
// bytes are left to a content FileStore/S3Store; PostgresIndex only tracks
// manifests, making it usable alongside either content backend when
// multiple worker processes need to share one index.
type PostgresIndex struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresIndex opens dsn with the pgx stdlib driver.
func NewPostgresIndex(dsn string) (*PostgresIndex, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &IOError{Err: err}
	}
	return &PostgresIndex{db: db}, nil
}

func (p *PostgresIndex) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS artifact_manifests (
	artifact_id TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	location    TEXT NOT NULL,
	size        INTEGER NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	metadata    JSONB
)`)
		if err != nil {
			p.schemaErr = err
			return
		}
		_, p.schemaErr = p.db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_artifact_manifests_type ON artifact_manifests (type)`)
	})
	return p.schemaErr
}

// Put upserts a manifest record.
func (p *PostgresIndex) Put(ctx context.Context, m Manifest) error {
	if err := p.ensureSchema(ctx); err != nil {
		return &IOError{Err: err}
	}
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return &IOError{Err: err}
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO artifact_manifests (artifact_id, type, checksum, location, size, occurred_at, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (artifact_id) DO UPDATE SET
	type = EXCLUDED.type,
	checksum = EXCLUDED.checksum,
	location = EXCLUDED.location,
	size = EXCLUDED.size,
	metadata = EXCLUDED.metadata`,
		m.ArtifactID, string(m.Type), m.Checksum, m.Location, m.Size, m.Timestamp, metadata)
	if err != nil {
		return &IOError{Err: err}
	}
	return nil
}

// Get fetches one manifest by id.
func (p *PostgresIndex) Get(ctx context.Context, id string) (Manifest, bool, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return Manifest{}, false, &IOError{Err: err}
	}
	row := p.db.QueryRowContext(ctx, `
SELECT artifact_id, type, checksum, location, size, occurred_at, metadata
FROM artifact_manifests WHERE artifact_id = $1`, id)
	m, err := scanManifest(row)
	if err == sql.ErrNoRows {
		return Manifest{}, false, nil
	}
	if err != nil {
		return Manifest{}, false, &IOError{Err: err}
	}
	return m, true, nil
}

// List returns manifests ordered by occurred_at, optionally filtered by type.
func (p *PostgresIndex) List(ctx context.Context, opts ListOptions) ([]Manifest, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, &IOError{Err: err}
	}
	var rows *sql.Rows
	var err error
	if opts.Type != "" {
		rows, err = p.db.QueryContext(ctx, `
SELECT artifact_id, type, checksum, location, size, occurred_at, metadata
FROM artifact_manifests WHERE type = $1 ORDER BY occurred_at ASC`, string(opts.Type))
	} else {
		rows, err = p.db.QueryContext(ctx, `
SELECT artifact_id, type, checksum, location, size, occurred_at, metadata
FROM artifact_manifests ORDER BY occurred_at ASC`)
	}
	if err != nil {
		return nil, &IOError{Err: err}
	}
	defer rows.Close()

	var out []Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, &IOError{Err: err}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes one manifest row.
func (p *PostgresIndex) Delete(ctx context.Context, id string) (bool, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return false, &IOError{Err: err}
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM artifact_manifests WHERE artifact_id = $1`, id)
	if err != nil {
		return false, &IOError{Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &IOError{Err: err}
	}
	return n > 0, nil
}

// Close closes the underlying connection pool.
func (p *PostgresIndex) Close() error { return p.db.Close() }

// MirroredStore wraps a content Store (FileStore or S3Store) and mirrors
// every manifest write/delete into a PostgresIndex, so a fleet of worker
// processes can share one manifest index even though each owns its own
// content files. Mirroring is best-effort: a PostgresIndex failure never
// fails the underlying store operation, since the shared index is a
// convenience, not a correctness requirement.
type MirroredStore struct {
	Store
	index *PostgresIndex
}

// NewMirroredStore builds a MirroredStore over store, replicating its
// manifests into index.
func NewMirroredStore(store Store, index *PostgresIndex) *MirroredStore {
	return &MirroredStore{Store: store, index: index}
}

func (m *MirroredStore) StoreArtifact(ctx context.Context, typ Type, content []byte, metadata map[string]any) (Manifest, error) {
	manifest, err := m.Store.StoreArtifact(ctx, typ, content, metadata)
	if err != nil {
		return Manifest{}, err
	}
	_ = m.index.Put(ctx, manifest)
	return manifest, nil
}

func (m *MirroredStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := m.Store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	_, _ = m.index.Delete(ctx, id)
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner) (Manifest, error) {
	var m Manifest
	var typ string
	var metadata []byte
	if err := row.Scan(&m.ArtifactID, &typ, &m.Checksum, &m.Location, &m.Size, &m.Timestamp, &metadata); err != nil {
		return Manifest{}, err
	}
	m.Type = Type(typ)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return Manifest{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return m, nil
}
