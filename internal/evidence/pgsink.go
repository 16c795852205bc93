package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresSink is an optional evidence Sink that persists records to a
// Postgres table instead of (or alongside) the local file log: a
// database/sql handle, a schema created on first use, and a single
// parameterized INSERT per write.
type PostgresSink struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresSink opens a pgx-backed *sql.DB for dsn and wraps it as a Sink.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("evidence: open postgres sink: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("evidence: postgres sink is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS evidence_records (
    evidence_id TEXT PRIMARY KEY,
    task_id TEXT,
    clone TEXT,
    operation TEXT NOT NULL,
    execution TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evidence_task_id ON evidence_records(task_id);
CREATE INDEX IF NOT EXISTS idx_evidence_occurred_at ON evidence_records(occurred_at);
`)
	})
	return s.schemaErr
}

// Write inserts rec as a single row, storing the full record as JSONB for
// recovery of the free-form Extras map.
func (s *PostgresSink) Write(rec Record) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("evidence: marshal record: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO evidence_records (evidence_id, task_id, clone, operation, execution, occurred_at, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (evidence_id) DO NOTHING
`, rec.EvidenceID, rec.TaskID, rec.Clone, rec.Operation, rec.Execution, rec.Timestamp, payload)
	return err
}

// PruneOlderThan deletes rows older than now - days.
func (s *PostgresSink) PruneOlderThan(days int) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if days <= 0 {
		days = defaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM evidence_records WHERE occurred_at < $1`, cutoff)
	return err
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// MultiSink fans a write out to every wrapped Sink, used when a deployment
// wants both the local day-rotated log and a durable Postgres copy of the
// audit trail. PruneOlderThan likewise runs against every sink; the first
// error encountered is returned after every sink has been tried.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink builds a MultiSink over sinks, skipping any nil entries.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{Sinks: out}
}

func (m *MultiSink) Write(rec Record) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Write(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) PruneOlderThan(days int) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.PruneOlderThan(days); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
