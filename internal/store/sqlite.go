package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"docverify/constants"
	"docverify/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS document_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	snapshot   TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_jobs_status ON document_jobs (status);
`

// SQLiteStore checkpoints jobs into an embedded sqlite file, one JSON
// snapshot per job.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the checkpoint database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	// sqlite handles one writer at a time; a second connection would hit
	// SQLITE_BUSY under worker concurrency.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	logger.Info("checkpoint store ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, job *entity.DocumentJob) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_jobs (id, status, snapshot, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status     = excluded.status,
			snapshot   = excluded.snapshot,
			updated_at = excluded.updated_at`,
		job.ID.String(), string(job.Status), string(snapshot), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("checkpoint job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*entity.DocumentJob, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM document_jobs WHERE id = ?`, id.String(),
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return decodeSnapshot(snapshot)
}

func (s *SQLiteStore) ListNonTerminal(ctx context.Context) ([]*entity.DocumentJob, error) {
	return s.list(ctx,
		`SELECT snapshot FROM document_jobs WHERE status NOT IN (?, ?, ?)`,
		string(constants.JobStatusComplete), string(constants.JobStatusNeedsReview), string(constants.JobStatusFailed))
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status constants.JobStatus) ([]*entity.DocumentJob, error) {
	return s.list(ctx, `SELECT snapshot FROM document_jobs WHERE status = ?`, string(status))
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]*entity.DocumentJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*entity.DocumentJob
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		job, err := decodeSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func decodeSnapshot(snapshot string) (*entity.DocumentJob, error) {
	var job entity.DocumentJob
	if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &job, nil
}
