package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
	"github.com/kushagrasharma/censorly/internal/jobs"
)

// SQLite is the single-node/dev Store backend. go-sqlite3 serializes
// writes internally, but ClaimNext still needs its own mutex: SQLite has
// no SKIP LOCKED, so the read-then-update race must be closed in Go.
type SQLite struct {
	db     *sql.DB
	claimMu sync.Mutex
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// applies the registry schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("registry open: %w", err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 is not safe for concurrent writers across connections
	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			input_object_ref TEXT NOT NULL,
			input_size_bytes INTEGER NOT NULL,
			input_duration_s REAL NOT NULL DEFAULT 0,
			mode TEXT NOT NULL,
			threshold REAL NOT NULL,
			languages TEXT NOT NULL DEFAULT '',
			asr_quality TEXT NOT NULL DEFAULT '',
			padding_before_s REAL NOT NULL DEFAULT 0,
			padding_after_s REAL NOT NULL DEFAULT 0,
			ensemble_policy TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			progress INTEGER NOT NULL DEFAULT 0,
			output_object_ref TEXT NOT NULL DEFAULT '',
			censored_interval_count INTEGER NOT NULL DEFAULT 0,
			total_censored_duration_s REAL NOT NULL DEFAULT 0,
			processing_time_s REAL NOT NULL DEFAULT 0,
			error_kind TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			claimed_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			finished_at DATETIME,
			expires_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS jobs_status_created_idx ON jobs (status, created_at);
		CREATE INDEX IF NOT EXISTS jobs_user_id_idx ON jobs (user_id);
	`)
	return err
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Submit(ctx context.Context, userID, inputRef string, inputSizeBytes int64, inputDurationS float64, cfg jobs.Config, expiresAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, input_object_ref, input_size_bytes, input_duration_s,
		                   mode, threshold, languages, asr_quality, padding_before_s, padding_after_s,
		                   ensemble_policy, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)`,
		id, userID, inputRef, inputSizeBytes, inputDurationS,
		string(cfg.Mode), cfg.Threshold, strings.Join(cfg.Languages, ","), cfg.ASRQuality,
		cfg.PaddingBeforeS, cfg.PaddingAfterS, cfg.EnsemblePolicy,
		time.Now().UTC(), expiresAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	return id, nil
}

// ClaimNext mirrors the Postgres fair-queueing ordering, but closes the
// race with an in-process mutex rather than row locks since SQLite has
// no SKIP LOCKED.
func (s *SQLite) ClaimNext(ctx context.Context, workerID string) (*jobs.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT j.id
		FROM jobs j
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS running_count FROM jobs WHERE status = 'running' GROUP BY user_id
		) r ON r.user_id = j.user_id
		WHERE j.status = 'pending'
		ORDER BY COALESCE(r.running_count, 0) ASC, j.created_at ASC
		LIMIT 1`,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claim next: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'running', claimed_by = ?, started_at = ? WHERE id = ? AND status = 'pending'`,
		workerID, now, id,
	); err != nil {
		return nil, fmt.Errorf("claim next: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *SQLite) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ? WHERE id = ? AND status = 'running' AND progress <= ?`,
		progress, jobID, progress,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLite) Complete(ctx context.Context, jobID, outputRef string, intervalCount int, totalCensoredS, processingS float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', progress = 100, output_object_ref = ?,
		                censored_interval_count = ?, total_censored_duration_s = ?,
		                processing_time_s = ?, finished_at = ?
		WHERE id = ? AND status = 'running'`,
		outputRef, intervalCount, totalCensoredS, processingS, time.Now().UTC(), jobID,
	)
	return err
}

func (s *SQLite) Fail(ctx context.Context, jobID string, kind jobs.ErrKind, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error_kind = ?, error_detail = ?, finished_at = ?
		WHERE id = ? AND status = 'running'`,
		string(kind), detail, time.Now().UTC(), jobID,
	)
	return err
}

func (s *SQLite) Cancel(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'cancelled', finished_at = ? WHERE id = ? AND status IN ('pending', 'running')`,
		time.Now().UTC(), jobID,
	)
	return err
}

func (s *SQLite) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, input_object_ref, input_size_bytes, input_duration_s, mode, threshold,
		       languages, asr_quality, padding_before_s, padding_after_s, ensemble_policy,
		       status, progress, output_object_ref, censored_interval_count,
		       total_censored_duration_s, processing_time_s, error_kind, error_detail,
		       created_at, started_at, finished_at, expires_at
		FROM jobs WHERE id = ?`, jobID,
	)
	return scanFullJob(row)
}

func (s *SQLite) List(ctx context.Context, userID string, filter ListFilter) ([]*jobs.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, input_object_ref, input_size_bytes, input_duration_s, mode, threshold,
		       languages, asr_quality, padding_before_s, padding_after_s, ensemble_policy,
		       status, progress, output_object_ref, censored_interval_count,
		       total_censored_duration_s, processing_time_s, error_kind, error_detail,
		       created_at, started_at, finished_at, expires_at
		FROM jobs WHERE user_id = ?`
	args := []any{userID}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*jobs.Job
	for rows.Next() {
		j, err := scanFullJobRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLite) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
