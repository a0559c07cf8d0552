package registry

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver

	"github.com/google/uuid"
	"github.com/kushagrasharma/censorly/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Postgres is the production Store backend, grounded on internal/trace's
// database/sql + embedded-migration pattern.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to connStr and applies any pending migrations.
func OpenPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("registry open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry ping: %w", err)
	}
	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func migratePostgres(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`).Scan(&current); err != nil {
		return err
	}
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	for i := current + 1; i < len(entries); i++ {
		data, err := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if err != nil {
			return fmt.Errorf("read migration %d: %w", i, err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); err != nil {
			return fmt.Errorf("migration %d record: %w", i, err)
		}
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Submit(ctx context.Context, userID, inputRef string, inputSizeBytes int64, inputDurationS float64, cfg jobs.Config, expiresAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, input_object_ref, input_size_bytes, input_duration_s,
		                   mode, threshold, languages, asr_quality, padding_before_s, padding_after_s,
		                   ensemble_policy, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', $13, $14)`,
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

// ClaimNext atomically claims the pending job favoring users with the
// fewest currently running jobs, tie-breaking on oldest created_at. The
// CTE's FOR UPDATE SKIP LOCKED is the single hard requirement: two
// concurrent callers can never be handed the same row.
func (p *Postgres) ClaimNext(ctx context.Context, workerID string) (*jobs.Job, error) {
	row := p.db.QueryRowContext(ctx, `
		WITH running_counts AS (
			SELECT user_id, COUNT(*) AS running_count
			FROM jobs
			WHERE status = 'running'
			GROUP BY user_id
		),
		candidate AS (
			SELECT j.id
			FROM jobs j
			LEFT JOIN running_counts r ON r.user_id = j.user_id
			WHERE j.status = 'pending'
			ORDER BY COALESCE(r.running_count, 0) ASC, j.created_at ASC
			LIMIT 1
			FOR UPDATE OF j SKIP LOCKED
		)
		UPDATE jobs
		SET status = 'running', claimed_by = $1, started_at = $2
		FROM candidate
		WHERE jobs.id = candidate.id
		RETURNING jobs.id, jobs.user_id, jobs.input_object_ref, jobs.input_size_bytes, jobs.input_duration_s,
		          jobs.mode, jobs.threshold, jobs.languages, jobs.asr_quality, jobs.padding_before_s,
		          jobs.padding_after_s, jobs.ensemble_policy, jobs.status, jobs.progress,
		          jobs.created_at, jobs.started_at, jobs.expires_at`,
		workerID, time.Now().UTC(),
	)
	return scanJob(row)
}

func (p *Postgres) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET progress = $1 WHERE id = $2 AND status = 'running' AND progress <= $1`,
		progress, jobID,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return checkRowsAffected(res, jobID)
}

func (p *Postgres) Complete(ctx context.Context, jobID, outputRef string, intervalCount int, totalCensoredS, processingS float64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', progress = 100, output_object_ref = $1,
		                censored_interval_count = $2, total_censored_duration_s = $3,
		                processing_time_s = $4, finished_at = $5
		WHERE id = $6 AND status = 'running'`,
		outputRef, intervalCount, totalCensoredS, processingS, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (p *Postgres) Fail(ctx context.Context, jobID string, kind jobs.ErrKind, detail string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error_kind = $1, error_detail = $2, finished_at = $3
		WHERE id = $4 AND status = 'running'`,
		string(kind), detail, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (p *Postgres) Cancel(ctx context.Context, jobID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'cancelled', finished_at = $1
		WHERE id = $2 AND status IN ('pending', 'running')`,
		time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, input_object_ref, input_size_bytes, input_duration_s, mode, threshold,
		       languages, asr_quality, padding_before_s, padding_after_s, ensemble_policy,
		       status, progress, output_object_ref, censored_interval_count,
		       total_censored_duration_s, processing_time_s, error_kind, error_detail,
		       created_at, started_at, finished_at, expires_at
		FROM jobs WHERE id = $1`, jobID,
	)
	return scanFullJob(row)
}

func (p *Postgres) List(ctx context.Context, userID string, filter ListFilter) ([]*jobs.Job, error) {
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
		FROM jobs WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(filter.Status))
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
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

func (p *Postgres) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func checkRowsAffected(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s not running or progress would decrease", jobID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*jobs.Job, error) {
	var j jobs.Job
	var languages string
	var startedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.UserID, &j.InputObjectRef, &j.InputSizeBytes, &j.InputDurationS,
		&j.Config.Mode, &j.Config.Threshold, &languages, &j.Config.ASRQuality,
		&j.Config.PaddingBeforeS, &j.Config.PaddingAfterS, &j.Config.EnsemblePolicy,
		&j.Status, &j.Progress, &j.CreatedAt, &startedAt, &j.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if languages != "" {
		j.Config.Languages = strings.Split(languages, ",")
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	return &j, nil
}

func scanFullJob(row rowScanner) (*jobs.Job, error) {
	j, err := scanFullJobRow(row)
	if err == nil && j == nil {
		return nil, fmt.Errorf("job not found: %w", sql.ErrNoRows)
	}
	return j, err
}

func scanFullJobRow(row rowScanner) (*jobs.Job, error) {
	var j jobs.Job
	var languages string
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.UserID, &j.InputObjectRef, &j.InputSizeBytes, &j.InputDurationS,
		&j.Config.Mode, &j.Config.Threshold, &languages, &j.Config.ASRQuality,
		&j.Config.PaddingBeforeS, &j.Config.PaddingAfterS, &j.Config.EnsemblePolicy,
		&j.Status, &j.Progress, &j.OutputObjectRef, &j.CensoredIntervalCount,
		&j.TotalCensoredDurationS, &j.ProcessingTimeS, &j.ErrorKind, &j.ErrorDetail,
		&j.CreatedAt, &startedAt, &finishedAt, &j.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if languages != "" {
		j.Config.Languages = strings.Split(languages, ",")
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = &finishedAt.Time
	}
	return &j, nil
}
