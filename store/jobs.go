package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wyrecliff/docvault/docerr"
)

// JobRepository persists Job rows and enforces the at-most-one-active-job
// per (source_name, operation) invariant through row locking rather than a
// partial unique index, since the set of "active" statuses can grow without
// a schema migration.
type JobRepository struct {
	q querier
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{q: pool}
}

func (r *JobRepository) WithTx(tx pgx.Tx) *JobRepository {
	return &JobRepository{q: tx}
}

// EnqueueIfAbsent inserts a new queued Job for (docType, sourceName,
// operation) unless one is already queued or running, in which case it
// returns the existing job and created=false. Callers that need this
// guarantee across concurrent callers must run it inside Pool.WithTx so the
// transaction-scoped advisory lock on the key (held until commit) and the
// SELECT ... FOR UPDATE actually serialize against other transactions.
func (r *JobRepository) EnqueueIfAbsent(ctx context.Context, docType, sourceName string, op JobOperation, softDelete bool) (job *Job, created bool, err error) {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || '/' || $2::text || '/' || $3::text))`,
		docType, sourceName, string(op)); err != nil {
		return nil, false, fmt.Errorf("store: lock job key: %w", err)
	}

	row := r.q.QueryRow(ctx, `
		SELECT id, source_name, doc_type, operation, soft_delete, status, progress, error, started_at, finished_at, created_at, updated_at
		FROM jobs
		WHERE source_name = $1 AND doc_type = $2 AND operation = $3 AND status IN ('queued', 'running')
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, sourceName, docType, op)
	existing, scanErr := scanJob(row)
	if scanErr == nil {
		return existing, false, nil
	}
	if !isNoRows(scanErr) {
		return nil, false, fmt.Errorf("store: check active job: %w", scanErr)
	}

	row = r.q.QueryRow(ctx, `
		INSERT INTO jobs (source_name, doc_type, operation, soft_delete, status, progress)
		VALUES ($1, $2, $3, $4, 'queued', 0)
		RETURNING id, source_name, doc_type, operation, soft_delete, status, progress, error, started_at, finished_at, created_at, updated_at
	`, sourceName, docType, op, softDelete)
	job, err = scanJob(row)
	if err != nil {
		return nil, false, fmt.Errorf("store: enqueue job: %w", err)
	}
	return job, true, nil
}

// Lease atomically moves a job from queued to running, returning false when
// another worker already claimed it (RowsAffected == 0). This is the
// ownership-transfer primitive a JobRunner worker uses to claim work without
// a separate distributed lock.
func (r *JobRepository) Lease(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE jobs SET status = 'running', started_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'queued'
	`, id)
	if err != nil {
		return false, fmt.Errorf("store: lease job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimNext atomically claims the oldest queued job and moves it to running,
// skipping any row another worker already has locked so concurrent workers
// never block on each other's claim. Returns nil, nil when no job is queued.
func (r *JobRepository) ClaimNext(ctx context.Context) (*Job, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', started_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM jobs WHERE status = 'queued'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, source_name, doc_type, operation, soft_delete, status, progress, error, started_at, finished_at, created_at, updated_at
	`)
	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: claim next job: %w", err)
	}
	return job, nil
}

// Transition moves a running job to a terminal status, recording an error
// message on failure and advancing progress to 100 on completion.
func (r *JobRepository) Transition(ctx context.Context, id uuid.UUID, status JobStatus, jobErr *string) error {
	if !status.Terminal() {
		return fmt.Errorf("store: transition job %s: %q is not a terminal status", id, status)
	}
	progress := 0
	if status == JobCompleted {
		progress = 100
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE jobs SET status = $1, error = $2, progress = CASE WHEN $1 = 'completed' THEN 100 ELSE progress END,
		    finished_at = now(), updated_at = now()
		WHERE id = $3 AND status = 'running'
	`, status, jobErr, id)
	_ = progress
	if err != nil {
		return fmt.Errorf("store: transition job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docerr.New(docerr.Conflict, fmt.Sprintf("job %s is not running", id))
	}
	return nil
}

// SetProgress updates a running job's progress percentage for status
// reporting; it is not ownership-sensitive since only the leasing worker
// calls it.
func (r *JobRepository) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := r.q.Exec(ctx, `UPDATE jobs SET progress = $1, updated_at = now() WHERE id = $2`, progress, id)
	if err != nil {
		return fmt.Errorf("store: set job progress: %w", err)
	}
	return nil
}

// ByID fetches a single job.
func (r *JobRepository) ByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, source_name, doc_type, operation, soft_delete, status, progress, error, started_at, finished_at, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id)
	return scanJob(row)
}

// Recent lists the most recently created jobs, newest first, bounded by
// limit (defaulting to 20 when limit <= 0). Used by admin status when no
// job id is given.
func (r *JobRepository) Recent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, source_name, doc_type, operation, soft_delete, status, progress, error, started_at, finished_at, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan recent job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ReapExpiredLeases reclaims jobs stuck in running past ttl (a worker died
// mid-job), resetting them to queued so another worker can pick them up.
// Liveness is judged by updated_at, not started_at: a long-running add job
// calls SetProgress throughout execution, which bumps updated_at, so a job
// still being actively worked never looks expired even when it runs past
// ttl since it started. It returns the reclaimed job IDs for logging.
func (r *JobRepository) ReapExpiredLeases(ctx context.Context, ttl time.Duration) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `
		UPDATE jobs SET status = 'queued', started_at = NULL, updated_at = now()
		WHERE status = 'running' AND updated_at < now() - $1::interval
		RETURNING id
	`, ttl.String())
	if err != nil {
		return nil, fmt.Errorf("store: reap expired leases: %w", err)
	}
	defer rows.Close()

	var reclaimed []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan reaped job id: %w", err)
		}
		reclaimed = append(reclaimed, id)
	}
	return reclaimed, rows.Err()
}

// PurgeOlderThan deletes terminal jobs whose finished_at predates the
// retention window, returning the number of rows removed.
func (r *JobRepository) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND finished_at < now() - $1::interval
	`, retention.String())
	if err != nil {
		return 0, fmt.Errorf("store: purge old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*Job, error) {
	j := &Job{}
	if err := row.Scan(&j.ID, &j.SourceName, &j.DocType, &j.Operation, &j.SoftDelete, &j.Status, &j.Progress, &j.Error, &j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return j, nil
}

func isNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
