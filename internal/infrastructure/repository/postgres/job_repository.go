package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

const pgUniqueViolation = "23505"

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateExclusive inserts a new pending job. The partial unique index on
// active jobs makes the insert fail while another job for the same
// artifact is still pending or running; that conflict surfaces as
// domain.ErrDuplicateJob.
func (r *JobRepository) CreateExclusive(ctx context.Context, job *domain.PipelineJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pipeline_jobs (id, artifact_id, warranty_id, stage, status, degraded, failed_stage, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		job.ID, job.ArtifactID, job.WarrantyID, string(job.Stage), string(job.Status),
		job.Degraded, string(job.FailedStage), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.WrapError(domain.ErrDuplicateJob, "create job", fmt.Errorf("artifact %s already has an active job", job.ArtifactID))
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.PipelineJob, error) {
	return r.scanJob(r.db.QueryRowContext(ctx, `
SELECT id, artifact_id, warranty_id, stage, status, degraded, failed_stage, error_message, created_at, updated_at
FROM pipeline_jobs
WHERE id = $1
`, id), id)
}

func (r *JobRepository) GetLatestByArtifact(ctx context.Context, artifactID string) (*domain.PipelineJob, error) {
	return r.scanJob(r.db.QueryRowContext(ctx, `
SELECT id, artifact_id, warranty_id, stage, status, degraded, failed_stage, error_message, created_at, updated_at
FROM pipeline_jobs
WHERE artifact_id = $1
ORDER BY created_at DESC
LIMIT 1
`, artifactID), artifactID)
}

func (r *JobRepository) scanJob(row *sql.Row, key string) (*domain.PipelineJob, error) {
	var job domain.PipelineJob
	var stage, status, failedStage string
	err := row.Scan(
		&job.ID, &job.ArtifactID, &job.WarrantyID, &stage, &status,
		&job.Degraded, &failedStage, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("key %s", key))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Stage = domain.JobStage(stage)
	job.Status = domain.JobStatus(status)
	job.FailedStage = domain.JobStage(failedStage)
	return &job, nil
}

// Advance moves a job forward one or more stages inside a transaction,
// appending the audit transition. Backwards or repeated stages are
// rejected before anything is written.
func (r *JobRepository) Advance(ctx context.Context, jobID string, to domain.JobStage, detail string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advance tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT stage FROM pipeline_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrJobNotFound, "advance job", fmt.Errorf("id %s", jobID))
		}
		return fmt.Errorf("lock job row: %w", err)
	}

	from := domain.JobStage(current)
	if !domain.CanAdvance(from, to) {
		return fmt.Errorf("stage transition %s -> %s is not monotonic", from, to)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE pipeline_jobs SET stage = $2, status = $3, updated_at = $4 WHERE id = $1
`, jobID, string(to), string(domain.JobRunning), now); err != nil {
		return fmt.Errorf("update job stage: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO job_transitions (job_id, from_stage, to_stage, detail, at)
VALUES ($1,$2,$3,$4,$5)
`, jobID, string(from), string(to), detail, now); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advance tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Complete(ctx context.Context, jobID string, degraded bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT stage FROM pipeline_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrJobNotFound, "complete job", fmt.Errorf("id %s", jobID))
		}
		return fmt.Errorf("lock job row: %w", err)
	}

	from := domain.JobStage(current)
	if !domain.CanAdvance(from, domain.StageDone) {
		return fmt.Errorf("cannot complete from stage %s", from)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE pipeline_jobs SET stage = $2, status = $3, degraded = $4, updated_at = $5 WHERE id = $1
`, jobID, string(domain.StageDone), string(domain.JobDone), degraded, now); err != nil {
		return fmt.Errorf("update job done: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO job_transitions (job_id, from_stage, to_stage, detail, at)
VALUES ($1,$2,$3,$4,$5)
`, jobID, string(from), string(domain.StageDone), "", now); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Fail(ctx context.Context, jobID string, at domain.JobStage, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE pipeline_jobs
SET status = $2, failed_stage = $3, error_message = $4, updated_at = $5
WHERE id = $1 AND status NOT IN ('done', 'failed')
`, jobID, string(domain.JobFailed), string(at), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "fail job", fmt.Errorf("id %s not active", jobID))
	}
	return nil
}

func (r *JobRepository) ListTransitions(ctx context.Context, jobID string) ([]domain.StageTransition, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT job_id, from_stage, to_stage, detail, at
FROM job_transitions
WHERE job_id = $1
ORDER BY id
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.StageTransition
	for rows.Next() {
		var tr domain.StageTransition
		var from, to string
		if err := rows.Scan(&tr.JobID, &from, &to, &tr.Detail, &tr.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = domain.JobStage(from)
		tr.To = domain.JobStage(to)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}
