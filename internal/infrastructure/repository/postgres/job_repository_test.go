package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

func newJobRepoWithMock(t *testing.T) (*JobRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &JobRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateExclusiveMapsUniqueViolationToDuplicateJob(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO pipeline_jobs").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.CreateExclusive(context.Background(), &domain.PipelineJob{
		ID: "job-2", ArtifactID: "art-1", WarrantyID: "war-1",
		Stage: domain.StageUploaded, Status: domain.JobPending,
	})
	if !domain.IsKind(err, domain.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, artifact_id, warranty_id, stage").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdvanceRejectsBackwardsTransition(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stage FROM pipeline_jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"stage"}).AddRow("terms_lookup"))
	mock.ExpectRollback()

	err := repo.Advance(context.Background(), "job-1", domain.StageExtractingText, "")
	if err == nil {
		t.Fatal("backwards transition must be rejected")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdvanceWritesStageAndTransition(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stage FROM pipeline_jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"stage"}).AddRow("uploaded"))
	mock.ExpectExec("UPDATE pipeline_jobs SET stage").
		WithArgs("job-1", "extracting_text", "running", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO job_transitions").
		WithArgs("job-1", "uploaded", "extracting_text", "direct", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Advance(context.Background(), "job-1", domain.StageExtractingText, "direct"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFailReturnsNotFoundWhenNoActiveRow(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE pipeline_jobs").
		WithArgs("missing", "failed", "extracting_text", "no text", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Fail(context.Background(), "missing", domain.StageExtractingText, "no text")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
