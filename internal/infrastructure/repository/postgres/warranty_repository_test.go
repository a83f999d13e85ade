package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

func newWarrantyRepoWithMock(t *testing.T) (*WarrantyRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &WarrantyRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveVersionAssignsNextVersion(t *testing.T) {
	repo, mock, done := newWarrantyRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) \+ 1`).
		WithArgs("war-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec("INSERT INTO warranty_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &domain.WarrantyRecord{
		ID:         "war-1",
		ArtifactID: "art-1",
		Brand:      "AcmeCo",
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.SaveVersion(context.Background(), record); err != nil {
		t.Fatalf("save version: %v", err)
	}
	if record.Version != 3 {
		t.Fatalf("version = %d, want 3", record.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLatestReturnsWarrantyNotFound(t *testing.T) {
	repo, mock, done := newWarrantyRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT warranty_id, version").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatest(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrWarrantyNotFound) {
		t.Fatalf("expected ErrWarrantyNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMostConfidentEmptySetNotFound(t *testing.T) {
	repo, mock, done := newWarrantyRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT warranty_id, version").
		WithArgs("war-9").
		WillReturnRows(sqlmock.NewRows([]string{
			"warranty_id", "version", "artifact_id", "brand", "model", "serial", "invoice_no",
			"purchase_date", "coverage_months", "expiry_date", "terms", "exclusions", "claim_steps", "chosen", "created_at",
		}))

	_, err := repo.GetMostConfident(context.Background(), "war-9")
	if !domain.IsKind(err, domain.ErrWarrantyNotFound) {
		t.Fatalf("expected ErrWarrantyNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetParsedFieldsMissReturnsEmptyMap(t *testing.T) {
	repo, mock, done := newWarrantyRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT candidates FROM parsed_fields").
		WithArgs("war-1").
		WillReturnError(sql.ErrNoRows)

	fields, err := repo.GetParsedFields(context.Background(), "war-1")
	if err != nil {
		t.Fatalf("get parsed fields: %v", err)
	}
	if fields == nil || len(fields) != 0 {
		t.Fatalf("fields = %v, want empty map", fields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLatestSummaryMapsMissToNotFound(t *testing.T) {
	repo, mock, done := newWarrantyRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT warranty_id, text, source").
		WithArgs("war-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatestSummary(context.Background(), "war-1")
	if !domain.IsKind(err, domain.ErrWarrantyNotFound) {
		t.Fatalf("expected ErrWarrantyNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
