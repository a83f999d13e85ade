package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

func TestTermsCacheGetMissIsNilNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewTermsCacheRepository(db)

	mock.ExpectQuery("SELECT entry FROM terms_cache").
		WithArgs("AcmeCo", "WM-900").
		WillReturnError(sql.ErrNoRows)

	entry, err := repo.Get(context.Background(), "AcmeCo", "WM-900")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Fatalf("entry = %+v, want nil on cache miss", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTermsCacheGetDecodesEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewTermsCacheRepository(db)

	raw := `{"brand":"AcmeCo","model":"WM-900","duration_months":24,"source":"resolver"}`
	mock.ExpectQuery("SELECT entry FROM terms_cache").
		WithArgs("AcmeCo", "WM-900").
		WillReturnRows(sqlmock.NewRows([]string{"entry"}).AddRow([]byte(raw)))

	entry, err := repo.Get(context.Background(), "AcmeCo", "WM-900")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil || entry.DurationMonths != 24 || entry.Source != "resolver" {
		t.Fatalf("entry = %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTermsCachePutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewTermsCacheRepository(db)

	mock.ExpectExec("INSERT INTO terms_cache").
		WithArgs("AcmeCo", "WM-900", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &domain.TermsEntry{
		Brand:          "AcmeCo",
		Model:          "WM-900",
		DurationMonths: 24,
		Source:         "resolver",
		FetchedAt:      time.Now().UTC(),
	}
	if err := repo.Put(context.Background(), entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
