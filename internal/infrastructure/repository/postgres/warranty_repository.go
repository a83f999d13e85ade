package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

type WarrantyRepository struct {
	db *sql.DB
}

func NewWarrantyRepository(db *sql.DB) *WarrantyRepository {
	return &WarrantyRepository{db: db}
}

// SaveVersion appends the next record version. Versions are assigned
// inside a transaction; concurrent writers for the same warranty
// serialize on the primary key.
func (r *WarrantyRepository) SaveVersion(ctx context.Context, record *domain.WarrantyRecord) error {
	termsJSON, err := json.Marshal(record.Terms)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}
	exclusionsJSON, err := json.Marshal(record.Exclusions)
	if err != nil {
		return fmt.Errorf("marshal exclusions: %w", err)
	}
	stepsJSON, err := json.Marshal(record.ClaimSteps)
	if err != nil {
		return fmt.Errorf("marshal claim steps: %w", err)
	}
	chosenJSON, err := json.Marshal(record.Chosen)
	if err != nil {
		return fmt.Errorf("marshal chosen fields: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var version int
	err = tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(version), 0) + 1 FROM warranty_records WHERE warranty_id = $1
`, record.ID).Scan(&version)
	if err != nil {
		return fmt.Errorf("next version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO warranty_records (
	warranty_id, version, artifact_id, brand, model, serial, invoice_no,
	purchase_date, coverage_months, expiry_date, terms, exclusions, claim_steps, chosen, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		record.ID, version, record.ArtifactID, record.Brand, record.Model, record.Serial, record.InvoiceNo,
		record.PurchaseDate, record.CoverageMonths, record.ExpiryDate,
		termsJSON, exclusionsJSON, stepsJSON, chosenJSON, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version tx: %w", err)
	}
	record.Version = version
	return nil
}

func (r *WarrantyRepository) GetLatest(ctx context.Context, warrantyID string) (*domain.WarrantyRecord, error) {
	return r.scanRecord(r.db.QueryRowContext(ctx, `
SELECT warranty_id, version, artifact_id, brand, model, serial, invoice_no,
	purchase_date, coverage_months, expiry_date, terms, exclusions, claim_steps, chosen, created_at
FROM warranty_records
WHERE warranty_id = $1
ORDER BY version DESC
LIMIT 1
`, warrantyID), warrantyID)
}

// GetMostConfident picks the version whose weakest chosen field has the
// highest confidence, breaking ties toward the newer version.
func (r *WarrantyRepository) GetMostConfident(ctx context.Context, warrantyID string) (*domain.WarrantyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT warranty_id, version, artifact_id, brand, model, serial, invoice_no,
	purchase_date, coverage_months, expiry_date, terms, exclusions, claim_steps, chosen, created_at
FROM warranty_records
WHERE warranty_id = $1
ORDER BY version
`, warrantyID)
	if err != nil {
		return nil, fmt.Errorf("query record versions: %w", err)
	}
	defer rows.Close()

	var best *domain.WarrantyRecord
	for rows.Next() {
		record, err := r.scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		if best == nil || record.MinConfidence() >= best.MinConfidence() {
			best = record
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record versions: %w", err)
	}
	if best == nil {
		return nil, domain.WrapError(domain.ErrWarrantyNotFound, "get most confident record", fmt.Errorf("id %s", warrantyID))
	}
	return best, nil
}

func (r *WarrantyRepository) SaveParsedFields(ctx context.Context, jobID, warrantyID string, candidates map[string]domain.FieldCandidate, rawText string) error {
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO parsed_fields (job_id, warranty_id, candidates, raw_text, created_at)
VALUES ($1,$2,$3,$4,$5)
`, jobID, warrantyID, candidatesJSON, rawText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert parsed fields: %w", err)
	}
	return nil
}

// GetParsedFields returns the extractor output of the most recent run,
// the pristine input for any re-canonicalization.
func (r *WarrantyRepository) GetParsedFields(ctx context.Context, warrantyID string) (map[string]domain.FieldCandidate, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT candidates FROM parsed_fields
WHERE warranty_id = $1
ORDER BY created_at DESC
LIMIT 1
`, warrantyID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]domain.FieldCandidate{}, nil
		}
		return nil, fmt.Errorf("scan parsed fields: %w", err)
	}

	out := make(map[string]domain.FieldCandidate)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	return out, nil
}

func (r *WarrantyRepository) SaveSummary(ctx context.Context, summary *domain.WarrantySummary) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO warranty_summaries (warranty_id, text, source, created_at)
VALUES ($1,$2,$3,$4)
`, summary.WarrantyID, summary.Text, summary.Source, summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (r *WarrantyRepository) GetLatestSummary(ctx context.Context, warrantyID string) (*domain.WarrantySummary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT warranty_id, text, source, created_at
FROM warranty_summaries
WHERE warranty_id = $1
ORDER BY created_at DESC
LIMIT 1
`, warrantyID)

	var summary domain.WarrantySummary
	err := row.Scan(&summary.WarrantyID, &summary.Text, &summary.Source, &summary.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrWarrantyNotFound, "get summary", fmt.Errorf("id %s", warrantyID))
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	return &summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WarrantyRepository) scanRecord(row *sql.Row, warrantyID string) (*domain.WarrantyRecord, error) {
	record, err := scanWarrantyRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrWarrantyNotFound, "get record", fmt.Errorf("id %s", warrantyID))
		}
		return nil, err
	}
	return record, nil
}

func (r *WarrantyRepository) scanRecordRows(rows *sql.Rows) (*domain.WarrantyRecord, error) {
	return scanWarrantyRecord(rows)
}

func scanWarrantyRecord(scanner rowScanner) (*domain.WarrantyRecord, error) {
	var record domain.WarrantyRecord
	var purchase, expiry sql.NullTime
	var termsRaw, exclusionsRaw, stepsRaw, chosenRaw []byte

	err := scanner.Scan(
		&record.ID, &record.Version, &record.ArtifactID, &record.Brand, &record.Model,
		&record.Serial, &record.InvoiceNo, &purchase, &record.CoverageMonths, &expiry,
		&termsRaw, &exclusionsRaw, &stepsRaw, &chosenRaw, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if purchase.Valid {
		t := purchase.Time.UTC()
		record.PurchaseDate = &t
	}
	if expiry.Valid {
		t := expiry.Time.UTC()
		record.ExpiryDate = &t
	}
	if err := json.Unmarshal(termsRaw, &record.Terms); err != nil {
		return nil, fmt.Errorf("unmarshal terms: %w", err)
	}
	if err := json.Unmarshal(exclusionsRaw, &record.Exclusions); err != nil {
		return nil, fmt.Errorf("unmarshal exclusions: %w", err)
	}
	if err := json.Unmarshal(stepsRaw, &record.ClaimSteps); err != nil {
		return nil, fmt.Errorf("unmarshal claim steps: %w", err)
	}
	if err := json.Unmarshal(chosenRaw, &record.Chosen); err != nil {
		return nil, fmt.Errorf("unmarshal chosen fields: %w", err)
	}
	return &record, nil
}
