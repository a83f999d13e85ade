package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// TermsCacheRepository caches resolved coverage terms keyed by
// brand+model. A miss is (nil, nil); staleness is the resolver's call.
type TermsCacheRepository struct {
	db *sql.DB
}

func NewTermsCacheRepository(db *sql.DB) *TermsCacheRepository {
	return &TermsCacheRepository{db: db}
}

func (r *TermsCacheRepository) Get(ctx context.Context, brand, model string) (*domain.TermsEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT entry FROM terms_cache WHERE brand = $1 AND model = $2
`, brand, model)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan terms entry: %w", err)
	}

	var entry domain.TermsEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal terms entry: %w", err)
	}
	return &entry, nil
}

func (r *TermsCacheRepository) Put(ctx context.Context, entry *domain.TermsEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal terms entry: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO terms_cache (brand, model, entry, fetched_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (brand, model) DO UPDATE SET entry = $3, fetched_at = $4
`, entry.Brand, entry.Model, raw, entry.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert terms entry: %w", err)
	}
	return nil
}
