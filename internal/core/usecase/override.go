package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// ApplyOverrideUseCase applies a caller-supplied field correction by
// re-canonicalizing against the pristine extractor output, producing a
// new record version. Prior versions are never destroyed. A malformed
// override is rejected before anything is touched.
type ApplyOverrideUseCase struct {
	warranties ports.WarrantyRepository
	canonical  *Canonicalizer
	now        ports.Clock
}

func NewApplyOverrideUseCase(warranties ports.WarrantyRepository, canonical *Canonicalizer, now ports.Clock) *ApplyOverrideUseCase {
	if now == nil {
		now = time.Now
	}
	return &ApplyOverrideUseCase{
		warranties: warranties,
		canonical:  canonical,
		now:        now,
	}
}

func (uc *ApplyOverrideUseCase) Apply(ctx context.Context, warrantyID, field, value, userID string) (*domain.WarrantyRecord, error) {
	if err := ValidateOverride(field, value); err != nil {
		return nil, err
	}

	latest, err := uc.warranties.GetLatest(ctx, warrantyID)
	if err != nil {
		return nil, fmt.Errorf("fetch latest record: %w", err)
	}

	candidates, err := uc.warranties.GetParsedFields(ctx, warrantyID)
	if err != nil {
		return nil, fmt.Errorf("fetch parsed fields: %w", err)
	}

	// Earlier overrides survive a new correction; the new value wins only
	// for its own field.
	overrides := make(map[string]string)
	for name, chosen := range latest.Chosen {
		if chosen.Source == domain.SourceOverride {
			overrides[name] = chosen.Value
		}
	}
	overrides[field] = value

	record, err := uc.canonical.Canonicalize(candidates, termsFromRecord(latest), overrides)
	if err != nil {
		return nil, err
	}
	record.ID = warrantyID
	record.ArtifactID = latest.ArtifactID
	record.CreatedAt = uc.now().UTC()

	if err := uc.warranties.SaveVersion(ctx, record); err != nil {
		return nil, fmt.Errorf("save record version: %w", err)
	}
	return record, nil
}

// termsFromRecord reconstructs the resolved-terms view embedded in an
// existing record so re-canonicalization does not need a fresh lookup.
func termsFromRecord(record *domain.WarrantyRecord) *domain.TermsEntry {
	entry := &domain.TermsEntry{
		Brand:      record.Brand,
		Model:      record.Model,
		Terms:      record.Terms,
		Exclusions: record.Exclusions,
		ClaimSteps: record.ClaimSteps,
	}
	if chosen, ok := record.Chosen[domain.FieldCoverageMonths]; ok && chosen.Source == domain.SourceResolver {
		entry.DurationMonths = record.CoverageMonths
	}
	return entry
}
