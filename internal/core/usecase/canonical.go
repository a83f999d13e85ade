package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// Canonicalizer merges extractor candidates, resolved terms, and user
// overrides into one canonical warranty record. It is a pure function of
// its inputs: identical inputs produce identical records.
type Canonicalizer struct {
	confidenceThreshold float64
}

func NewCanonicalizer(confidenceThreshold float64) *Canonicalizer {
	if confidenceThreshold <= 0 || confidenceThreshold > 1 {
		confidenceThreshold = 0.5
	}
	return &Canonicalizer{confidenceThreshold: confidenceThreshold}
}

var overridableFields = map[string]bool{
	domain.FieldBrand:          true,
	domain.FieldModel:          true,
	domain.FieldSerial:         true,
	domain.FieldPurchaseDate:   true,
	domain.FieldCoverageMonths: true,
	domain.FieldInvoiceNo:      true,
}

// ValidateOverride rejects malformed overrides before any record is
// touched. Only shape/type checks; semantics stay with Canonicalize.
func ValidateOverride(field, value string) error {
	if !overridableFields[field] {
		return domain.WrapError(domain.ErrMalformedOverride, "validate override", fmt.Errorf("unknown field %q", field))
	}
	if strings.TrimSpace(value) == "" {
		return domain.WrapError(domain.ErrMalformedOverride, "validate override", fmt.Errorf("empty value for %q", field))
	}
	switch field {
	case domain.FieldPurchaseDate:
		if _, ok := parseFlexibleDate(strings.TrimSpace(value)); !ok {
			return domain.WrapError(domain.ErrMalformedOverride, "validate override", fmt.Errorf("unparseable date %q", value))
		}
	case domain.FieldCoverageMonths:
		months, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || months <= 0 || months > 600 {
			return domain.WrapError(domain.ErrMalformedOverride, "validate override", fmt.Errorf("coverage months %q out of range", value))
		}
	}
	return nil
}

// Canonicalize merges per-field values by priority: explicit override >
// extractor primary candidate > resolver default. The winning candidate
// per field is recorded in Chosen. Expiry is computed only when both
// purchase date and coverage duration clear the confidence threshold;
// otherwise it stays absent rather than guessed.
func (c *Canonicalizer) Canonicalize(
	candidates map[string]domain.FieldCandidate,
	terms *domain.TermsEntry,
	overrides map[string]string,
) (*domain.WarrantyRecord, error) {
	for field, value := range overrides {
		if err := ValidateOverride(field, value); err != nil {
			return nil, err
		}
	}

	record := &domain.WarrantyRecord{
		Chosen: make(map[string]domain.FieldCandidate),
	}

	// Deterministic merge order: sorted field names.
	fields := make([]string, 0, len(overridableFields))
	for field := range overridableFields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		chosen, ok := c.resolveField(field, candidates, terms, overrides)
		if !ok {
			continue
		}
		record.Chosen[field] = chosen
		c.assign(record, chosen)
	}

	if terms != nil {
		record.Terms = terms.Terms
		record.Exclusions = terms.Exclusions
		record.ClaimSteps = terms.ClaimSteps
	}

	c.computeExpiry(record)
	return record, nil
}

func (c *Canonicalizer) resolveField(
	field string,
	candidates map[string]domain.FieldCandidate,
	terms *domain.TermsEntry,
	overrides map[string]string,
) (domain.FieldCandidate, bool) {
	if value, ok := overrides[field]; ok {
		normalized := normalizeOverride(field, value)
		override := domain.FieldCandidate{
			Field:      field,
			Value:      normalized,
			Confidence: 1.0,
			Source:     domain.SourceOverride,
		}
		// The displaced primary survives as an alternate for audit.
		if prior, had := candidates[field]; had {
			override.Alternates = []domain.Alternate{{Value: prior.Value, Confidence: prior.Confidence}}
		}
		return override, true
	}
	if candidate, ok := candidates[field]; ok {
		return candidate, true
	}
	if field == domain.FieldCoverageMonths && terms != nil && terms.DurationMonths > 0 {
		return domain.FieldCandidate{
			Field:      field,
			Value:      strconv.Itoa(terms.DurationMonths),
			Confidence: 0.4,
			Source:     domain.SourceResolver,
		}, true
	}
	return domain.FieldCandidate{}, false
}

func normalizeOverride(field, value string) string {
	value = strings.TrimSpace(value)
	switch field {
	case domain.FieldPurchaseDate:
		if normalized, ok := normalizeDate(value); ok {
			return normalized
		}
		return value
	case domain.FieldModel, domain.FieldSerial, domain.FieldInvoiceNo:
		return strings.ToUpper(value)
	default:
		return value
	}
}

func (c *Canonicalizer) assign(record *domain.WarrantyRecord, chosen domain.FieldCandidate) {
	switch chosen.Field {
	case domain.FieldBrand:
		record.Brand = chosen.Value
	case domain.FieldModel:
		record.Model = chosen.Value
	case domain.FieldSerial:
		record.Serial = chosen.Value
	case domain.FieldInvoiceNo:
		record.InvoiceNo = chosen.Value
	case domain.FieldPurchaseDate:
		if t, ok := parseFlexibleDate(chosen.Value); ok {
			record.PurchaseDate = &t
		}
	case domain.FieldCoverageMonths:
		if months, err := strconv.Atoi(chosen.Value); err == nil && months > 0 {
			record.CoverageMonths = months
		}
	}
}

func (c *Canonicalizer) computeExpiry(record *domain.WarrantyRecord) {
	if record.PurchaseDate == nil || record.CoverageMonths <= 0 {
		return
	}
	purchase, okP := record.Chosen[domain.FieldPurchaseDate]
	coverage, okC := record.Chosen[domain.FieldCoverageMonths]
	if !okP || !okC {
		return
	}
	if purchase.Confidence < c.confidenceThreshold || coverage.Confidence < c.confidenceThreshold {
		return
	}
	expiry := domain.AddMonths(*record.PurchaseDate, record.CoverageMonths)
	record.ExpiryDate = &expiry
}

// NeedsConfirmation reports whether the record's coverage window could
// not be established, which the summary surfaces as "terms need
// confirmation".
func NeedsConfirmation(record *domain.WarrantyRecord) bool {
	return record == nil || record.ExpiryDate == nil
}
