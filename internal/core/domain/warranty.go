package domain

import "time"

type CandidateSource string

const (
	SourceRegex    CandidateSource = "regex"
	SourceOCR      CandidateSource = "ocr"
	SourceOverride CandidateSource = "override"
	SourceResolver CandidateSource = "resolver"
)

// Canonical field names the extractor and canonicalizer agree on.
const (
	FieldBrand          = "brand"
	FieldModel          = "model"
	FieldSerial         = "serial"
	FieldPurchaseDate   = "purchase_date"
	FieldCoverageMonths = "coverage_months"
	FieldInvoiceNo      = "invoice_no"
)

// Alternate is a lower-confidence competing value retained alongside the
// primary candidate for a field.
type Alternate struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FieldCandidate is one extracted value. Never mutated after creation;
// corrections create a new candidate with source=override.
type FieldCandidate struct {
	Field      string          `json:"field"`
	Value      string          `json:"value"`
	Confidence float64         `json:"confidence"`
	Source     CandidateSource `json:"source"`
	Alternates []Alternate     `json:"alternates,omitempty"`
}

// TermsEntry is resolved warranty coverage terms for a brand+model pair.
type TermsEntry struct {
	Brand          string    `json:"brand"`
	Model          string    `json:"model"`
	DurationMonths int       `json:"duration_months"`
	Terms          []string  `json:"terms"`
	Exclusions     []string  `json:"exclusions"`
	ClaimSteps     []string  `json:"claim_steps"`
	SourceURL      string    `json:"source_url,omitempty"`
	Source         string    `json:"source"` // "lookup" or "fallback"
	FetchedAt      time.Time `json:"fetched_at"`
}

// Fresh reports whether the cache entry is still inside its TTL window.
// Fallback entries count too: a cached failure bounds the retry rate.
func (e *TermsEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) <= ttl
}

// WarrantyRecord is the merged, confidence-resolved canonical warranty
// data. Versions are append-only; the Canonicalizer is the only writer.
type WarrantyRecord struct {
	ID             string                    `json:"id"`
	Version        int                       `json:"version"`
	Brand          string                    `json:"brand,omitempty"`
	Model          string                    `json:"model,omitempty"`
	Serial         string                    `json:"serial,omitempty"`
	InvoiceNo      string                    `json:"invoice_no,omitempty"`
	PurchaseDate   *time.Time                `json:"purchase_date,omitempty"`
	CoverageMonths int                       `json:"coverage_months,omitempty"`
	ExpiryDate     *time.Time                `json:"expiry_date,omitempty"`
	Terms          []string                  `json:"terms,omitempty"`
	Exclusions     []string                  `json:"exclusions,omitempty"`
	ClaimSteps     []string                  `json:"claim_steps,omitempty"`
	Chosen         map[string]FieldCandidate `json:"chosen"`
	ArtifactID     string                    `json:"artifact_id,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// MinConfidence returns the smallest confidence among chosen fields, or
// zero when nothing was resolved. Used for "most confident" version picks.
func (r *WarrantyRecord) MinConfidence() float64 {
	if len(r.Chosen) == 0 {
		return 0
	}
	min := 1.0
	for _, c := range r.Chosen {
		if c.Confidence < min {
			min = c.Confidence
		}
	}
	return min
}

// WarrantySummary is one generated human-readable summary, stored with
// the renderer that produced it.
type WarrantySummary struct {
	WarrantyID string    `json:"warranty_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"` // "template" or "ollama"
	CreatedAt  time.Time `json:"created_at"`
}

// AddMonths advances a date by whole calendar months, clamping the day to
// the last day of the target month.
func AddMonths(d time.Time, months int) time.Time {
	year := d.Year() + (int(d.Month())-1+months)/12
	month := time.Month((int(d.Month())-1+months)%12 + 1)
	day := d.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, d.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
