package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// RiskConfig carries band thresholds and the expiry lookahead window.
// Thresholds are configuration, never hard-coded per call.
type RiskConfig struct {
	LowMax        float64
	MediumMax     float64
	LookaheadDays int
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{LowMax: 0.34, MediumMax: 0.67, LookaheadDays: 60}
}

func (c RiskConfig) normalize() RiskConfig {
	out := c
	def := DefaultRiskConfig()
	if out.LowMax <= 0 || out.LowMax >= 1 {
		out.LowMax = def.LowMax
	}
	if out.MediumMax <= out.LowMax || out.MediumMax >= 1 {
		out.MediumMax = def.MediumMax
	}
	if out.LookaheadDays <= 0 {
		out.LookaheadDays = def.LookaheadDays
	}
	return out
}

// Base score contributions. Missing data raises uncertainty-risk;
// a known, distant expiry relieves it.
const (
	riskBaseline        = 0.20
	expiryElapsedBump   = 0.30
	expiryImminentBump  = 0.25
	expiryKnownRelief   = -0.05
	expiryUnknownBump   = 0.15
	coverageUnknownBump = 0.10
	purchaseUnknownBump = 0.05
)

// Behaviour contributions, each capped so the fold over the event log
// stays bounded and monotonic in event count.
const (
	issueReportedEach = 0.10
	issueReportedCap  = 0.30
	taskCompletedEach = -0.03
	taskCompletedCap  = -0.15
	nudgeDismissedEach = 0.05
	nudgeDismissedCap  = 0.25
)

// RiskEngine folds the canonical record and the behaviour log into a
// clamped [0,1] score with ordered, explainable reasons. It never
// returns an error: absent data becomes explicit unknown contributions.
type RiskEngine struct {
	cfg RiskConfig
}

func NewRiskEngine(cfg RiskConfig) *RiskEngine {
	return &RiskEngine{cfg: cfg.normalize()}
}

func (e *RiskEngine) Score(
	warrantyID, userID string,
	record *domain.WarrantyRecord,
	events []domain.BehaviourEvent,
	now time.Time,
) *domain.RiskResult {
	base := riskBaseline
	reasons := []domain.RiskReason{{Code: "baseline", Weight: riskBaseline}}

	addBase := func(code string, weight float64, detail string) {
		base += weight
		reasons = append(reasons, domain.RiskReason{Code: code, Weight: weight, Detail: detail})
	}

	switch {
	case record == nil:
		addBase("record_unknown", expiryUnknownBump+coverageUnknownBump, "no canonical record available")
	case record.ExpiryDate == nil:
		addBase("expiry_unknown", expiryUnknownBump, "coverage window not established")
	default:
		daysLeft := int(record.ExpiryDate.Sub(now).Hours() / 24)
		switch {
		case daysLeft < 0:
			addBase("expiry_elapsed", expiryElapsedBump, fmt.Sprintf("coverage ended %d days ago", -daysLeft))
		case daysLeft <= e.cfg.LookaheadDays:
			addBase("expiry_imminent", expiryImminentBump, fmt.Sprintf("coverage ends in %d days", daysLeft))
		default:
			addBase("expiry_known", expiryKnownRelief, fmt.Sprintf("coverage ends in %d days", daysLeft))
		}
	}
	if record != nil && record.CoverageMonths <= 0 {
		addBase("coverage_unknown", coverageUnknownBump, "coverage duration missing")
	}
	if record != nil && record.PurchaseDate == nil {
		addBase("purchase_date_unknown", purchaseUnknownBump, "purchase date missing")
	}

	base = clamp01(base)

	var issues, completions, dismissals int
	for _, event := range events {
		switch event.Type {
		case domain.EventIssueReported:
			issues++
		case domain.EventTaskCompleted:
			completions++
		case domain.EventNudgeDismissed:
			dismissals++
		}
	}

	delta := 0.0
	if issues > 0 {
		w := math.Min(float64(issues)*issueReportedEach, issueReportedCap)
		delta += w
		reasons = append(reasons, domain.RiskReason{
			Code: "issues_reported", Weight: w,
			Detail: fmt.Sprintf("%d issue report(s) logged", issues),
		})
	}
	if completions > 0 {
		w := math.Max(float64(completions)*taskCompletedEach, taskCompletedCap)
		delta += w
		reasons = append(reasons, domain.RiskReason{
			Code: "recent_care", Weight: w,
			Detail: fmt.Sprintf("%d maintenance task(s) completed", completions),
		})
	}
	if dismissals > 0 {
		w := math.Min(float64(dismissals)*nudgeDismissedEach, nudgeDismissedCap)
		delta += w
		reasons = append(reasons, domain.RiskReason{
			Code: "dismissed_nudges", Weight: w,
			Detail: fmt.Sprintf("%d nudge(s) dismissed", dismissals),
		})
	}

	score := clamp01(base + delta)

	return &domain.RiskResult{
		WarrantyID:     warrantyID,
		UserID:         userID,
		Score:          round2(score),
		BaseScore:      round2(base),
		BehaviourDelta: round2(delta),
		Band:           e.band(score),
		Reasons:        reasons,
		ComputedAt:     now.UTC(),
	}
}

func (e *RiskEngine) band(score float64) domain.RiskBand {
	switch {
	case score < e.cfg.LowMax:
		return domain.BandLow
	case score < e.cfg.MediumMax:
		return domain.BandMedium
	default:
		return domain.BandHigh
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
