package usecase

import (
	"fmt"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// Advisory priorities; lower sorts first. Expiry pressure always
// outranks behaviour, which outranks preventive care, which outranks the
// informational snapshot.
const (
	priorityExpiry     = 10
	priorityBehaviour  = 20
	priorityPreventive = 30
	prioritySnapshot   = 40
)

// AdvisoryEngine derives a prioritized advisory bundle from the canonical
// record and a risk result. Given identical inputs and configuration the
// bundle is byte-identical: no randomness, no clock reads beyond the
// explicit now.
type AdvisoryEngine struct {
	lookaheadDays int
}

func NewAdvisoryEngine(lookaheadDays int) *AdvisoryEngine {
	if lookaheadDays <= 0 {
		lookaheadDays = 60
	}
	return &AdvisoryEngine{lookaheadDays: lookaheadDays}
}

func (e *AdvisoryEngine) Advisories(
	record *domain.WarrantyRecord,
	risk *domain.RiskResult,
	now time.Time,
) *domain.AdvisoryBundle {
	bundle := &domain.AdvisoryBundle{
		WarrantyID:  risk.WarrantyID,
		Band:        risk.Band,
		GeneratedAt: now.UTC(),
	}

	if record != nil && record.ExpiryDate != nil {
		daysLeft := int(record.ExpiryDate.Sub(now).Hours() / 24)
		if daysLeft >= 0 && daysLeft <= e.lookaheadDays {
			bundle.Advisories = append(bundle.Advisories, domain.Advisory{
				Kind:     domain.AdvisoryExpiryReminder,
				Title:    "Expiry Reminder",
				Message:  fmt.Sprintf("Warranty ends in %d days. Capture proofs and run checks now.", daysLeft),
				Reason:   "near-expiry coverage window",
				Priority: priorityExpiry,
				Actions: []string{
					"Save invoice and serial details.",
					"Run self-checks and log outputs for any claim.",
				},
			})
		}
	}

	if risk.Band == domain.BandHigh && risk.BehaviourDelta > 0 {
		bundle.Advisories = append(bundle.Advisories, domain.Advisory{
			Kind:     domain.AdvisoryRiskBehaviour,
			Title:    "Recent Issues Raise Risk",
			Message:  "Logged issues pushed the risk estimate up. Address open problems before they escalate.",
			Reason:   "behaviour log raised the risk score",
			Priority: priorityBehaviour,
			Actions: []string{
				"Review reported issues and capture evidence.",
				"Contact support while coverage applies.",
			},
		})
	}

	if risk.Band != domain.BandLow {
		bundle.Advisories = append(bundle.Advisories, domain.Advisory{
			Kind:     domain.AdvisoryPreventiveCare,
			Title:    "Preventive Care",
			Message:  "Complete quick maintenance steps to keep failure risk down.",
			Reason:   "risk band indicates elevated probability",
			Priority: priorityPreventive,
			Actions: []string{
				"Acknowledge or complete pending maintenance tasks.",
				"Capture photos or logs if you notice anomalies.",
			},
		})
	}

	// The coverage snapshot is always present so the caller can render a
	// plain-language dashboard even for a quiet warranty.
	bundle.Advisories = append(bundle.Advisories, domain.Advisory{
		Kind:     domain.AdvisoryCoverageSnapshot,
		Title:    "Warranty Snapshot",
		Message:  snapshotMessage(record),
		Reason:   "plain-language coverage overview",
		Priority: prioritySnapshot,
		Actions:  snapshotActions(record),
	})

	return bundle
}

func snapshotMessage(record *domain.WarrantyRecord) string {
	if record == nil {
		return "No canonical record yet. Upload an invoice or label to build one."
	}
	if NeedsConfirmation(record) {
		return "Coverage and exclusions captured, but the coverage window still needs confirmation."
	}
	return "Coverage and exclusions ready in one place for quick claims."
}

func snapshotActions(record *domain.WarrantyRecord) []string {
	if record == nil {
		return []string{"Upload an invoice to start coverage tracking."}
	}
	actions := []string{"Review coverage and exclusions now."}
	if record.InvoiceNo == "" {
		actions = append(actions, "Upload invoice if missing.")
	}
	if NeedsConfirmation(record) {
		actions = append(actions, "Confirm purchase date and coverage duration.")
	}
	return actions
}
