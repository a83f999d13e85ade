package domain

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventNudgeDismissed EventType = "nudge_dismissed"
	EventTaskCompleted  EventType = "task_completed"
	EventIssueReported  EventType = "issue_reported"
)

func ParseEventType(raw string) (EventType, error) {
	switch EventType(strings.ToLower(strings.TrimSpace(raw))) {
	case EventNudgeDismissed:
		return EventNudgeDismissed, nil
	case EventTaskCompleted:
		return EventTaskCompleted, nil
	case EventIssueReported:
		return EventIssueReported, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse event type", fmt.Errorf("unknown event type %q", raw))
	}
}

// BehaviourEvent is one append-only log entry. Never mutated or deleted.
type BehaviourEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	WarrantyID string    `json:"warranty_id"`
	Type       EventType `json:"type"`
	At         time.Time `json:"at"`
}

type RiskBand string

const (
	BandLow    RiskBand = "low"
	BandMedium RiskBand = "medium"
	BandHigh   RiskBand = "high"
)

// RiskReason is one contributing factor, ordered for explainability.
type RiskReason struct {
	Code   string  `json:"code"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

type RiskResult struct {
	WarrantyID     string       `json:"warranty_id"`
	UserID         string       `json:"user_id"`
	Score          float64      `json:"score"`
	BaseScore      float64      `json:"base_score"`
	BehaviourDelta float64      `json:"behaviour_delta"`
	Band           RiskBand     `json:"band"`
	Reasons        []RiskReason `json:"reasons"`
	ComputedAt     time.Time    `json:"computed_at"`
}

type AdvisoryKind string

const (
	AdvisoryExpiryReminder   AdvisoryKind = "expiry_reminder"
	AdvisoryRiskBehaviour    AdvisoryKind = "risk_behaviour"
	AdvisoryPreventiveCare   AdvisoryKind = "preventive_care"
	AdvisoryCoverageSnapshot AdvisoryKind = "coverage_snapshot"
)

// Advisory is one prioritized guidance item. Lower priority sorts first.
type Advisory struct {
	Kind     AdvisoryKind `json:"kind"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Reason   string       `json:"reason"`
	Priority int          `json:"priority"`
	Actions  []string     `json:"actions,omitempty"`
}

// AdvisoryBundle is derived state: regenerable from the canonical record,
// the behaviour log, and configuration alone.
type AdvisoryBundle struct {
	WarrantyID  string     `json:"warranty_id"`
	Band        RiskBand   `json:"band"`
	Advisories  []Advisory `json:"advisories"`
	GeneratedAt time.Time  `json:"generated_at"`
}
