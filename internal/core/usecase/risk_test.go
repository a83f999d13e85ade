package usecase

import (
	"testing"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

func riskNow() time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
}

func recordExpiring(daysFromNow int) *domain.WarrantyRecord {
	record := confidentRecord()
	expiry := riskNow().AddDate(0, 0, daysFromNow)
	record.ExpiryDate = &expiry
	return record
}

func issueEvents(n int) []domain.BehaviourEvent {
	events := make([]domain.BehaviourEvent, n)
	for i := range events {
		events[i] = domain.BehaviourEvent{Type: domain.EventIssueReported}
	}
	return events
}

func TestRiskScoreMonotonicInIssues(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())
	record := recordExpiring(365)

	prev := -1.0
	for n := 0; n <= 6; n++ {
		result := engine.Score("war-1", "user-1", record, issueEvents(n), riskNow())
		if result.Score < prev {
			t.Fatalf("score dropped when issues grew from %d: %v < %v", n-1, result.Score, prev)
		}
		prev = result.Score
	}
}

func TestRiskIssueContributionCapped(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())
	record := recordExpiring(365)

	atCap := engine.Score("war-1", "user-1", record, issueEvents(3), riskNow())
	beyond := engine.Score("war-1", "user-1", record, issueEvents(30), riskNow())
	if beyond.BehaviourDelta != atCap.BehaviourDelta {
		t.Errorf("issue contribution should cap: %v vs %v", beyond.BehaviourDelta, atCap.BehaviourDelta)
	}
}

func TestRiskCompletionsReduceScore(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())
	record := recordExpiring(20)

	quiet := engine.Score("war-1", "user-1", record, nil, riskNow())
	careful := engine.Score("war-1", "user-1", record, []domain.BehaviourEvent{
		{Type: domain.EventTaskCompleted},
		{Type: domain.EventTaskCompleted},
	}, riskNow())

	if careful.Score >= quiet.Score {
		t.Errorf("completed tasks should lower risk: %v >= %v", careful.Score, quiet.Score)
	}
}

func TestRiskBands(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())

	low := engine.Score("war-1", "user-1", recordExpiring(365), nil, riskNow())
	if low.Band != domain.BandLow {
		t.Errorf("distant expiry, quiet log: got band %q score %v, want low", low.Band, low.Score)
	}

	medium := engine.Score("war-1", "user-1", recordExpiring(20), []domain.BehaviourEvent{
		{Type: domain.EventIssueReported},
	}, riskNow())
	if medium.Band != domain.BandMedium {
		t.Errorf("imminent expiry plus one issue: got band %q score %v, want medium", medium.Band, medium.Score)
	}

	high := engine.Score("war-1", "user-1", recordExpiring(-10), append(issueEvents(3), domain.BehaviourEvent{
		Type: domain.EventNudgeDismissed,
	}), riskNow())
	if high.Band != domain.BandHigh {
		t.Errorf("elapsed coverage plus capped issues: got band %q score %v, want high", high.Band, high.Score)
	}
}

func TestRiskNilRecord(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())

	result := engine.Score("war-1", "user-1", nil, nil, riskNow())
	if result.Score <= 0 {
		t.Error("missing record raises uncertainty risk above zero")
	}
	found := false
	for _, reason := range result.Reasons {
		if reason.Code == "record_unknown" {
			found = true
		}
	}
	if !found {
		t.Errorf("record_unknown reason expected: %+v", result.Reasons)
	}
}

func TestRiskScoreBounded(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())

	worst := engine.Score("war-1", "user-1", nil, append(issueEvents(50), domain.BehaviourEvent{
		Type: domain.EventNudgeDismissed,
	}), riskNow())
	if worst.Score < 0 || worst.Score > 1 {
		t.Errorf("score out of [0,1]: %v", worst.Score)
	}
}

func TestRiskDeterministic(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())
	record := recordExpiring(30)
	events := append(issueEvents(2), domain.BehaviourEvent{Type: domain.EventTaskCompleted})

	first := engine.Score("war-1", "user-1", record, events, riskNow())
	for i := 0; i < 3; i++ {
		again := engine.Score("war-1", "user-1", record, events, riskNow())
		if again.Score != first.Score || again.Band != first.Band || len(again.Reasons) != len(first.Reasons) {
			t.Fatalf("same inputs must score identically: %+v vs %+v", again, first)
		}
	}
}

func TestRiskReasonOrderStable(t *testing.T) {
	engine := NewRiskEngine(DefaultRiskConfig())
	record := recordExpiring(10)
	events := []domain.BehaviourEvent{
		{Type: domain.EventNudgeDismissed},
		{Type: domain.EventIssueReported},
		{Type: domain.EventTaskCompleted},
	}

	result := engine.Score("war-1", "user-1", record, events, riskNow())
	want := []string{"baseline", "expiry_imminent", "issues_reported", "recent_care", "dismissed_nudges"}
	if len(result.Reasons) != len(want) {
		t.Fatalf("reason count: got %d, want %d (%+v)", len(result.Reasons), len(want), result.Reasons)
	}
	for i, code := range want {
		if result.Reasons[i].Code != code {
			t.Errorf("reason[%d]: got %q, want %q", i, result.Reasons[i].Code, code)
		}
	}
}
