package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// RecordEventUseCase appends behaviour events to the append-only log.
type RecordEventUseCase struct {
	events ports.EventRepository
	now    ports.Clock
}

func NewRecordEventUseCase(events ports.EventRepository, now ports.Clock) *RecordEventUseCase {
	if now == nil {
		now = time.Now
	}
	return &RecordEventUseCase{events: events, now: now}
}

func (uc *RecordEventUseCase) Record(ctx context.Context, userID, warrantyID string, eventType domain.EventType) (*domain.BehaviourEvent, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(warrantyID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "record event", fmt.Errorf("user id and warranty id are required"))
	}
	event := &domain.BehaviourEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		WarrantyID: warrantyID,
		Type:       eventType,
		At:         uc.now().UTC(),
	}
	if err := uc.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append behaviour event: %w", err)
	}
	return event, nil
}

// AssessUseCase derives risk and advisories on demand from the current
// canonical record plus a snapshot of the behaviour log. It never fails
// outward on missing data: an absent record becomes explicit unknown
// contributions in the score.
type AssessUseCase struct {
	warranties ports.WarrantyRepository
	events     ports.EventRepository
	risk       *RiskEngine
	advisories *AdvisoryEngine
	now        ports.Clock
}

func NewAssessUseCase(
	warranties ports.WarrantyRepository,
	events ports.EventRepository,
	risk *RiskEngine,
	advisories *AdvisoryEngine,
	now ports.Clock,
) *AssessUseCase {
	if now == nil {
		now = time.Now
	}
	return &AssessUseCase{
		warranties: warranties,
		events:     events,
		risk:       risk,
		advisories: advisories,
		now:        now,
	}
}

func (uc *AssessUseCase) Risk(ctx context.Context, warrantyID, userID string) (*domain.RiskResult, error) {
	record, events := uc.snapshot(ctx, warrantyID, userID)
	return uc.risk.Score(warrantyID, userID, record, events, uc.now().UTC()), nil
}

func (uc *AssessUseCase) Advisories(ctx context.Context, warrantyID, userID string) (*domain.AdvisoryBundle, error) {
	record, events := uc.snapshot(ctx, warrantyID, userID)
	now := uc.now().UTC()
	risk := uc.risk.Score(warrantyID, userID, record, events, now)
	return uc.advisories.Advisories(record, risk, now), nil
}

func (uc *AssessUseCase) snapshot(ctx context.Context, warrantyID, userID string) (*domain.WarrantyRecord, []domain.BehaviourEvent) {
	record, err := uc.warranties.GetLatest(ctx, warrantyID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrWarrantyNotFound) {
			slog.Warn("risk_record_read_failed", "warranty_id", warrantyID, "error", err)
		}
		record = nil
	}
	events, err := uc.events.ListByWarranty(ctx, warrantyID, userID)
	if err != nil {
		slog.Warn("risk_events_read_failed", "warranty_id", warrantyID, "error", err)
		events = nil
	}
	return record, events
}
