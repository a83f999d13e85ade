package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// EventRepository persists the append-only behaviour log. There is no
// update or delete path on purpose.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, event *domain.BehaviourEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO behaviour_events (id, user_id, warranty_id, type, at)
VALUES ($1,$2,$3,$4,$5)
`, event.ID, event.UserID, event.WarrantyID, string(event.Type), event.At)
	if err != nil {
		return fmt.Errorf("insert behaviour event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListByWarranty(ctx context.Context, warrantyID, userID string) ([]domain.BehaviourEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, warranty_id, type, at
FROM behaviour_events
WHERE warranty_id = $1 AND user_id = $2
ORDER BY at
`, warrantyID, userID)
	if err != nil {
		return nil, fmt.Errorf("query behaviour events: %w", err)
	}
	defer rows.Close()

	var out []domain.BehaviourEvent
	for rows.Next() {
		var event domain.BehaviourEvent
		var eventType string
		if err := rows.Scan(&event.ID, &event.UserID, &event.WarrantyID, &eventType, &event.At); err != nil {
			return nil, fmt.Errorf("scan behaviour event: %w", err)
		}
		event.Type = domain.EventType(eventType)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate behaviour events: %w", err)
	}
	return out, nil
}
