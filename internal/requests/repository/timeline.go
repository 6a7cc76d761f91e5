package repository

import (
	"context"
	"fmt"

	"servitec_backend/internal/requests/domain"

	"github.com/google/uuid"
)

func (r *Repository) AppendTimeline(ctx context.Context, events ...domain.TimelineEvent) error {
	for _, ev := range events {
		_, err := r.q.Exec(ctx, `INSERT INTO request_timeline_events
				(id, request_id, actor_id, actor_type, action, label, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ev.ID, ev.RequestID, ev.ActorID, string(ev.ActorType), string(ev.Action), ev.Label, ev.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append timeline event: %w", err)
		}
	}
	return nil
}

// ListTimeline returns events oldest first, in insertion order within one instant.
func (r *Repository) ListTimeline(ctx context.Context, requestID uuid.UUID) ([]domain.TimelineEvent, error) {
	rows, err := r.q.Query(ctx, `SELECT id, request_id, actor_id, actor_type, action, label, created_at
		FROM request_timeline_events WHERE request_id = $1 ORDER BY created_at ASC, seq ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var (
			ev            domain.TimelineEvent
			actor, action string
		)
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.ActorID, &actor, &action, &ev.Label, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.ActorType = domain.ActorType(actor)
		ev.Action = domain.Action(action)
		out = append(out, ev)
	}
	return out, rows.Err()
}
