// Package repository persists service requests, their matches and timeline in Postgres.
package repository

import (
	"context"
	"time"

	"servitec_backend/internal/requests/domain"

	"github.com/google/uuid"
)

// Store is the persistence contract of the requests module.
type Store interface {
	// CreateRequest inserts a request with its initial matches and timeline atomically.
	CreateRequest(ctx context.Context, req domain.Request, matches []domain.Match, timeline []domain.TimelineEvent) error
	GetRequest(ctx context.Context, id uuid.UUID) (domain.Request, error)
	ListRequestsByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Request, error)
	ListOpenRequests(ctx context.Context) ([]domain.Request, error)
	ListMissingCoordinates(ctx context.Context, limit int) ([]domain.Request, error)
	// UpdateRequest writes req only if the stored status still equals expected.
	UpdateRequest(ctx context.Context, req domain.Request, expected domain.Status) error
	SetRequestCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error

	ListMatches(ctx context.Context, requestID uuid.UUID) ([]domain.Match, error)
	ListMatchesByRequests(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Match, error)
	// InsertMatches skips pairs that already exist and returns how many rows it added.
	InsertMatches(ctx context.Context, matches []domain.Match) (int, error)
	UpdateMatch(ctx context.Context, m domain.Match) error

	AppendTimeline(ctx context.Context, events ...domain.TimelineEvent) error
	ListTimeline(ctx context.Context, requestID uuid.UUID) ([]domain.TimelineEvent, error)

	// WithinRequest runs fn with exclusive access to one request. Writes made
	// through tx commit together when fn returns nil.
	WithinRequest(ctx context.Context, requestID uuid.UUID, fn func(ctx context.Context, tx Store) error) error
}

// NewTimelineEvent stamps a timeline entry.
func NewTimelineEvent(requestID uuid.UUID, actorID *uuid.UUID, actor domain.ActorType, action domain.Action, label string, at time.Time) domain.TimelineEvent {
	return domain.TimelineEvent{
		ID:        uuid.New(),
		RequestID: requestID,
		ActorID:   actorID,
		ActorType: actor,
		Action:    action,
		Label:     TruncateLabel(label, maxLabelLength),
		CreatedAt: at,
	}
}

const maxLabelLength = 280

// TruncateLabel shortens s to at most n runes, ending with an ellipsis when cut.
func TruncateLabel(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
