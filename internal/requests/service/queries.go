package service

import (
	"context"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
)

// List returns the caller's requests, newest first, each with its matches.
func (s *Service) List(ctx context.Context, actor Actor) ([]transport.RequestResponse, error) {
	reqs, matches, err := s.listOwned(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.RequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRequestResponse(r, matches[r.ID]))
	}
	return out, nil
}

func (s *Service) listOwned(ctx context.Context, clientID uuid.UUID) ([]domain.Request, map[uuid.UUID][]domain.Match, error) {
	reqs, err := s.store.ListRequestsByClient(ctx, clientID)
	if err != nil {
		return nil, nil, apperr.Store("list requests", err)
	}
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	matches, err := s.store.ListMatchesByRequests(ctx, ids)
	if err != nil {
		return nil, nil, apperr.Store("list matches", err)
	}
	return reqs, matches, nil
}

// Workspace is every request of the caller plus each technician they have
// come across, deduplicated.
func (s *Service) Workspace(ctx context.Context, actor Actor) (transport.WorkspaceResponse, error) {
	reqs, matches, err := s.listOwned(ctx, actor.ID)
	if err != nil {
		return transport.WorkspaceResponse{}, err
	}

	out := transport.WorkspaceResponse{
		Requests:    make([]transport.RequestResponse, 0, len(reqs)),
		Technicians: make([]transport.KnownTechnicianResponse, 0),
	}
	seen := make(map[uuid.UUID]bool)
	know := func(t transport.KnownTechnicianResponse) {
		if seen[t.ID] {
			return
		}
		seen[t.ID] = true
		out.Technicians = append(out.Technicians, t)
	}

	for _, r := range reqs {
		ms := matches[r.ID]
		out.Requests = append(out.Requests, toRequestResponse(r, ms))
		for _, m := range ms {
			know(transport.KnownTechnicianResponse{
				ID: m.TechnicianID, Name: m.TechnicianName, Phone: m.TechnicianPhone,
				Specialty: m.Specialty, City: m.City, Rating: m.Rating,
			})
		}
		for _, ref := range []*domain.TechnicianRef{r.Assigned, r.Target} {
			if ref != nil {
				know(transport.KnownTechnicianResponse{ID: ref.ID, Name: ref.Name, Phone: ref.Phone})
			}
		}
	}
	return out, nil
}

// Snapshot returns one owned request with its matches.
func (s *Service) Snapshot(ctx context.Context, actor Actor, id uuid.UUID) (transport.RequestResponse, error) {
	req, err := s.owned(ctx, actor, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	matches, err := s.store.ListMatches(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, apperr.Store("list matches", err)
	}
	return toRequestResponse(req, matches), nil
}

func (s *Service) Timeline(ctx context.Context, actor Actor, id uuid.UUID) ([]transport.TimelineEventResponse, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	evs, err := s.store.ListTimeline(ctx, id)
	if err != nil {
		return nil, apperr.Store("list timeline", err)
	}
	out := make([]transport.TimelineEventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, transport.TimelineEventResponse{
			ID:        ev.ID,
			ActorType: string(ev.ActorType),
			ActorID:   ev.ActorID,
			Action:    string(ev.Action),
			Label:     ev.Label,
			CreatedAt: ev.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) owned(ctx context.Context, actor Actor, id uuid.UUID) (domain.Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return domain.Request{}, apperr.Store("get request", err)
	}
	if err := ownedBy(actor.ID)(req); err != nil {
		return domain.Request{}, err
	}
	return req, nil
}
