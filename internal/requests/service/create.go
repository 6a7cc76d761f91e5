package service

import (
	"context"
	"strings"

	"servitec_backend/internal/events"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/repository"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/phone"
	"servitec_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgPartialCoordinates = "faltan coordenadas: envía latitud y longitud juntas"
	msgTargetRequired     = "elige un técnico para la invitación directa"
	msgTargetUnknown      = "el técnico elegido no existe"
)

func clean(s string) string {
	return sanitize.Text(s)
}

// radiusOrDefault applies the configured radius when the client sent none.
func (s *Service) radiusOrDefault(km float64) float64 {
	if km <= 0 {
		return s.settings.DefaultRadiusKm
	}
	return km
}

// Create stores a new request. Marketplace requests with resolvable
// coordinates get a creation-time ranking pass. Direct requests record one
// candidacy for the invited technician and an expiry.
func (s *Service) Create(ctx context.Context, actor Actor, in transport.CreateRequestRequest) (transport.CreateRequestResponse, error) {
	now := s.clock.Now()
	req := domain.Request{
		ID:              uuid.New(),
		ClientID:        actor.ID,
		Title:           clean(in.Title),
		Category:        clean(in.Category),
		Description:     clean(in.Description),
		Address:         clean(in.Address),
		City:            clean(in.City),
		Urgency:         domain.Urgency(strings.ToLower(in.Urgency)),
		PreferredWindow: clean(in.PreferredWindow),
		Mode:            domain.Mode(in.Mode),
		Status:          domain.StatusPublished,
		RadiusKm:        s.radiusOrDefault(in.RadiusKm),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch {
	case in.Latitude != nil && in.Longitude != nil:
		req.SetCoordinates(*in.Latitude, *in.Longitude)
	case in.Latitude != nil || in.Longitude != nil:
		return transport.CreateRequestResponse{}, apperr.Validation(msgPartialCoordinates)
	default:
		if p := s.geocode(ctx, req.Address, req.City); p != nil {
			req.SetCoordinates(p.Lat, p.Lng)
		}
	}

	var matches []domain.Match
	switch req.Mode {
	case domain.ModeDirect:
		if in.TargetTechnicianID == nil {
			return transport.CreateRequestResponse{}, apperr.Validation(msgTargetRequired)
		}
		tech, err := s.directory.Get(ctx, *in.TargetTechnicianID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return transport.CreateRequestResponse{}, apperr.Validation(msgTargetUnknown)
			}
			return transport.CreateRequestResponse{}, apperr.Store("get technician", err)
		}
		expires := now.Add(s.settings.DirectOfferTTL)
		req.Status = domain.StatusDirectSent
		req.Target = &domain.TechnicianRef{ID: tech.ID, Name: tech.Name, Phone: phone.NormalizeE164(tech.Phone, s.settings.PhoneRegion)}
		req.DirectExpiresAt = &expires
		matches = []domain.Match{s.matchFor(req, tech, now)}

	default:
		req.Mode = domain.ModeMarketplace
		if req.HasCoordinates() {
			scored, err := s.score(ctx, s.creation, req, now)
			if err != nil {
				return transport.CreateRequestResponse{}, err
			}
			matches = scored
			if len(matches) > 0 {
				req.MarkMatched(now)
			}
		}
	}

	timeline := []domain.TimelineEvent{
		repository.NewTimelineEvent(req.ID, actor.idPtr(), actor.Type, domain.ActionCreate, domain.LabelCreated(req), now),
	}
	if req.Mode == domain.ModeMarketplace && len(matches) > 0 {
		timeline = append(timeline, repository.NewTimelineEvent(req.ID, nil, domain.ActorSystem, domain.ActionEnsureMatches, domain.LabelMatchesFound(len(matches)), now))
	}

	if err := s.store.CreateRequest(ctx, req, matches, timeline); err != nil {
		s.log.DatabaseError("create request", err)
		return transport.CreateRequestResponse{}, apperr.Store("create request", err)
	}
	countScored(s.creation, len(matches))

	techIDs := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		techIDs = append(techIDs, m.TechnicianID)
	}
	created := events.RequestCreated{
		BaseEvent:          events.NewBaseEventAt(now),
		RequestID:          req.ID,
		ClientID:           req.ClientID,
		Mode:               string(req.Mode),
		Status:             string(req.Status),
		MatchedTechnicians: techIDs,
	}
	if req.Target != nil {
		id := req.Target.ID
		created.TargetTechnicianID = &id
	}
	s.bus.Publish(ctx, created)
	s.log.Transition(req.ID.String(), string(domain.ActionCreate), "", string(req.Status))
	s.scheduleTimeouts(ctx, req)

	out := transport.CreateRequestResponse{Request: toRequestResponse(req, matches), Matches: toMatchResponses(matches)}
	return out, nil
}
