package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	msgTechnicianNotFound = "perfil de técnico no encontrado"
	msgNoBaseLocation     = "configura tu dirección base para ver solicitudes cercanas"
	msgNotInvited         = "esta invitación no es para ti"
	msgInvitationClosed   = "la invitación directa ya no está pendiente"

	geocodeConcurrency = 4
)

// Nearby lists open requests the technician can work on: within the smaller
// of both radii, never someone else's direct invitation, most urgent first,
// then closest, then newest. Missing coordinates on either side are resolved
// and persisted on the way.
func (s *Service) Nearby(ctx context.Context, actor Actor) (transport.NearbyResponse, error) {
	tech, err := s.technician(ctx, actor.ID)
	if err != nil {
		return transport.NearbyResponse{}, err
	}
	if tech.Location == nil {
		p := s.geocode(ctx, tech.BaseAddress, tech.City)
		if p == nil {
			return transport.NearbyResponse{}, apperr.Validation(msgNoBaseLocation)
		}
		if err := s.directory.SetCoordinates(ctx, tech.ID, *p); err != nil {
			s.log.DatabaseError("set technician coordinates", err)
		}
		tech.Location = p
	}

	open, err := s.store.ListOpenRequests(ctx)
	if err != nil {
		return transport.NearbyResponse{}, apperr.Store("list open requests", err)
	}
	visible := open[:0]
	for _, r := range open {
		if r.Mode == domain.ModeDirect && (r.Target == nil || r.Target.ID != tech.ID) {
			continue
		}
		visible = append(visible, r)
	}
	visible = s.geocodeMissing(ctx, visible)

	type item struct {
		req  domain.Request
		dist float64
	}
	items := make([]item, 0, len(visible))
	ids := make([]uuid.UUID, 0, len(visible))
	for _, r := range visible {
		if !r.HasCoordinates() {
			continue
		}
		d := matching.Distance(*tech.Location, matching.Point{Lat: *r.Latitude, Lng: *r.Longitude})
		if limit := matching.EffectiveRadius(r.RadiusKm, tech.RadiusKm); limit > 0 && d > limit {
			continue
		}
		items = append(items, item{req: r, dist: d})
		ids = append(ids, r.ID)
	}
	slices.SortStableFunc(items, func(a, b item) int {
		if c := cmp.Compare(a.req.Urgency.Rank(), b.req.Urgency.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return b.req.CreatedAt.Compare(a.req.CreatedAt)
	})

	byRequest, err := s.store.ListMatchesByRequests(ctx, ids)
	if err != nil {
		return transport.NearbyResponse{}, apperr.Store("list matches", err)
	}

	out := transport.NearbyResponse{Items: make([]transport.NearbyRequestResponse, 0, len(items)), RadiusKm: tech.RadiusKm}
	for _, it := range items {
		r := it.req
		row := transport.NearbyRequestResponse{
			ID:              r.ID,
			Title:           r.Title,
			Category:        r.Category,
			Description:     r.Description,
			Address:         r.Address,
			City:            r.City,
			Urgency:         string(r.Urgency),
			PreferredWindow: r.PreferredWindow,
			Mode:            string(r.Mode),
			Status:          string(r.Status),
			DistanceKm:      it.dist,
			DirectToMe:      r.Mode == domain.ModeDirect,
			DirectExpiresAt: r.DirectExpiresAt,
			CreatedAt:       r.CreatedAt,
		}
		for _, m := range byRequest[r.ID] {
			if m.TechnicianID == tech.ID {
				mine := toMatchResponse(m)
				row.MyQuote = &mine
				break
			}
		}
		out.Items = append(out.Items, row)
	}
	return out, nil
}

// geocodeMissing resolves requests without coordinates concurrently and
// persists each hit. Each goroutine owns one index. Requests that stay unresolved are returned unchanged.
func (s *Service) geocodeMissing(ctx context.Context, reqs []domain.Request) []domain.Request {
	if s.geocoder == nil {
		return reqs
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(geocodeConcurrency)
	for i := range reqs {
		if reqs[i].HasCoordinates() {
			continue
		}
		g.Go(func() error {
			reqs[i] = s.ensureCoordinates(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return reqs
}

func (s *Service) technician(ctx context.Context, id uuid.UUID) (Technician, error) {
	tech, err := s.directory.Get(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Technician{}, apperr.NotFound(msgTechnicianNotFound)
		}
		return Technician{}, apperr.Store("get technician", err)
	}
	return tech, nil
}

// visibleTo hides requests a technician has no business acting on.
func visibleTo(techID uuid.UUID) guard {
	return func(req domain.Request) error {
		if req.Mode == domain.ModeDirect && (req.Target == nil || req.Target.ID != techID) {
			return apperr.NotFound(msgRequestNotFound)
		}
		return nil
	}
}

// SubmitQuote records or revises the technician's own offer. A technician
// without a candidacy yet gets one, as long as the request is marketplace.
func (s *Service) SubmitQuote(ctx context.Context, actor Actor, id uuid.UUID, in transport.SubmitQuoteRequest) (transport.MatchResponse, error) {
	offer, err := domain.NewOffer(in.Price, in.ETAHours, sanitize.TextPtr(in.Note))
	if err != nil {
		return transport.MatchResponse{}, err
	}
	tech, err := s.technician(ctx, actor.ID)
	if err != nil {
		return transport.MatchResponse{}, err
	}

	var quote domain.Match
	_, err = s.mutate(ctx, id, actor, domain.ActionSubmitQuote, visibleTo(tech.ID), func(ctx context.Context, m *mutation) error {
		if err := m.req.CheckNegotiable(); err != nil {
			return err
		}
		matches, err := m.loadMatches(ctx)
		if err != nil {
			return err
		}

		i := slices.IndexFunc(matches, func(match domain.Match) bool { return match.TechnicianID == tech.ID })
		fresh := i < 0
		if fresh {
			m.matches = append(m.matches, s.matchFor(m.req, tech, m.now))
			i = len(m.matches) - 1
		}

		changed, err := m.req.SubmitOffer(m.matches, i, offer, m.now)
		if err != nil {
			return err
		}
		if fresh {
			if _, err := m.tx.InsertMatches(ctx, m.matches[i:i+1]); err != nil {
				return apperr.Store("insert match", err)
			}
			m.technicians = append(m.technicians, tech.ID)
		} else if err := m.saveMatch(ctx, i); err != nil {
			return err
		}
		for _, j := range changed {
			if err := m.saveMatch(ctx, j); err != nil {
				return err
			}
		}
		m.dirty = true
		m.record(domain.LabelQuoteSubmitted(m.matches[i], offer))
		quote = m.matches[i]
		return nil
	})
	if err != nil {
		return transport.MatchResponse{}, err
	}
	return toMatchResponse(quote), nil
}

// RespondDirect lets the invited technician accept or decline.
func (s *Service) RespondDirect(ctx context.Context, actor Actor, id uuid.UUID, accept bool, reason *string) (transport.RequestStatusResponse, error) {
	action := domain.ActionDirectRejected
	if accept {
		action = domain.ActionDirectAccepted
	}
	// direct_sent always carries a target, so an open invitation is answered
	// only by its technician.
	invited := func(req domain.Request) error {
		if req.Target != nil && req.Target.ID != actor.ID {
			return apperr.Forbidden(msgNotInvited)
		}
		if req.Status != domain.StatusDirectSent {
			return apperr.Validation(msgInvitationClosed)
		}
		return nil
	}

	m, err := s.mutate(ctx, id, actor, action, invited, func(ctx context.Context, m *mutation) error {
		if accept {
			return applyDirectAccepted(m)
		}
		return applyDirectRejected(m, sanitize.TextPtr(reason))
	})
	if err != nil {
		return transport.RequestStatusResponse{}, err
	}
	if !accept {
		s.log.Info("direct invitation declined",
			slog.String("service_request_id", id.String()),
			slog.String("technician_id", actor.ID.String()),
		)
	}
	return transport.RequestStatusResponse{ID: m.req.ID, Status: string(m.req.Status)}, nil
}
