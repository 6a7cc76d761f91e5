package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/metrics"
	"servitec_backend/platform/phone"

	"github.com/google/uuid"
)

func (s *Service) candidate(t Technician, now time.Time) matching.Candidate {
	return matching.Candidate{
		ID:           t.ID,
		Name:         t.Name,
		Phone:        t.Phone,
		Specialty:    t.Specialty,
		City:         t.City,
		CoverageArea: t.CoverageArea,
		Location:     t.Location,
		RadiusKm:     t.RadiusKm,
		Rating:       t.Rating,
		LastSeenAt:   t.LastSeenAt,
		WithinHours:  s.hours.Within(t.Schedule, t.Timezone, now),
		HasPhone:     phone.IsReachable(t.Phone, s.settings.PhoneRegion),
	}
}

func targetOf(req domain.Request) matching.Target {
	t := matching.Target{
		RadiusKm: req.RadiusKm,
		Urgency:  string(req.Urgency),
		Category: req.Category,
		City:     req.City,
		Address:  req.Address,
	}
	if req.HasCoordinates() {
		t.Location = &matching.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	}
	return t
}

// score runs one ranking pass over every active technician and returns the
// resulting matches, best first.
func (s *Service) score(ctx context.Context, strategy matching.ScoringStrategy, req domain.Request, now time.Time) ([]domain.Match, error) {
	techs, err := s.directory.ListActive(ctx)
	if err != nil {
		return nil, apperr.Store("list technicians", err)
	}

	candidates := make([]matching.Candidate, 0, len(techs))
	for _, t := range techs {
		candidates = append(candidates, s.candidate(t, now))
	}

	ranked := s.ranker.Rank(strategy, targetOf(req), candidates)
	out := make([]domain.Match, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, s.newMatch(req.ID, r, now))
	}
	return out, nil
}

func (s *Service) newMatch(requestID uuid.UUID, r matching.Ranked, now time.Time) domain.Match {
	c := r.Candidate
	return domain.Match{
		ID:              uuid.New(),
		RequestID:       requestID,
		TechnicianID:    c.ID,
		TechnicianName:  c.Name,
		TechnicianPhone: phone.NormalizeE164(c.Phone, s.settings.PhoneRegion),
		Specialty:       c.Specialty,
		City:            c.City,
		Score:           r.Score,
		DistanceKm:      r.DistanceKm,
		QuoteStatus:     domain.QuotePending,
		Rating:          c.Rating,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// matchFor builds the single candidacy of a technician who was not produced
// by a ranking pass: a direct target or a technician quoting on their own.
func (s *Service) matchFor(req domain.Request, t Technician, now time.Time) domain.Match {
	c := s.candidate(t, now)
	r, ok := s.creation.Score(targetOf(req), c)
	if !ok {
		r = matching.Ranked{Candidate: c}
		if req.HasCoordinates() && t.Location != nil {
			d := matching.Distance(*targetOf(req).Location, *t.Location)
			r.DistanceKm = &d
		}
	}
	return s.newMatch(req.ID, r, now)
}

func addressQuery(address, city string) string {
	address = strings.TrimSpace(address)
	city = strings.TrimSpace(city)
	switch {
	case address == "":
		return city
	case city == "" || strings.Contains(strings.ToLower(address), strings.ToLower(city)):
		return address
	default:
		return address + ", " + city
	}
}

// geocode resolves an address. Failures are logged and reported as no result:
// a request without coordinates is still valid.
func (s *Service) geocode(ctx context.Context, address, city string) *matching.Point {
	if s.geocoder == nil {
		return nil
	}
	q := addressQuery(address, city)
	if q == "" {
		return nil
	}
	p, err := s.geocoder.Resolve(ctx, q)
	if err != nil {
		s.log.Warn("geocoding failed", slog.String("query", q), slog.String("error", err.Error()))
		return nil
	}
	return p
}

// ensureCoordinates geocodes a request with no stored coordinates once and
// persists the result. It returns the request as it should be scored.
func (s *Service) ensureCoordinates(ctx context.Context, req domain.Request) domain.Request {
	if req.HasCoordinates() {
		return req
	}
	p := s.geocode(ctx, req.Address, req.City)
	if p == nil {
		return req
	}
	if err := s.store.SetRequestCoordinates(ctx, req.ID, p.Lat, p.Lng); err != nil {
		s.log.DatabaseError("set request coordinates", err)
		return req
	}
	req.SetCoordinates(p.Lat, p.Lng)
	return req
}

func countScored(strategy matching.ScoringStrategy, n int) {
	if n > 0 {
		metrics.MatchesScored.WithLabelValues(strategy.Name()).Add(float64(n))
	}
}
