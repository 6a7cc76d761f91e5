package service

import (
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/transport"
)

func toRefResponse(ref *domain.TechnicianRef) *transport.TechnicianRefResponse {
	if ref == nil {
		return nil
	}
	return &transport.TechnicianRefResponse{ID: ref.ID, Name: ref.Name, Phone: ref.Phone}
}

func toRequestResponse(r domain.Request, matches []domain.Match) transport.RequestResponse {
	allowed := make([]string, 0, 3)
	for _, st := range domain.AllowedManualTargets(r.Status) {
		allowed = append(allowed, string(st))
	}
	return transport.RequestResponse{
		ID:                 r.ID,
		ClientID:           r.ClientID,
		Title:              r.Title,
		Category:           r.Category,
		Description:        r.Description,
		Address:            r.Address,
		City:               r.City,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		Urgency:            string(r.Urgency),
		PreferredWindow:    r.PreferredWindow,
		Mode:               string(r.Mode),
		Status:             string(r.Status),
		StatusLabel:        r.Status.Label(),
		RadiusKm:           r.RadiusKm,
		TargetTechnician:   toRefResponse(r.Target),
		AssignedTechnician: toRefResponse(r.Assigned),
		DirectExpiresAt:    r.DirectExpiresAt,
		SelectedMatchID:    r.SelectedMatchID,
		AllowedStatuses:    allowed,
		Matches:            toMatchResponses(matches),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toMatchResponse(m domain.Match) transport.MatchResponse {
	out := transport.MatchResponse{
		ID:              m.ID,
		TechnicianID:    m.TechnicianID,
		TechnicianName:  m.TechnicianName,
		TechnicianPhone: m.TechnicianPhone,
		Specialty:       m.Specialty,
		City:            m.City,
		Score:           m.Score,
		DistanceKm:      m.DistanceKm,
		QuoteStatus:     string(m.QuoteStatus),
		ETAHours:        m.ETAHours,
		Note:            m.Note,
		RejectionReason: m.RejectionReason,
		Rating:          m.Rating,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Price != nil {
		p := m.Price.StringFixed(2)
		out.Price = &p
	}
	return out
}

func toMatchResponses(matches []domain.Match) []transport.MatchResponse {
	out := make([]transport.MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchResponse(m))
	}
	return out
}
