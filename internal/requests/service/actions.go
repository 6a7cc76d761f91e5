package service

import (
	"context"
	"fmt"

	"servitec_backend/internal/events"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgMatchRequired  = "indica el técnico (matchId)"
	msgMatchNotFound  = "el técnico no forma parte de esta solicitud"
	msgOfferRequired  = "indica precio y plazo estimado"
	msgStatusRequired = "indica el estado de destino"
)

// Apply runs one client action on a request the caller owns and returns the
// refreshed workspace.
func (s *Service) Apply(ctx context.Context, actor Actor, id uuid.UUID, in transport.ActionRequest) (transport.WorkspaceResponse, error) {
	action := domain.Action(in.Action)
	if !action.IsClientAction() {
		return transport.WorkspaceResponse{}, apperr.Validation(msgInvalidAction).WithDetails(map[string]any{"allowed": domain.ClientActions})
	}
	if action.NeedsMatch() && in.MatchID == nil {
		return transport.WorkspaceResponse{}, apperr.Validation(msgMatchRequired)
	}

	if action == domain.ActionEnsureMatches {
		if err := s.prepareScoring(ctx, id, ownedBy(actor.ID)); err != nil {
			return transport.WorkspaceResponse{}, err
		}
	}

	if _, err := s.mutate(ctx, id, actor, action, ownedBy(actor.ID), func(ctx context.Context, m *mutation) error {
		return s.dispatch(ctx, m, in)
	}); err != nil {
		return transport.WorkspaceResponse{}, err
	}
	return s.Workspace(ctx, actor)
}

// prepareScoring resolves coordinates before the row lock is taken so the
// geocoder is never called inside a transaction.
func (s *Service) prepareScoring(ctx context.Context, id uuid.UUID, check guard) error {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return apperr.Store("get request", err)
	}
	if check != nil {
		if err := check(req); err != nil {
			return err
		}
	}
	s.ensureCoordinates(ctx, req)
	return nil
}

func (s *Service) dispatch(ctx context.Context, m *mutation, in transport.ActionRequest) error {
	switch m.action {
	case domain.ActionOpenMarketplace:
		return applyOpenMarketplace(m, domain.LabelOpenMarketplace())
	case domain.ActionDirectAccepted:
		return applyDirectAccepted(m)
	case domain.ActionDirectRejected:
		return applyDirectRejected(m, nil)
	case domain.ActionEnsureMatches:
		return s.applyEnsureMatches(ctx, m)
	case domain.ActionSelectMatch:
		return applySelect(ctx, m, *in.MatchID)
	case domain.ActionQuoteAccept:
		return applyQuoteAccept(ctx, m, *in.MatchID)
	case domain.ActionQuoteReject:
		return applyQuoteReject(ctx, m, *in.MatchID, sanitize.TextPtr(in.Reason))
	case domain.ActionCounterOffer:
		if in.Price == nil || in.ETAHours == nil {
			return apperr.Validation(msgOfferRequired)
		}
		offer, err := domain.NewOffer(*in.Price, *in.ETAHours, sanitize.TextPtr(in.Note))
		if err != nil {
			return err
		}
		return applyCounterOffer(ctx, m, *in.MatchID, offer)
	case domain.ActionAdvance:
		if err := m.req.Advance(m.now); err != nil {
			return err
		}
		m.dirty = true
		m.record(domain.LabelAdvanced(m.req.Status))
		return nil
	case domain.ActionCancel:
		if err := m.req.Cancel(m.now); err != nil {
			return err
		}
		m.dirty = true
		m.record(domain.LabelCancelled())
		return nil
	case domain.ActionSetStatus:
		if in.Status == nil || *in.Status == "" {
			return apperr.Validation(msgStatusRequired)
		}
		if err := m.req.SetStatus(domain.Status(*in.Status), m.now); err != nil {
			return err
		}
		m.dirty = true
		m.record(domain.LabelManualStatus(m.req.Status))
		return nil
	}
	return apperr.Validation(msgInvalidAction)
}

func applyOpenMarketplace(m *mutation, label string) error {
	if err := m.req.OpenMarketplace(m.now); err != nil {
		return err
	}
	m.dirty = true
	m.record(label)
	return nil
}

func applyDirectAccepted(m *mutation) error {
	if err := m.req.AcceptDirect(m.now); err != nil {
		return err
	}
	m.dirty = true
	m.technicians = append(m.technicians, m.req.Assigned.ID)
	m.record(domain.LabelDirectAccepted(m.req.Assigned.Name))
	return nil
}

func applyDirectRejected(m *mutation, reason *string) error {
	var name string
	if m.req.Target != nil {
		name = m.req.Target.Name
		m.technicians = append(m.technicians, m.req.Target.ID)
	}
	if err := m.req.RejectDirect(m.now); err != nil {
		return err
	}
	m.dirty = true
	label := domain.LabelDirectRejected(name)
	if reason != nil && *reason != "" {
		label = fmt.Sprintf("%s (motivo: %s)", label, *reason)
	}
	m.record(label)
	return nil
}

// applyEnsureMatches is idempotent: existing matches short-circuit scoring.
// A published request with matches moves to matched either way.
func (s *Service) applyEnsureMatches(ctx context.Context, m *mutation) error {
	if err := m.req.CanEnsureMatches(); err != nil {
		return err
	}
	existing, err := m.loadMatches(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if m.req.MarkMatched(m.now) {
			m.dirty = true
			m.record(domain.LabelMatchesFound(len(existing)))
		}
		return nil
	}

	scored, err := s.score(ctx, s.backfill, m.req, m.now)
	if err != nil {
		return err
	}
	if len(scored) == 0 {
		// Touching updated_at pushes the next automatic attempt one full delay away.
		m.req.UpdatedAt = m.now
		m.dirty = true
		m.rearm = true
		m.record(domain.LabelNoTechnicians())
		return nil
	}

	inserted, err := m.tx.InsertMatches(ctx, scored)
	if err != nil {
		return apperr.Store("insert matches", err)
	}
	countScored(s.backfill, inserted)

	ids := make([]uuid.UUID, 0, len(scored))
	for _, match := range scored {
		ids = append(ids, match.TechnicianID)
	}
	m.technicians = append(m.technicians, ids...)
	m.events = append(m.events, events.MatchesGenerated{
		BaseEvent:     events.NewBaseEventAt(m.now),
		RequestID:     m.req.ID,
		ClientID:      m.req.ClientID,
		Strategy:      s.backfill.Name(),
		TechnicianIDs: ids,
	})
	m.req.MarkMatched(m.now)
	m.dirty = true
	m.record(domain.LabelMatchesFound(len(scored)))
	return nil
}

func findMatch(ctx context.Context, m *mutation, id uuid.UUID) (int, error) {
	matches, err := m.loadMatches(ctx)
	if err != nil {
		return -1, err
	}
	i, ok := domain.FindMatch(matches, id)
	if !ok {
		return -1, apperr.NotFound(msgMatchNotFound)
	}
	return i, nil
}

func applySelect(ctx context.Context, m *mutation, matchID uuid.UUID) error {
	i, err := findMatch(ctx, m, matchID)
	if err != nil {
		return err
	}
	match := m.matches[i]
	if err := m.req.Select(match, m.now); err != nil {
		return err
	}
	m.dirty = true
	m.technicians = append(m.technicians, match.TechnicianID)
	m.record(domain.LabelSelected(match.TechnicianName))
	return nil
}

// applyQuoteAccept accepts one match and rejects its competing siblings in
// the same transaction.
func applyQuoteAccept(ctx context.Context, m *mutation, matchID uuid.UUID) error {
	i, err := findMatch(ctx, m, matchID)
	if err != nil {
		return err
	}
	changed, err := m.req.AcceptQuote(m.matches, i, m.now)
	if err != nil {
		return err
	}
	for _, j := range append([]int{i}, changed...) {
		if err := m.saveMatch(ctx, j); err != nil {
			return err
		}
	}
	m.dirty = true
	m.record(domain.LabelQuoteAccepted(m.matches[i]))
	return nil
}

func applyQuoteReject(ctx context.Context, m *mutation, matchID uuid.UUID, reason *string) error {
	i, err := findMatch(ctx, m, matchID)
	if err != nil {
		return err
	}
	if err := m.req.RejectQuote(m.matches, i, reason, m.now); err != nil {
		return err
	}
	if err := m.saveMatch(ctx, i); err != nil {
		return err
	}
	m.dirty = true
	m.record(domain.LabelQuoteRejected(m.matches[i], reason))
	return nil
}

func applyCounterOffer(ctx context.Context, m *mutation, matchID uuid.UUID, offer domain.Offer) error {
	i, err := findMatch(ctx, m, matchID)
	if err != nil {
		return err
	}
	changed, err := m.req.SubmitOffer(m.matches, i, offer, m.now)
	if err != nil {
		return err
	}
	for _, j := range append([]int{i}, changed...) {
		if err := m.saveMatch(ctx, j); err != nil {
			return err
		}
	}
	m.dirty = true
	m.record(domain.LabelCounterOffer(m.matches[i], offer))
	return nil
}
