package repository

import (
	"context"
	"slices"
	"sync"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same conditional-write and locking
// semantics as Repository. WithinRequest rolls back every change made by a
// failing callback.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

type memState struct {
	requests map[uuid.UUID]domain.Request
	matches  map[uuid.UUID][]domain.Match
	timeline map[uuid.UUID][]domain.TimelineEvent
}

func newMemState() *memState {
	return &memState{
		requests: make(map[uuid.UUID]domain.Request),
		matches:  make(map[uuid.UUID][]domain.Match),
		timeline: make(map[uuid.UUID][]domain.TimelineEvent),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = slices.Clone(v)
	}
	for k, v := range s.timeline {
		c.timeline[k] = slices.Clone(v)
	}
	return c
}

func (m *Memory) locked(fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *Memory) CreateRequest(ctx context.Context, req domain.Request, matches []domain.Match, timeline []domain.TimelineEvent) error {
	return m.locked(func(s *memState) error { return s.createRequest(req, matches, timeline) })
}

func (m *Memory) GetRequest(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	var out domain.Request
	err := m.locked(func(s *memState) (err error) { out, err = s.getRequest(id); return })
	return out, err
}

func (m *Memory) ListRequestsByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Request, error) {
	var out []domain.Request
	_ = m.locked(func(s *memState) error { out = s.listWhere(func(r domain.Request) bool { return r.ClientID == clientID }); return nil })
	return out, nil
}

func (m *Memory) ListOpenRequests(ctx context.Context) ([]domain.Request, error) {
	var out []domain.Request
	_ = m.locked(func(s *memState) error {
		out = s.listWhere(func(r domain.Request) bool { return slices.Contains(domain.OpenStatuses, r.Status) })
		return nil
	})
	return out, nil
}

func (m *Memory) ListMissingCoordinates(ctx context.Context, limit int) ([]domain.Request, error) {
	var out []domain.Request
	_ = m.locked(func(s *memState) error {
		out = s.missingCoordinates(limit)
		return nil
	})
	return out, nil
}

func (m *Memory) UpdateRequest(ctx context.Context, req domain.Request, expected domain.Status) error {
	return m.locked(func(s *memState) error { return s.updateRequest(req, expected) })
}

func (m *Memory) SetRequestCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	return m.locked(func(s *memState) error { return s.setCoordinates(id, lat, lng) })
}

func (m *Memory) ListMatches(ctx context.Context, requestID uuid.UUID) ([]domain.Match, error) {
	var out []domain.Match
	_ = m.locked(func(s *memState) error { out = s.listMatches(requestID); return nil })
	return out, nil
}

func (m *Memory) ListMatchesByRequests(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Match, error) {
	out := make(map[uuid.UUID][]domain.Match, len(ids))
	_ = m.locked(func(s *memState) error {
		for _, id := range ids {
			if ms := s.listMatches(id); len(ms) > 0 {
				out[id] = ms
			}
		}
		return nil
	})
	return out, nil
}

func (m *Memory) InsertMatches(ctx context.Context, matches []domain.Match) (int, error) {
	var n int
	err := m.locked(func(s *memState) error { n = s.insertMatches(matches); return nil })
	return n, err
}

func (m *Memory) UpdateMatch(ctx context.Context, match domain.Match) error {
	return m.locked(func(s *memState) error { return s.updateMatch(match) })
}

func (m *Memory) AppendTimeline(ctx context.Context, events ...domain.TimelineEvent) error {
	return m.locked(func(s *memState) error { s.appendTimeline(events...); return nil })
}

func (m *Memory) ListTimeline(ctx context.Context, requestID uuid.UUID) ([]domain.TimelineEvent, error) {
	var out []domain.TimelineEvent
	_ = m.locked(func(s *memState) error { out = slices.Clone(s.timeline[requestID]); return nil })
	return out, nil
}

// WithinRequest serializes all callers on the store. That is coarser than a
// row lock and equivalent for tests.
func (m *Memory) WithinRequest(ctx context.Context, requestID uuid.UUID, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.requests[requestID]; !ok {
		return apperr.NotFound(requestNotFoundMsg)
	}
	before := m.state.clone()
	if err := fn(ctx, &memTx{s: m.state}); err != nil {
		m.state = before
		return err
	}
	return nil
}

func (s *memState) createRequest(req domain.Request, matches []domain.Match, timeline []domain.TimelineEvent) error {
	if err := req.CheckInvariants(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "estado de solicitud inconsistente", err)
	}
	if _, exists := s.requests[req.ID]; exists {
		return apperr.Conflict("la solicitud ya existe")
	}
	s.requests[req.ID] = req
	s.insertMatches(matches)
	s.appendTimeline(timeline...)
	return nil
}

func (s *memState) getRequest(id uuid.UUID) (domain.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return domain.Request{}, apperr.NotFound(requestNotFoundMsg)
	}
	return r, nil
}

// listWhere returns matching requests newest first.
func (s *memState) listWhere(keep func(domain.Request) bool) []domain.Request {
	out := make([]domain.Request, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Request) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (s *memState) updateRequest(req domain.Request, expected domain.Status) error {
	if err := req.CheckInvariants(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "estado de solicitud inconsistente", err)
	}
	current, ok := s.requests[req.ID]
	if !ok || current.Status != expected {
		return apperr.Conflict(staleRequestMsg)
	}
	s.requests[req.ID] = req
	return nil
}

func (s *memState) setCoordinates(id uuid.UUID, lat, lng float64) error {
	r, ok := s.requests[id]
	if !ok {
		return nil
	}
	if !r.HasCoordinates() {
		r.SetCoordinates(lat, lng)
		s.requests[id] = r
	}
	return nil
}

func (s *memState) listMatches(requestID uuid.UUID) []domain.Match {
	out := slices.Clone(s.matches[requestID])
	slices.SortStableFunc(out, func(a, b domain.Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func (s *memState) insertMatches(matches []domain.Match) int {
	n := 0
	for _, m := range matches {
		existing := s.matches[m.RequestID]
		if slices.ContainsFunc(existing, func(e domain.Match) bool { return e.TechnicianID == m.TechnicianID }) {
			continue
		}
		s.matches[m.RequestID] = append(existing, m)
		n++
	}
	return n
}

func (s *memState) updateMatch(m domain.Match) error {
	list := s.matches[m.RequestID]
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return nil
		}
	}
	return apperr.NotFound(matchNotFoundMsg)
}

func (s *memState) appendTimeline(events ...domain.TimelineEvent) {
	for _, ev := range events {
		s.timeline[ev.RequestID] = append(s.timeline[ev.RequestID], ev)
	}
}

// memTx is the Store handed to WithinRequest callbacks. The lock is already held.
type memTx struct {
	s *memState
}

func (t *memTx) CreateRequest(_ context.Context, req domain.Request, matches []domain.Match, timeline []domain.TimelineEvent) error {
	return t.s.createRequest(req, matches, timeline)
}

func (t *memTx) GetRequest(_ context.Context, id uuid.UUID) (domain.Request, error) {
	return t.s.getRequest(id)
}

func (t *memTx) ListRequestsByClient(_ context.Context, clientID uuid.UUID) ([]domain.Request, error) {
	return t.s.listWhere(func(r domain.Request) bool { return r.ClientID == clientID }), nil
}

func (t *memTx) ListOpenRequests(_ context.Context) ([]domain.Request, error) {
	return t.s.listWhere(func(r domain.Request) bool { return slices.Contains(domain.OpenStatuses, r.Status) }), nil
}

func (t *memTx) ListMissingCoordinates(_ context.Context, limit int) ([]domain.Request, error) {
	return t.s.missingCoordinates(limit), nil
}

func (t *memTx) UpdateRequest(_ context.Context, req domain.Request, expected domain.Status) error {
	return t.s.updateRequest(req, expected)
}

func (t *memTx) SetRequestCoordinates(_ context.Context, id uuid.UUID, lat, lng float64) error {
	return t.s.setCoordinates(id, lat, lng)
}

func (t *memTx) ListMatches(_ context.Context, requestID uuid.UUID) ([]domain.Match, error) {
	return t.s.listMatches(requestID), nil
}

func (t *memTx) ListMatchesByRequests(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Match, error) {
	out := make(map[uuid.UUID][]domain.Match, len(ids))
	for _, id := range ids {
		if ms := t.s.listMatches(id); len(ms) > 0 {
			out[id] = ms
		}
	}
	return out, nil
}

func (t *memTx) InsertMatches(_ context.Context, matches []domain.Match) (int, error) {
	return t.s.insertMatches(matches), nil
}

func (t *memTx) UpdateMatch(_ context.Context, m domain.Match) error {
	return t.s.updateMatch(m)
}

func (t *memTx) AppendTimeline(_ context.Context, events ...domain.TimelineEvent) error {
	t.s.appendTimeline(events...)
	return nil
}

func (t *memTx) ListTimeline(_ context.Context, requestID uuid.UUID) ([]domain.TimelineEvent, error) {
	return slices.Clone(t.s.timeline[requestID]), nil
}

func (t *memTx) WithinRequest(ctx context.Context, requestID uuid.UUID, fn func(ctx context.Context, tx Store) error) error {
	if _, ok := t.s.requests[requestID]; !ok {
		return apperr.NotFound(requestNotFoundMsg)
	}
	return fn(ctx, t)
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*memTx)(nil)
)

// missingCoordinates mirrors the SQL query: open requests with an address, oldest first.
func (s *memState) missingCoordinates(limit int) []domain.Request {
	out := s.listWhere(func(r domain.Request) bool {
		return !r.HasCoordinates() && !r.Status.IsTerminal() && r.Address != ""
	})
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
