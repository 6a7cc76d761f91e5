// Package service implements the request lifecycle, quote negotiation and
// matching passes on top of the Store port.
package service

import (
	"context"
	"log/slog"
	"time"

	"servitec_backend/internal/availability"
	"servitec_backend/internal/events"
	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/repository"
	"servitec_backend/internal/watchdog"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/clock"
	"servitec_backend/platform/logger"
	"servitec_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	msgRequestNotFound = "solicitud no encontrada"
	msgInvalidAction   = "acción inválida"
)

// fallbackRadiusKm matches the radius_km column default.
const fallbackRadiusKm = 15.0

// Settings are the tunables of the engine.
type Settings struct {
	MatchLimit           int
	DefaultRadiusKm      float64
	DirectOfferTTL       time.Duration
	MatchGenerationDelay time.Duration
	DefaultTimezone      string
	PhoneRegion          string
	Weights              matching.Weights
}

type Service struct {
	store     repository.Store
	directory TechnicianDirectory
	bus       events.Bus
	log       *logger.Logger
	geocoder  Geocoder
	scheduler TimeoutScheduler
	clock     clock.Clock

	settings Settings
	ranker   matching.Ranker
	creation matching.CreationStrategy
	backfill matching.BackfillStrategy
	hours    *availability.Evaluator
	rules    watchdog.Rules
}

func New(store repository.Store, directory TechnicianDirectory, bus events.Bus, log *logger.Logger, settings Settings) (*Service, error) {
	hours, err := availability.NewEvaluator(settings.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	if settings.Weights.Creation.Urgency == nil {
		settings.Weights = matching.DefaultWeights()
	}
	if settings.DefaultRadiusKm <= 0 {
		settings.DefaultRadiusKm = fallbackRadiusKm
	}
	return &Service{
		store:     store,
		directory: directory,
		bus:       bus,
		log:       log,
		clock:     clock.NewRealClock(),
		settings:  settings,
		ranker:    matching.NewRanker(settings.MatchLimit),
		creation:  matching.CreationStrategy{Weights: settings.Weights.Creation},
		backfill:  matching.BackfillStrategy{Weights: settings.Weights.Backfill},
		hours:     hours,
		rules:     watchdog.Rules{MatchGenerationDelay: settings.MatchGenerationDelay},
	}, nil
}

// SetGeocoder enables address resolution for requests and technicians without coordinates.
func (s *Service) SetGeocoder(g Geocoder) { s.geocoder = g }

// SetScheduler enables durable timeouts.
func (s *Service) SetScheduler(ts TimeoutScheduler) { s.scheduler = ts }

func (s *Service) SetClock(c clock.Clock) { s.clock = c }

// Rules exposes the timeout rules so observers evaluate the same thresholds.
func (s *Service) Rules() watchdog.Rules { return s.rules }

// mutation collects everything one locked transition produces. Nothing in it
// leaves the process until the transaction has committed. rearm asks for the
// durable check to be enqueued again although the status did not change.
type mutation struct {
	tx      repository.Store
	actor   Actor
	action  domain.Action
	req     domain.Request
	from    domain.Status
	now     time.Time
	dirty   bool
	matches []domain.Match
	loaded  bool
	rearm   bool

	label       string
	technicians []uuid.UUID
	timeline    []domain.TimelineEvent
	events      []events.Event
}

func (m *mutation) loadMatches(ctx context.Context) ([]domain.Match, error) {
	if m.loaded {
		return m.matches, nil
	}
	matches, err := m.tx.ListMatches(ctx, m.req.ID)
	if err != nil {
		return nil, apperr.Store("list matches", err)
	}
	m.matches = matches
	m.loaded = true
	return matches, nil
}

func (m *mutation) record(label string) {
	m.label = label
	m.timeline = append(m.timeline, repository.NewTimelineEvent(m.req.ID, m.actor.idPtr(), m.actor.Type, m.action, label, m.now))
}

func (m *mutation) saveMatch(ctx context.Context, i int) error {
	if err := m.tx.UpdateMatch(ctx, m.matches[i]); err != nil {
		return apperr.Store("update match", err)
	}
	match := m.matches[i]
	m.technicians = append(m.technicians, match.TechnicianID)
	m.events = append(m.events, events.QuoteUpdated{
		BaseEvent:    events.NewBaseEventAt(m.now),
		RequestID:    m.req.ID,
		ClientID:     m.req.ClientID,
		MatchID:      match.ID,
		TechnicianID: match.TechnicianID,
		QuoteStatus:  string(match.QuoteStatus),
	})
	return nil
}

// guard inspects the request before any change. It runs under the row lock.
type guard func(req domain.Request) error

func ownedBy(clientID uuid.UUID) guard {
	return func(req domain.Request) error {
		if req.ClientID != clientID {
			return apperr.NotFound(msgRequestNotFound)
		}
		return nil
	}
}

// mutate runs fn with the request locked, persists what it changed and then
// publishes. fn returning an error leaves the store untouched.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, actor Actor, action domain.Action, check guard, fn func(ctx context.Context, m *mutation) error) (*mutation, error) {
	var m *mutation
	err := s.store.WithinRequest(ctx, id, func(ctx context.Context, tx repository.Store) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return apperr.Store("get request", err)
		}
		if check != nil {
			if err := check(req); err != nil {
				return err
			}
		}

		m = &mutation{tx: tx, actor: actor, action: action, req: req, from: req.Status, now: s.clock.Now()}
		if err := fn(ctx, m); err != nil {
			return err
		}
		if m.dirty {
			if err := tx.UpdateRequest(ctx, m.req, m.from); err != nil {
				return apperr.Store("update request", err)
			}
		}
		if len(m.timeline) > 0 {
			if err := tx.AppendTimeline(ctx, m.timeline...); err != nil {
				return apperr.Store("append timeline", err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RequestTransitions.WithLabelValues(string(action), "rejected").Inc()
		if apperr.Is(err, apperr.KindUnavailable) || apperr.Is(err, apperr.KindInternal) {
			s.log.Error("request action failed",
				slog.String("service_request_id", id.String()),
				slog.String("action", string(action)),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.afterCommit(ctx, m)
	return m, nil
}

func (s *Service) afterCommit(ctx context.Context, m *mutation) {
	if m.label == "" {
		metrics.RequestTransitions.WithLabelValues(string(m.action), "noop").Inc()
		return
	}
	metrics.RequestTransitions.WithLabelValues(string(m.action), "applied").Inc()

	s.log.Transition(m.req.ID.String(), string(m.action), string(m.from), string(m.req.Status))
	s.bus.Publish(ctx, events.RequestTransitioned{
		BaseEvent:   events.NewBaseEventAt(m.now),
		RequestID:   m.req.ID,
		ClientID:    m.req.ClientID,
		Action:      string(m.action),
		From:        string(m.from),
		To:          string(m.req.Status),
		ActorType:   string(m.actor.Type),
		Label:       m.label,
		Technicians: m.technicians,
		Automatic:   m.actor.Type == domain.ActorSystem,
	})
	for _, ev := range m.events {
		s.bus.Publish(ctx, ev)
	}
	if m.req.Status != m.from || m.rearm {
		s.scheduleTimeouts(ctx, m.req)
	}
}

// scheduleTimeouts enqueues the durable check of whichever rule the request
// just became subject to. Failures only cost the durable path; observers
// still apply the rule.
func (s *Service) scheduleTimeouts(ctx context.Context, req domain.Request) {
	if s.scheduler == nil {
		return
	}

	var err error
	switch req.Status {
	case domain.StatusDirectSent:
		if at, ok := s.rules.Deadline(req, domain.ActionOpenMarketplace); ok {
			err = s.scheduler.ScheduleDirectExpiry(ctx, req.ID, at)
		}
	case domain.StatusPublished:
		if at, ok := s.rules.Deadline(req, domain.ActionEnsureMatches); ok {
			err = s.scheduler.ScheduleMatchGeneration(ctx, req.ID, at)
		}
	}
	if err != nil {
		s.log.Warn("timeout scheduling failed",
			slog.String("service_request_id", req.ID.String()),
			slog.String("status", string(req.Status)),
			slog.String("error", err.Error()),
		)
	}
}
