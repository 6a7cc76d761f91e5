package service

import (
	"context"
	"time"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/metrics"

	"github.com/google/uuid"
)

// Timeout sources, used as the metrics label.
const (
	SourceWatch     = "watch"
	SourceScheduler = "scheduler"
)

// TimeoutOutcome reports what ApplyTimeout did. RetryAt is set when the rule
// still applies but is not due yet, for instance because the request was
// touched after the check was scheduled.
type TimeoutOutcome struct {
	Applied bool
	RetryAt *time.Time
}

// ApplyTimeout fires a timeout rule if, under the row lock, it is still due.
// Calling it for a rule that no longer applies is a no-op, so observers and
// the durable scheduler may race freely.
func (s *Service) ApplyTimeout(ctx context.Context, id uuid.UUID, action domain.Action, source string) (TimeoutOutcome, error) {
	if action != domain.ActionOpenMarketplace && action != domain.ActionEnsureMatches {
		return TimeoutOutcome{}, apperr.Validation(msgInvalidAction)
	}

	if action == domain.ActionEnsureMatches {
		req, err := s.store.GetRequest(ctx, id)
		if err != nil {
			return TimeoutOutcome{}, apperr.Store("get request", err)
		}
		if !s.rules.IsDue(req, action, s.clock.Now()) {
			return s.notDue(req, action), nil
		}
		s.ensureCoordinates(ctx, req)
	}

	var outcome TimeoutOutcome
	_, err := s.mutate(ctx, id, SystemActor, action, nil, func(ctx context.Context, m *mutation) error {
		if !s.rules.IsDue(m.req, action, m.now) {
			outcome = s.notDue(m.req, action)
			return nil
		}
		outcome.Applied = true
		if action == domain.ActionOpenMarketplace {
			return applyOpenMarketplace(m, domain.LabelDirectExpired())
		}
		return s.applyEnsureMatches(ctx, m)
	})
	if err != nil {
		return TimeoutOutcome{}, err
	}
	if outcome.Applied {
		metrics.WatchdogActions.WithLabelValues(string(action), source).Inc()
	}
	return outcome, nil
}

func (s *Service) notDue(req domain.Request, action domain.Action) TimeoutOutcome {
	if at, ok := s.rules.Deadline(req, action); ok {
		return TimeoutOutcome{RetryAt: &at}
	}
	return TimeoutOutcome{}
}

// Load returns a request without an ownership check, for background callers.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return domain.Request{}, apperr.Store("get request", err)
	}
	return req, nil
}
