package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/clock"
	"servitec_backend/platform/logger"

	"github.com/google/uuid"
)

// Target is what an observer reads and pokes.
type Target interface {
	Load(ctx context.Context, id uuid.UUID) (domain.Request, error)
	// Fire issues a timeout action. It must be a no-op when the rule no longer holds.
	Fire(ctx context.Context, id uuid.UUID, action domain.Action) error
}

// Observer is the cooperative watchdog: while a request is being watched it
// is re-evaluated every tick and due rules are fired without waiting for them.
type Observer struct {
	rules    Rules
	target   Target
	tick     time.Duration
	debounce *Debouncer
	clock    clock.Clock
	log      *logger.Logger

	inflight sync.WaitGroup
}

// NewObserver debounces each request+action pair for one tick.
func NewObserver(rules Rules, target Target, tick time.Duration, log *logger.Logger) *Observer {
	return &Observer{
		rules:    rules,
		target:   target,
		tick:     tick,
		debounce: NewDebouncer(tick),
		clock:    clock.NewRealClock(),
		log:      log,
	}
}

func (o *Observer) SetClock(c clock.Clock) { o.clock = c }

// Check loads the request once, starts every due action in the background
// and returns the request as loaded.
func (o *Observer) Check(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	req, err := o.target.Load(ctx, id)
	if err != nil {
		return domain.Request{}, err
	}

	now := o.clock.Now()
	for _, action := range o.rules.Due(req, now) {
		if !o.debounce.Allow(id.String()+":"+string(action), now) {
			continue
		}
		o.inflight.Add(1)
		go func() {
			defer o.inflight.Done()
			if err := o.target.Fire(context.WithoutCancel(ctx), id, action); err != nil {
				o.log.Warn("watchdog action failed",
					slog.String("service_request_id", id.String()),
					slog.String("action", string(action)),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	return req, nil
}

// Watch checks id on every tick until ctx ends or onChange fails. onChange
// runs for the first load and whenever the status or last update moved.
func (o *Observer) Watch(ctx context.Context, id uuid.UUID, onChange func(domain.Request) error) error {
	var last *domain.Request
	step := func() error {
		req, err := o.Check(ctx, id)
		if err != nil {
			return err
		}
		if last != nil && last.Status == req.Status && last.UpdatedAt.Equal(req.UpdatedAt) {
			return nil
		}
		last = &req
		return onChange(req)
	}

	if err := step(); err != nil {
		return err
	}
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := step(); err != nil {
				return err
			}
		}
	}
}

// Wait blocks until every fired action has returned.
func (o *Observer) Wait() {
	o.inflight.Wait()
}
