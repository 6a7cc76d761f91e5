package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/service"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/config"
	"servitec_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TimeoutApplier fires a timeout rule if it is still due.
type TimeoutApplier interface {
	ApplyTimeout(ctx context.Context, id uuid.UUID, action domain.Action, source string) (service.TimeoutOutcome, error)
}

// Rescheduler puts a timeout check back on the queue.
type Rescheduler interface {
	ScheduleDirectExpiry(ctx context.Context, requestID uuid.UUID, at time.Time) error
	ScheduleMatchGeneration(ctx context.Context, requestID uuid.UUID, at time.Time) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	timeouts  TimeoutApplier
	scheduler Rescheduler
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, timeouts TimeoutApplier, scheduler Rescheduler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(timeouts, scheduler, log)
	w.server = server
	return w, nil
}

func newWorker(timeouts TimeoutApplier, scheduler Rescheduler, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{mux: mux, timeouts: timeouts, scheduler: scheduler, log: log}
	mux.HandleFunc(TaskDirectExpired, w.handleTimeout)
	mux.HandleFunc(TaskMatchGeneration, w.handleTimeout)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleTimeout applies the rule behind task. A request that moved on is a
// successful no-op; one that was touched since is re-enqueued at its new deadline.
func (w *Worker) handleTimeout(ctx context.Context, task *asynq.Task) error {
	action, ok := taskActions[task.Type()]
	if !ok {
		return fmt.Errorf("unknown task %q: %w", task.Type(), asynq.SkipRetry)
	}
	id, payload, err := ParseTimeoutPayload(task)
	if err != nil {
		return fmt.Errorf("parse %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}

	outcome, err := w.timeouts.ApplyTimeout(ctx, id, action, service.SourceScheduler)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	switch {
	case outcome.Applied:
		w.log.Info("timeout applied",
			slog.String("service_request_id", id.String()),
			slog.String("task", task.Type()),
		)
	case outcome.RetryAt != nil:
		at := *outcome.RetryAt
		if !at.After(payload.DueAt) {
			// Fired a little early: the same deadline would collide with this task's ID.
			at = payload.DueAt.Add(time.Second)
		}
		return w.reschedule(ctx, task.Type(), id, at)
	}
	return nil
}

func (w *Worker) reschedule(ctx context.Context, taskType string, id uuid.UUID, at time.Time) error {
	if w.scheduler == nil {
		return nil
	}
	if taskType == TaskDirectExpired {
		return w.scheduler.ScheduleDirectExpiry(ctx, id, at)
	}
	return w.scheduler.ScheduleMatchGeneration(ctx, id, at)
}
