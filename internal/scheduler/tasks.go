package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"servitec_backend/internal/requests/domain"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskDirectExpired = "requests.direct_expired"

const TaskMatchGeneration = "requests.match_generation"

// taskActions maps each timeout task to the transition it fires.
var taskActions = map[string]domain.Action{
	TaskDirectExpired:   domain.ActionOpenMarketplace,
	TaskMatchGeneration: domain.ActionEnsureMatches,
}

type TimeoutPayload struct {
	RequestID string    `json:"requestId"`
	DueAt     time.Time `json:"dueAt"`
}

func NewTimeoutTask(taskType string, requestID uuid.UUID, dueAt time.Time) (*asynq.Task, error) {
	if _, ok := taskActions[taskType]; !ok {
		return nil, fmt.Errorf("unknown timeout task %q", taskType)
	}
	data, err := json.Marshal(TimeoutPayload{RequestID: requestID.String(), DueAt: dueAt.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseTimeoutPayload(task *asynq.Task) (uuid.UUID, TimeoutPayload, error) {
	var payload TimeoutPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uuid.Nil, TimeoutPayload{}, err
	}
	id, err := uuid.Parse(payload.RequestID)
	if err != nil {
		return uuid.Nil, TimeoutPayload{}, err
	}
	return id, payload, nil
}

// taskID makes enqueueing idempotent per request, rule and deadline.
func taskID(taskType string, requestID uuid.UUID, dueAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", taskType, requestID, dueAt.Unix())
}
