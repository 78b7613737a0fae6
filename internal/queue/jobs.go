package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// EvaluateExtractionTask is scheduled each time a listing or label is uploaded.
	EvaluateExtractionTask = "extraction:evaluate"
)

// EvaluatePayload tells the worker which object to fetch and how to read it.
type EvaluatePayload struct {
	ExtractionID string `json:"extraction_id"`
	ObjectKey    string `json:"object_key"`
	ContentType  string `json:"content_type"`
}

// NewEvaluateTask builds the task for an uploaded artifact.
func NewEvaluateTask(payload EvaluatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(EvaluateExtractionTask, data), nil
}

// ParseEvaluatePayload decodes a task payload.
func ParseEvaluatePayload(task *asynq.Task) (EvaluatePayload, error) {
	var payload EvaluatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.ExtractionID == "" || payload.ObjectKey == "" {
		return payload, fmt.Errorf("decode payload: extraction id and object key are required: %w", asynq.SkipRetry)
	}
	return payload, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueEvaluate enqueues an evaluation job.
func EnqueueEvaluate(ctx context.Context, client Enqueuer, payload EvaluatePayload) error {
	task, err := NewEvaluateTask(payload)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue evaluate task: %w", err)
	}
	return nil
}
