package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codearena/internal/common/mq"
	"codearena/internal/judge/model"
	appErr "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// StatusEvent wraps a finished execution for async consumers.
type StatusEvent struct {
	Type      string                 `json:"type"`
	JobID     string                 `json:"job_id"`
	Result    *model.ExecutionResult `json:"result"`
	CreatedAt int64                  `json:"created_at"`
}

// StatusEventFinal marks the terminal event of a job.
const StatusEventFinal = "final"

// StatusEventPublisher publishes execution status events for async processing.
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, jobID string, result *model.ExecutionResult) error
}

// MQStatusEventPublisher publishes status events to a message queue.
type MQStatusEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQStatusEventPublisher creates a new MQ status event publisher.
func NewMQStatusEventPublisher(producer mq.Producer, topic string) *MQStatusEventPublisher {
	return &MQStatusEventPublisher{producer: producer, topic: topic}
}

// PublishFinalStatus publishes a final status event keyed by job id.
func (p *MQStatusEventPublisher) PublishFinalStatus(ctx context.Context, jobID string, result *model.ExecutionResult) error {
	if p == nil || p.producer == nil {
		logger.Error(ctx, "status publisher is not configured")
		return appErr.New(appErr.ServiceUnavailable).WithMessage("status publisher is not configured")
	}
	if p.topic == "" {
		logger.Error(ctx, "status topic is required")
		return appErr.New(appErr.InvalidParams).WithMessage("status topic is required")
	}
	if jobID == "" {
		return appErr.ValidationError("job_id", "required")
	}
	event := StatusEvent{
		Type:      StatusEventFinal,
		JobID:     jobID,
		Result:    result,
		CreatedAt: time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "marshal status event failed", zap.Error(err))
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = jobID
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		logger.Error(ctx, "publish status event failed", zap.String("job_id", jobID), zap.Error(err))
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish status event failed")
	}
	return nil
}
