package messaging

import (
	"context"

	"github.com/google/uuid"

	"z-writer-ai-api/internal/domain/service"
	"z-writer-ai-api/pkg/logger"
)

// EventPublisher 将 Producer 适配为 service.EventPublisher 端口。
type EventPublisher struct {
	producer *Producer
}

var _ service.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (e *EventPublisher) PublishContentIndex(ctx context.Context, event service.ContentIndexEvent) error {
	if e == nil || e.producer == nil {
		return nil
	}
	_, err := e.producer.PublishContentIndex(ctx, &ContentIndexMessage{
		ContentID: event.ContentID,
		UserID:    event.UserID,
		RunID:     event.RunID,
	})
	return err
}

func (e *EventPublisher) PublishAudit(ctx context.Context, event service.AuditEvent) error {
	if e == nil || e.producer == nil {
		return nil
	}

	requestID, _ := ctx.Value(logger.RequestIDKey).(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	_, err := e.producer.PublishAuditLog(ctx, &AuditLogMessage{
		UserID:       event.UserID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		RequestID:    requestID,
		Metadata:     event.Metadata,
	})
	return err
}
