package service

import "context"

// ContentIndexEvent 内容待索引事件，由 index-worker 消费。
type ContentIndexEvent struct {
	ContentID string
	UserID    string
	RunID     string
}

// AuditEvent 审计事件。
type AuditEvent struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
}

// EventPublisher 领域事件发布端口。
// 说明：位于 domain/service 作为跨层契约，应用层依赖该接口而非消息基础设施。
// 实现应 best-effort，发布失败不应中断主业务流程，由调用方决定降级策略。
type EventPublisher interface {
	PublishContentIndex(ctx context.Context, event ContentIndexEvent) error
	PublishAudit(ctx context.Context, event AuditEvent) error
}
