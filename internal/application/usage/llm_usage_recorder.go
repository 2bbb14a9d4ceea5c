// Package usage 记录 LLM 调用的 token 流水，供成本分析与离线审计使用。
package usage

import (
	"context"
	"fmt"
	"strings"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/domain/service"
)

// LLMUsageRecorder 将全局 eino 回调上报的用量落库。
// 积分扣费由账本完成，这里只做 best-effort 的流水记录。
type LLMUsageRecorder struct {
	events repository.LLMUsageEventRepository
}

func NewLLMUsageRecorder(events repository.LLMUsageEventRepository) *LLMUsageRecorder {
	return &LLMUsageRecorder{events: events}
}

func (r *LLMUsageRecorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil || r.events == nil {
		return nil
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	evt := entity.NewLLMUsageEvent(
		userID,
		strings.TrimSpace(in.Workflow),
		strings.TrimSpace(in.Provider),
		strings.TrimSpace(in.Model),
		in.PromptTokens,
		in.CompletionTokens,
		in.DurationMs,
	)
	return r.events.Create(ctx, evt)
}
