// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// GenerationRunRepository 生成运行记录仓储接口
type GenerationRunRepository interface {
	// Create 创建运行记录
	Create(ctx context.Context, run *entity.GenerationRun) error

	// GetByID 根据 ID 获取运行记录
	GetByID(ctx context.Context, id string) (*entity.GenerationRun, error)

	// Update 更新运行记录
	Update(ctx context.Context, run *entity.GenerationRun) error

	// ListByUser 获取用户运行历史（按时间倒序）
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.GenerationRun], error)
}
