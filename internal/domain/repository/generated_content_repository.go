// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// GeneratedContentRepository 已生成内容仓储接口
type GeneratedContentRepository interface {
	// Create 保存已生成内容
	Create(ctx context.Context, content *entity.GeneratedContent) error

	// GetByID 根据 ID 获取内容
	GetByID(ctx context.Context, id string) (*entity.GeneratedContent, error)

	// GetByIDs 批量获取内容（用于相似检索结果回填）
	GetByIDs(ctx context.Context, ids []string) ([]*entity.GeneratedContent, error)

	// ListByUser 获取用户内容列表（按时间倒序）
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.GeneratedContent], error)

	// ListUnindexed 获取尚未写入向量索引的内容
	ListUnindexed(ctx context.Context, limit int) ([]*entity.GeneratedContent, error)

	// MarkIndexed 标记内容已写入向量索引
	MarkIndexed(ctx context.Context, id string) error
}
