// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

// GeneratedContentRepository 已生成内容仓储实现
type GeneratedContentRepository struct {
	client *Client
}

// NewGeneratedContentRepository 创建已生成内容仓储
func NewGeneratedContentRepository(client *Client) *GeneratedContentRepository {
	return &GeneratedContentRepository{client: client}
}

// Create 保存已生成内容
func (r *GeneratedContentRepository) Create(ctx context.Context, content *entity.GeneratedContent) error {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(content).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generated content: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取内容
func (r *GeneratedContentRepository) GetByID(ctx context.Context, id string) (*entity.GeneratedContent, error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var content entity.GeneratedContent
	if err := db.First(&content, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generated content: %w", err)
	}
	return &content, nil
}

// GetByIDs 批量获取内容（用于相似检索结果回填）
func (r *GeneratedContentRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.GeneratedContent, error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var contents []*entity.GeneratedContent
	if err := db.Where("id IN ?", ids).Find(&contents).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generated contents: %w", err)
	}
	return contents, nil
}

// ListByUser 获取用户内容列表（按时间倒序）
func (r *GeneratedContentRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.GeneratedContent], error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.GeneratedContent{}).Where("user_id = ?", userID)

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generated contents: %w", err)
	}

	// 获取列表
	var contents []*entity.GeneratedContent
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&contents).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generated contents: %w", err)
	}

	return repository.NewPagedResult(contents, total, pagination), nil
}

// ListUnindexed 获取尚未写入向量索引的内容
func (r *GeneratedContentRepository) ListUnindexed(ctx context.Context, limit int) ([]*entity.GeneratedContent, error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.ListUnindexed")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var contents []*entity.GeneratedContent
	if err := db.Where("indexed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&contents).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list unindexed contents: %w", err)
	}
	return contents, nil
}

// MarkIndexed 标记内容已写入向量索引
func (r *GeneratedContentRepository) MarkIndexed(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.MarkIndexed")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.GeneratedContent{}).Where("id = ?", id).Update("indexed", true).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark content indexed: %w", err)
	}
	return nil
}
