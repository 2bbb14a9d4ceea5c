// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

// GenerationRunRepository 生成运行记录仓储实现
type GenerationRunRepository struct {
	client *Client
}

// NewGenerationRunRepository 创建生成运行记录仓储
func NewGenerationRunRepository(client *Client) *GenerationRunRepository {
	return &GenerationRunRepository{client: client}
}

// Create 创建运行记录
func (r *GenerationRunRepository) Create(ctx context.Context, run *entity.GenerationRun) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRunRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generation run: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取运行记录
func (r *GenerationRunRepository) GetByID(ctx context.Context, id string) (*entity.GenerationRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRunRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.GenerationRun
	if err := db.First(&run, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generation run: %w", err)
	}
	return &run, nil
}

// Update 更新运行记录
func (r *GenerationRunRepository) Update(ctx context.Context, run *entity.GenerationRun) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRunRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update generation run: %w", err)
	}
	return nil
}

// ListByUser 获取用户运行历史（按时间倒序）
func (r *GenerationRunRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.GenerationRun], error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRunRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.GenerationRun{}).Where("user_id = ?", userID)

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generation runs: %w", err)
	}

	// 获取列表
	var runs []*entity.GenerationRun
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&runs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}

	return repository.NewPagedResult(runs, total, pagination), nil
}
