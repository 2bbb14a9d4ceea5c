// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

// CreditTransactionRepository 积分账本事务仓储实现
type CreditTransactionRepository struct {
	client *Client
}

// NewCreditTransactionRepository 创建积分账本事务仓储
func NewCreditTransactionRepository(client *Client) *CreditTransactionRepository {
	return &CreditTransactionRepository{client: client}
}

// Create 追加账本事务
func (r *CreditTransactionRepository) Create(ctx context.Context, tx *entity.CreditTransaction) error {
	ctx, span := tracer.Start(ctx, "postgres.CreditTransactionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(tx).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create credit transaction: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取事务
func (r *CreditTransactionRepository) GetByID(ctx context.Context, id string) (*entity.CreditTransaction, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditTransactionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var tx entity.CreditTransaction
	if err := db.First(&tx, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get credit transaction: %w", err)
	}
	return &tx, nil
}

// ListByUser 获取用户事务历史（按时间倒序）
func (r *CreditTransactionRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditTransactionRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.CreditTransaction{}).Where("user_id = ?", userID)

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count credit transactions: %w", err)
	}

	// 获取列表
	var txs []*entity.CreditTransaction
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&txs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}

	return repository.NewPagedResult(txs, total, pagination), nil
}

// UpdateStatus 翻转事务状态
func (r *CreditTransactionRepository) UpdateStatus(ctx context.Context, id string, status entity.TransactionStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.CreditTransactionRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.CreditTransaction{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update credit transaction status: %w", err)
	}
	return nil
}
