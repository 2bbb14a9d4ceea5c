// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// CreditTransactionRepository 积分账本事务仓储接口
type CreditTransactionRepository interface {
	// Create 追加账本事务
	Create(ctx context.Context, tx *entity.CreditTransaction) error

	// GetByID 根据 ID 获取事务
	GetByID(ctx context.Context, id string) (*entity.CreditTransaction, error)

	// ListByUser 获取用户事务历史（按时间倒序）
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.CreditTransaction], error)

	// UpdateStatus 翻转事务状态
	UpdateStatus(ctx context.Context, id string, status entity.TransactionStatus) error
}
