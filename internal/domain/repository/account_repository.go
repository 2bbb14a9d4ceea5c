// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// BalanceChange 账户余额的 CAS 变更描述
// ExpectedBalance 是读取时观察到的余额，写入时作为冲突检测条件。
type BalanceChange struct {
	ExpectedBalance  int64
	BalanceDelta     int64
	CreditsUsedDelta int64
	WordsDelta       int64
	TouchDeduction   bool
}

// AccountRepository 积分账户仓储接口
type AccountRepository interface {
	// Create 创建账户
	Create(ctx context.Context, account *entity.Account) error

	// GetByID 根据 ID 获取账户
	GetByID(ctx context.Context, id string) (*entity.Account, error)

	// GetByUserID 根据用户 ID 获取账户
	GetByUserID(ctx context.Context, userID string) (*entity.Account, error)

	// ApplyBalanceChange 以期望余额为条件原子调整账户
	// 余额与期望不符时返回 ErrWriteConflict
	ApplyBalanceChange(ctx context.Context, id string, change BalanceChange) error

	// UpdatePlanTier 更新账户计划档位
	UpdatePlanTier(ctx context.Context, userID string, tier entity.PlanTier) error
}
