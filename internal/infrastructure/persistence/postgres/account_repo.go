// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

// AccountRepository 积分账户仓储实现
type AccountRepository struct {
	client *Client
}

// NewAccountRepository 创建积分账户仓储
func NewAccountRepository(client *Client) *AccountRepository {
	return &AccountRepository{client: client}
}

// Create 创建账户
func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(account).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取账户
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var account entity.Account
	if err := db.First(&account, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetByUserID 根据用户 ID 获取账户
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*entity.Account, error) {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.GetByUserID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var account entity.Account
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get account by user id: %w", err)
	}
	return &account, nil
}

// ApplyBalanceChange 以期望余额为条件原子调整账户
// WHERE balance = ? 作为写冲突检测：期间余额被并发修改时影响行数为零。
func (r *AccountRepository) ApplyBalanceChange(ctx context.Context, id string, change repository.BalanceChange) error {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.ApplyBalanceChange")
	defer span.End()

	db := getDB(ctx, r.client.db)
	updates := map[string]interface{}{
		"balance":               gorm.Expr("balance + ?", change.BalanceDelta),
		"total_credits_used":    gorm.Expr("total_credits_used + ?", change.CreditsUsedDelta),
		"total_words_generated": gorm.Expr("total_words_generated + ?", change.WordsDelta),
	}
	if change.TouchDeduction {
		updates["last_deduction_at"] = time.Now()
	}

	result := db.Model(&entity.Account{}).
		Where("id = ? AND balance = ?", id, change.ExpectedBalance).
		Updates(updates)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to apply balance change: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrWriteConflict
	}
	return nil
}

// UpdatePlanTier 更新账户计划档位
func (r *AccountRepository) UpdatePlanTier(ctx context.Context, userID string, tier entity.PlanTier) error {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.UpdatePlanTier")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Account{}).Where("user_id = ?", userID).Update("plan_tier", tier).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update plan tier: %w", err)
	}
	return nil
}
