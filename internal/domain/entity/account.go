// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account 积分账户实体
// 余额只能通过账本事务变更，永不为负。
type Account struct {
	ID                  string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID              string     `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	Balance             int64      `json:"balance" gorm:"not null;default:0"`
	TotalCreditsUsed    int64      `json:"total_credits_used" gorm:"not null;default:0"`
	TotalWordsGenerated int64      `json:"total_words_generated" gorm:"not null;default:0"`
	PlanTier            PlanTier   `json:"plan_tier" gorm:"type:varchar(20);not null;default:'free'"`
	LastDeductionAt     *time.Time `json:"last_deduction_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}

// NewAccount 创建新账户并发放注册积分
func NewAccount(userID string, tier PlanTier) *Account {
	now := time.Now()
	return &Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   PlanByTier(tier).SignupCredits,
		PlanTier:  tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanAfford 检查余额是否足以支付指定积分
func (a *Account) CanAfford(credits int64) bool {
	return a.Balance >= credits
}
