// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// MonthlyUsageRecord 月度用量记录
// 以 (user_id, year_month) 唯一，首次使用时惰性创建；
// 计数只增不减，撤销调整时下限为零。
type MonthlyUsageRecord struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_month"`
	YearMonth      string    `json:"year_month" gorm:"type:varchar(7);not null;uniqueIndex:idx_usage_user_month"`
	WordsGenerated int       `json:"words_generated" gorm:"not null;default:0"`
	CreditsUsed    int64     `json:"credits_used" gorm:"not null;default:0"`
	RequestCount   int       `json:"request_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (MonthlyUsageRecord) TableName() string {
	return "monthly_usage_records"
}

// NewMonthlyUsageRecord 创建空的月度用量记录
func NewMonthlyUsageRecord(userID, yearMonth string) *MonthlyUsageRecord {
	now := time.Now()
	return &MonthlyUsageRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		YearMonth: yearMonth,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UsagePeriod 计算时间所属的用量周期 ("2006-01")
func UsagePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}
