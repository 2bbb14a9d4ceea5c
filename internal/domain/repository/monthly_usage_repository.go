// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// MonthlyUsageRepository 月度用量仓储接口
type MonthlyUsageRepository interface {
	// Ensure 惰性创建当期用量记录，已存在时忽略
	Ensure(ctx context.Context, userID, yearMonth string) error

	// Get 获取指定周期的用量记录
	Get(ctx context.Context, userID, yearMonth string) (*entity.MonthlyUsageRecord, error)

	// AddUsage 累加当期用量
	AddUsage(ctx context.Context, userID, yearMonth string, words int, credits int64, requests int) error

	// ReverseUsage 回退当期用量，计数下限为零
	ReverseUsage(ctx context.Context, userID, yearMonth string, words int, credits int64) error
}
