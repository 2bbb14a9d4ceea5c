// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-writer-ai-api/internal/domain/entity"
)

// MonthlyUsageRepository 月度用量仓储实现
type MonthlyUsageRepository struct {
	client *Client
}

// NewMonthlyUsageRepository 创建月度用量仓储
func NewMonthlyUsageRepository(client *Client) *MonthlyUsageRepository {
	return &MonthlyUsageRepository{client: client}
}

// Ensure 惰性创建当期用量记录，已存在时忽略
func (r *MonthlyUsageRepository) Ensure(ctx context.Context, userID, yearMonth string) error {
	ctx, span := tracer.Start(ctx, "postgres.MonthlyUsageRepository.Ensure")
	defer span.End()

	db := getDB(ctx, r.client.db)
	record := entity.NewMonthlyUsageRecord(userID, yearMonth)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to ensure monthly usage record: %w", err)
	}
	return nil
}

// Get 获取指定周期的用量记录
func (r *MonthlyUsageRepository) Get(ctx context.Context, userID, yearMonth string) (*entity.MonthlyUsageRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.MonthlyUsageRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var record entity.MonthlyUsageRecord
	if err := db.First(&record, "user_id = ? AND year_month = ?", userID, yearMonth).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get monthly usage record: %w", err)
	}
	return &record, nil
}

// AddUsage 累加当期用量
func (r *MonthlyUsageRepository) AddUsage(ctx context.Context, userID, yearMonth string, words int, credits int64, requests int) error {
	ctx, span := tracer.Start(ctx, "postgres.MonthlyUsageRepository.AddUsage")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.MonthlyUsageRecord{}).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		Updates(map[string]interface{}{
			"words_generated": gorm.Expr("words_generated + ?", words),
			"credits_used":    gorm.Expr("credits_used + ?", credits),
			"request_count":   gorm.Expr("request_count + ?", requests),
		}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add monthly usage: %w", err)
	}
	return nil
}

// ReverseUsage 回退当期用量，计数下限为零
func (r *MonthlyUsageRepository) ReverseUsage(ctx context.Context, userID, yearMonth string, words int, credits int64) error {
	ctx, span := tracer.Start(ctx, "postgres.MonthlyUsageRepository.ReverseUsage")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.MonthlyUsageRecord{}).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		Updates(map[string]interface{}{
			"words_generated": gorm.Expr("CASE WHEN words_generated >= ? THEN words_generated - ? ELSE 0 END", words, words),
			"credits_used":    gorm.Expr("CASE WHEN credits_used >= ? THEN credits_used - ? ELSE 0 END", credits, credits),
		}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to reverse monthly usage: %w", err)
	}
	return nil
}
