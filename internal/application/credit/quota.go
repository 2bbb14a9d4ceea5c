package credit

import (
	"context"
	"time"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/metrics"
)

// QuotaChecker 校验订阅计划的月度生成字数配额。
type QuotaChecker struct {
	usage repository.MonthlyUsageRepository
	now   func() time.Time
}

func NewQuotaChecker(usage repository.MonthlyUsageRepository) *QuotaChecker {
	return &QuotaChecker{
		usage: usage,
		now:   time.Now,
	}
}

// CurrentPeriod 返回当前用量周期 ("2006-01")
func (q *QuotaChecker) CurrentPeriod() string {
	return entity.UsagePeriod(q.now())
}

// Check 校验新增 words 字后本月用量是否仍在配额内。
// 达到上限恰好用满允许通过，超出返回配额错误；返回当前周期的用量记录。
func (q *QuotaChecker) Check(ctx context.Context, userID string, tier entity.PlanTier, words int) (*entity.MonthlyUsageRecord, error) {
	period := q.CurrentPeriod()
	record, err := q.usage.Get(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = entity.NewMonthlyUsageRecord(userID, period)
	}

	plan := entity.PlanByTier(tier)
	if !plan.QuotaLimited || plan.MonthlyWordCap <= 0 || words <= 0 {
		return record, nil
	}
	if record.WordsGenerated+words > plan.MonthlyWordCap {
		metrics.CreditQuotaRejections.WithLabelValues(string(plan.Tier)).Inc()
		return record, apperrors.Newf(apperrors.CodeQuotaExceeded,
			"monthly word quota exceeded: used %d of %d, requested %d more",
			record.WordsGenerated, plan.MonthlyWordCap, words)
	}
	return record, nil
}

// RemainingWords 返回本月剩余可生成字数，不限配额的计划返回 -1。
func (q *QuotaChecker) RemainingWords(ctx context.Context, userID string, tier entity.PlanTier) (int, error) {
	plan := entity.PlanByTier(tier)
	if !plan.QuotaLimited || plan.MonthlyWordCap <= 0 {
		return -1, nil
	}
	record, err := q.usage.Get(ctx, userID, q.CurrentPeriod())
	if err != nil {
		return 0, err
	}
	used := 0
	if record != nil {
		used = record.WordsGenerated
	}
	remaining := plan.MonthlyWordCap - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
