package credit

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	apperrors "z-writer-ai-api/pkg/errors"
)

func newTestQuotaChecker(t *testing.T) (*QuotaChecker, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.MonthlyUsageRecord{}))

	client := postgres.NewClientWithDB(db)
	return NewQuotaChecker(postgres.NewMonthlyUsageRepository(client)), db
}

func TestQuotaChecker_PeriodFromClock(t *testing.T) {
	checker, _ := newTestQuotaChecker(t)
	checker.now = func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	assert.Equal(t, "2026-03", checker.CurrentPeriod())
}

func TestQuotaChecker_FreshPeriod(t *testing.T) {
	checker, _ := newTestQuotaChecker(t)
	userID := uuid.NewString()

	record, err := checker.Check(context.Background(), userID, entity.PlanTierFree, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, record.WordsGenerated)
}

func TestQuotaChecker_RejectsOverCap(t *testing.T) {
	checker, db := newTestQuotaChecker(t)
	userID := uuid.NewString()
	period := checker.CurrentPeriod()

	seeded := entity.NewMonthlyUsageRecord(userID, period)
	seeded.WordsGenerated = 999
	require.NoError(t, db.Create(seeded).Error)

	// 恰好用满允许
	_, err := checker.Check(context.Background(), userID, entity.PlanTierFree, 1)
	assert.NoError(t, err)

	// 超出一个字即拒绝
	_, err = checker.Check(context.Background(), userID, entity.PlanTierFree, 2)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeQuotaExceeded))
}

func TestQuotaChecker_UnlimitedPlans(t *testing.T) {
	checker, db := newTestQuotaChecker(t)
	userID := uuid.NewString()
	period := checker.CurrentPeriod()

	seeded := entity.NewMonthlyUsageRecord(userID, period)
	seeded.WordsGenerated = 100000
	require.NoError(t, db.Create(seeded).Error)

	_, err := checker.Check(context.Background(), userID, entity.PlanTierPro, 50000)
	assert.NoError(t, err)
	_, err = checker.Check(context.Background(), userID, entity.PlanTierPremium, 50000)
	assert.NoError(t, err)
}

func TestQuotaChecker_RemainingWords(t *testing.T) {
	checker, db := newTestQuotaChecker(t)
	userID := uuid.NewString()
	ctx := context.Background()

	remaining, err := checker.RemainingWords(ctx, userID, entity.PlanTierFree)
	require.NoError(t, err)
	assert.Equal(t, 1000, remaining)

	seeded := entity.NewMonthlyUsageRecord(userID, checker.CurrentPeriod())
	seeded.WordsGenerated = 400
	require.NoError(t, db.Create(seeded).Error)

	remaining, err = checker.RemainingWords(ctx, userID, entity.PlanTierFree)
	require.NoError(t, err)
	assert.Equal(t, 600, remaining)

	remaining, err = checker.RemainingWords(ctx, userID, entity.PlanTierPro)
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)
}
