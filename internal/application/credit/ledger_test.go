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
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	apperrors "z-writer-ai-api/pkg/errors"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entity.Account{},
		&entity.CreditTransaction{},
		&entity.MonthlyUsageRecord{},
	))

	client := postgres.NewClientWithDB(db)
	usage := postgres.NewMonthlyUsageRepository(client)
	ledger := NewLedger(
		postgres.NewAccountRepository(client),
		postgres.NewCreditTransactionRepository(client),
		usage,
		NewQuotaChecker(usage),
		postgres.NewTxManager(client),
	)
	return ledger, db
}

func seedAccount(t *testing.T, db *gorm.DB, tier entity.PlanTier) *entity.Account {
	t.Helper()
	account := entity.NewAccount(uuid.NewString(), tier)
	require.NoError(t, db.Create(account).Error)
	return account
}

func currentPeriod() string {
	return entity.UsagePeriod(time.Now())
}

func TestLedger_Deduct(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)

	result, err := ledger.Deduct(context.Background(), account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)
	assert.Equal(t, int64(70), result.NewBalance)
	assert.NotEmpty(t, result.TransactionID)
	assert.Equal(t, 200, result.MonthlyUsage.WordsGenerated)
	assert.Equal(t, int64(30), result.MonthlyUsage.CreditsUsed)
	assert.Equal(t, 1, result.MonthlyUsage.RequestCount)

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(70), reloaded.Balance)
	assert.Equal(t, int64(30), reloaded.TotalCreditsUsed)
	assert.Equal(t, int64(200), reloaded.TotalWordsGenerated)
	assert.NotNil(t, reloaded.LastDeductionAt)

	var tx entity.CreditTransaction
	require.NoError(t, db.First(&tx, "id = ?", result.TransactionID).Error)
	assert.Equal(t, entity.TransactionKindDeduction, tx.Kind)
	assert.Equal(t, int64(100), tx.PreviousBalance)
	assert.Equal(t, int64(70), tx.NewBalance)
	assert.Equal(t, string(ToolWriter), tx.Tool)
	assert.Equal(t, entity.TransactionStatusCompleted, tx.Status)
}

func TestLedger_Deduct_InsufficientFunds(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)

	_, err := ledger.Deduct(context.Background(), account.UserID, 200, 100, ToolWriter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientFunds))

	// 拒绝不留下任何写入
	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.Balance)
	assert.Equal(t, int64(0), reloaded.TotalCreditsUsed)

	var count int64
	db.Model(&entity.CreditTransaction{}).Where("user_id = ?", account.UserID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestLedger_Deduct_InvalidAmount(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)

	_, err := ledger.Deduct(context.Background(), account.UserID, 0, 100, ToolWriter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAmount))

	_, err = ledger.Deduct(context.Background(), account.UserID, -5, 100, ToolWriter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAmount))
}

func TestLedger_Deduct_AccountMissing(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Deduct(context.Background(), uuid.NewString(), 10, 100, ToolWriter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAccountNotFound))
}

func TestLedger_Deduct_QuotaBoundary(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	// 先用到 999 / 1000
	_, err := ledger.Deduct(ctx, account.UserID, 10, 999, ToolWriter)
	require.NoError(t, err)

	// 剩 1 字配额时申请 2 字被拒
	_, err = ledger.Deduct(ctx, account.UserID, 1, 2, ToolWriter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeQuotaExceeded))

	// 恰好用满允许通过
	result, err := ledger.Deduct(ctx, account.UserID, 1, 1, ToolWriter)
	require.NoError(t, err)
	assert.Equal(t, 1000, result.MonthlyUsage.WordsGenerated)

	// 用满后任何字数请求都被拒
	_, err = ledger.Deduct(ctx, account.UserID, 1, 1, ToolWriter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeQuotaExceeded))

	// 不占字数的扫描类扣减不受配额影响
	_, err = ledger.Deduct(ctx, account.UserID, 1, 0, ToolDetector)
	assert.NoError(t, err)
}

func TestLedger_Deduct_ProPlanUnlimited(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierPro)

	// pro 计划不受月度字数配额限制
	result, err := ledger.Deduct(context.Background(), account.UserID, 100, 5000, ToolWriter)
	require.NoError(t, err)
	assert.Equal(t, 5000, result.MonthlyUsage.WordsGenerated)
}

func TestLedger_Refund(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)

	refunded, err := ledger.Refund(ctx, account.UserID, 5, deducted.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), refunded.NewBalance)

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(75), reloaded.Balance)
	assert.Equal(t, int64(25), reloaded.TotalCreditsUsed)
	// 退款不回退字数统计
	assert.Equal(t, int64(200), reloaded.TotalWordsGenerated)

	var usage entity.MonthlyUsageRecord
	require.NoError(t, db.First(&usage, "user_id = ? AND year_month = ?", account.UserID, currentPeriod()).Error)
	assert.Equal(t, 200, usage.WordsGenerated)

	var ref entity.CreditTransaction
	require.NoError(t, db.First(&ref, "id = ?", deducted.TransactionID).Error)
	assert.Equal(t, entity.TransactionStatusRefunded, ref.Status)
}

func TestLedger_Refund_Idempotency(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, account.UserID, 5, deducted.TransactionID)
	require.NoError(t, err)

	// 已结算的事务拒绝二次退款
	_, err = ledger.Refund(ctx, account.UserID, 5, deducted.TransactionID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRefundAlreadySettled))

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(75), reloaded.Balance)
}

func TestLedger_Refund_ExceedsDeduction(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, account.UserID, 31, deducted.TransactionID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAmount))
}

func TestLedger_Refund_CrossUserDenied(t *testing.T) {
	ledger, db := newTestLedger(t)
	alice := seedAccount(t, db, entity.PlanTierFree)
	mallory := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, alice.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, mallory.UserID, 5, deducted.TransactionID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTransactionNotFound))
}

func TestLedger_Rollback(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)

	result, err := ledger.Rollback(ctx, account.UserID, deducted.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.NewBalance)
	assert.Equal(t, int64(30), result.RestoredCredits)
	assert.Equal(t, 200, result.ReversedWords)

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.Balance)
	assert.Equal(t, int64(0), reloaded.TotalCreditsUsed)
	assert.Equal(t, int64(0), reloaded.TotalWordsGenerated)

	// 月度配额同步回退
	var usage entity.MonthlyUsageRecord
	require.NoError(t, db.First(&usage, "user_id = ? AND year_month = ?", account.UserID, currentPeriod()).Error)
	assert.Equal(t, 0, usage.WordsGenerated)
	assert.Equal(t, int64(0), usage.CreditsUsed)

	var ref entity.CreditTransaction
	require.NoError(t, db.First(&ref, "id = ?", deducted.TransactionID).Error)
	assert.Equal(t, entity.TransactionStatusRolledBack, ref.Status)
}

func TestLedger_Rollback_Idempotency(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)

	_, err = ledger.Rollback(ctx, account.UserID, deducted.TransactionID)
	require.NoError(t, err)

	_, err = ledger.Rollback(ctx, account.UserID, deducted.TransactionID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRefundAlreadySettled))

	// 余额不会被重复回补
	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.Balance)
}

func TestLedger_History(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	ctx := context.Background()

	deducted, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)
	_, err = ledger.Refund(ctx, account.UserID, 5, deducted.TransactionID)
	require.NoError(t, err)

	page, err := ledger.GetHistory(ctx, account.UserID, repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	// 按时间倒序，最近的退款在前
	assert.Equal(t, entity.TransactionKindRefund, page.Items[0].Kind)
	assert.Equal(t, entity.TransactionKindDeduction, page.Items[1].Kind)
}

func TestLedger_GetBalance(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierPremium)

	got, err := ledger.GetBalance(context.Background(), account.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.Balance)

	_, err = ledger.GetBalance(context.Background(), uuid.NewString())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAccountNotFound))
}

func TestLedger_GetUsage_EmptyPeriod(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)

	usage, err := ledger.GetUsage(context.Background(), account.UserID)
	require.NoError(t, err)
	assert.Equal(t, currentPeriod(), usage.YearMonth)
	assert.Equal(t, 0, usage.WordsGenerated)
	assert.Equal(t, int64(0), usage.CreditsUsed)
}
