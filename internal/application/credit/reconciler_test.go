package credit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/service"
	apperrors "z-writer-ai-api/pkg/errors"
)

type capturingPublisher struct {
	audits []service.AuditEvent
}

func (p *capturingPublisher) PublishContentIndex(ctx context.Context, event service.ContentIndexEvent) error {
	return nil
}

func (p *capturingPublisher) PublishAudit(ctx context.Context, event service.AuditEvent) error {
	p.audits = append(p.audits, event)
	return nil
}

func TestComputeReconciliation(t *testing.T) {
	rec := ComputeReconciliation(30, 35)
	assert.Equal(t, ReconciliationExtraCharge, rec.Kind)
	assert.Equal(t, int64(5), rec.Delta)

	rec = ComputeReconciliation(30, 25)
	assert.Equal(t, ReconciliationRefund, rec.Kind)
	assert.Equal(t, int64(5), rec.Delta)

	rec = ComputeReconciliation(30, 30)
	assert.Equal(t, ReconciliationNone, rec.Kind)
	assert.Equal(t, int64(0), rec.Delta)
}

func TestReconciler_Settle_ExtraCharge(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	reconciler := NewReconciler(ledger, &capturingPublisher{})
	ctx := context.Background()

	reserved, err := ledger.Deduct(ctx, account.UserID, 30, 300, ToolWriter)
	require.NoError(t, err)
	require.Equal(t, int64(70), reserved.NewBalance)

	result, err := reconciler.Settle(ctx, SettleInput{
		UserID:           account.UserID,
		RunID:            "run-1",
		ReservationTxID:  reserved.TransactionID,
		EstimatedCredits: 30,
		ActualCredits:    35,
		ExtraWords:       150,
	})
	require.NoError(t, err)
	assert.Equal(t, ReconciliationExtraCharge, result.Reconciliation.Kind)
	assert.Equal(t, int64(35), result.ChargedCredits)
	assert.Equal(t, int64(0), result.UnsettledCredits)
	assert.NotEmpty(t, result.ExtraTransactionID)

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(65), reloaded.Balance)
}

func TestReconciler_Settle_Refund(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	reconciler := NewReconciler(ledger, &capturingPublisher{})
	ctx := context.Background()

	reserved, err := ledger.Deduct(ctx, account.UserID, 30, 300, ToolWriter)
	require.NoError(t, err)

	result, err := reconciler.Settle(ctx, SettleInput{
		UserID:           account.UserID,
		RunID:            "run-1",
		ReservationTxID:  reserved.TransactionID,
		EstimatedCredits: 30,
		ActualCredits:    25,
	})
	require.NoError(t, err)
	assert.Equal(t, ReconciliationRefund, result.Reconciliation.Kind)
	assert.Equal(t, int64(25), result.ChargedCredits)
	assert.NotEmpty(t, result.RefundTransactionID)

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(75), reloaded.Balance)

	var ref entity.CreditTransaction
	require.NoError(t, db.First(&ref, "id = ?", reserved.TransactionID).Error)
	assert.Equal(t, entity.TransactionStatusRefunded, ref.Status)
}

func TestReconciler_Settle_ExactMatch(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	reconciler := NewReconciler(ledger, &capturingPublisher{})
	ctx := context.Background()

	reserved, err := ledger.Deduct(ctx, account.UserID, 30, 300, ToolWriter)
	require.NoError(t, err)

	result, err := reconciler.Settle(ctx, SettleInput{
		UserID:           account.UserID,
		RunID:            "run-1",
		ReservationTxID:  reserved.TransactionID,
		EstimatedCredits: 30,
		ActualCredits:    30,
	})
	require.NoError(t, err)
	assert.Equal(t, ReconciliationNone, result.Reconciliation.Kind)
	assert.Equal(t, int64(30), result.ChargedCredits)

	// 不产生新事务
	var count int64
	db.Model(&entity.CreditTransaction{}).Where("user_id = ?", account.UserID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReconciler_Settle_ShortfallKeepsContent(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	publisher := &capturingPublisher{}
	reconciler := NewReconciler(ledger, publisher)
	ctx := context.Background()

	// 预留后余额只剩 5，补扣 10 必然失败
	reserved, err := ledger.Deduct(ctx, account.UserID, 95, 500, ToolWriter)
	require.NoError(t, err)
	require.Equal(t, int64(5), reserved.NewBalance)

	result, err := reconciler.Settle(ctx, SettleInput{
		UserID:           account.UserID,
		RunID:            "run-short",
		ReservationTxID:  reserved.TransactionID,
		EstimatedCredits: 95,
		ActualCredits:    105,
		ExtraWords:       60,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(95), result.ChargedCredits)
	assert.Equal(t, int64(10), result.UnsettledCredits)
	assert.Empty(t, result.ExtraTransactionID)

	// 余额不会为负
	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(5), reloaded.Balance)

	// 欠收通过审计事件留痕
	require.Len(t, publisher.audits, 1)
	assert.Equal(t, "settlement_shortfall", publisher.audits[0].Action)
	assert.Equal(t, "run-short", publisher.audits[0].ResourceID)
	assert.Equal(t, int64(10), publisher.audits[0].Metadata["shortfall"])
}

func TestReconciler_Settle_RefundFailurePropagates(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	reconciler := NewReconciler(ledger, &capturingPublisher{})
	ctx := context.Background()

	reserved, err := ledger.Deduct(ctx, account.UserID, 30, 300, ToolWriter)
	require.NoError(t, err)

	// 预留事务已被撤销时退款无法结算
	_, err = ledger.Rollback(ctx, account.UserID, reserved.TransactionID)
	require.NoError(t, err)

	_, err = reconciler.Settle(ctx, SettleInput{
		UserID:           account.UserID,
		RunID:            "run-1",
		ReservationTxID:  reserved.TransactionID,
		EstimatedCredits: 30,
		ActualCredits:    25,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRefundAlreadySettled))
}

func TestReconciler_RollbackAll(t *testing.T) {
	ledger, db := newTestLedger(t)
	account := seedAccount(t, db, entity.PlanTierFree)
	reconciler := NewReconciler(ledger, &capturingPublisher{})
	ctx := context.Background()

	first, err := ledger.Deduct(ctx, account.UserID, 30, 200, ToolWriter)
	require.NoError(t, err)
	second, err := ledger.Deduct(ctx, account.UserID, 10, 100, ToolWriter)
	require.NoError(t, err)

	txIDs := []string{first.TransactionID, second.TransactionID}
	require.NoError(t, reconciler.RollbackAll(ctx, account.UserID, txIDs))

	var reloaded entity.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.Balance)
	assert.Equal(t, int64(0), reloaded.TotalWordsGenerated)

	// 重复补偿是幂等的
	require.NoError(t, reconciler.RollbackAll(ctx, account.UserID, txIDs))
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.Balance)
}
