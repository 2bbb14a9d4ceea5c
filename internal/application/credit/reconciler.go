package credit

import (
	"context"
	"errors"

	"z-writer-ai-api/internal/domain/service"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/metrics"
)

// ReconciliationKind 对账动作类型
type ReconciliationKind string

const (
	ReconciliationNone        ReconciliationKind = "none"
	ReconciliationExtraCharge ReconciliationKind = "extra_charge"
	ReconciliationRefund      ReconciliationKind = "refund"
)

// Reconciliation 预估与实际成本的差额描述，Delta 恒为非负。
type Reconciliation struct {
	EstimatedCredits int64
	ActualCredits    int64
	Delta            int64
	Kind             ReconciliationKind
}

// ComputeReconciliation 根据预估与实际积分计算对账动作。
func ComputeReconciliation(estimated, actual int64) Reconciliation {
	switch {
	case actual > estimated:
		return Reconciliation{
			EstimatedCredits: estimated,
			ActualCredits:    actual,
			Delta:            actual - estimated,
			Kind:             ReconciliationExtraCharge,
		}
	case actual < estimated:
		return Reconciliation{
			EstimatedCredits: estimated,
			ActualCredits:    actual,
			Delta:            estimated - actual,
			Kind:             ReconciliationRefund,
		}
	default:
		return Reconciliation{
			EstimatedCredits: estimated,
			ActualCredits:    actual,
			Kind:             ReconciliationNone,
		}
	}
}

// Reconciler 结算服务，在生成结束后把预留积分对齐到实际成本。
type Reconciler struct {
	ledger    *Ledger
	publisher service.EventPublisher
}

func NewReconciler(ledger *Ledger, publisher service.EventPublisher) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		publisher: publisher,
	}
}

// SettleInput 结算输入
type SettleInput struct {
	UserID           string
	RunID            string
	ReservationTxID  string
	EstimatedCredits int64
	ActualCredits    int64
	// ExtraWords 补扣时计入月度配额的字数增量（实际字数超出预估的部分）
	ExtraWords int
}

// SettleResult 结算结果
type SettleResult struct {
	Reconciliation Reconciliation
	// ChargedCredits 本次运行最终净扣除的积分
	ChargedCredits int64
	// UnsettledCredits 补扣失败时遗留的欠收积分
	UnsettledCredits    int64
	ExtraTransactionID  string
	RefundTransactionID string
}

// Settle 按实际成本结算一次生成运行。
// 实际超出预估时补扣差额；补扣失败不回收已交付的内容，
// 差额记为欠收并发布审计事件，余额保持非负。
// 实际低于预估时退回差额，退款失败向上返回错误由调用方降级处理。
func (r *Reconciler) Settle(ctx context.Context, in SettleInput) (*SettleResult, error) {
	ctx, span := tracer.Start(ctx, "reconciler.Settle")
	defer span.End()

	rec := ComputeReconciliation(in.EstimatedCredits, in.ActualCredits)
	result := &SettleResult{
		Reconciliation: rec,
		ChargedCredits: in.ActualCredits,
	}

	switch rec.Kind {
	case ReconciliationNone:
		return result, nil

	case ReconciliationExtraCharge:
		deducted, err := r.ledger.Deduct(ctx, in.UserID, rec.Delta, in.ExtraWords, ToolWriter)
		if err != nil {
			span.RecordError(err)
			logger.Warn(ctx, "settlement shortfall, content delivered without full charge",
				"run_id", in.RunID,
				"estimated", rec.EstimatedCredits,
				"actual", rec.ActualCredits,
				"shortfall", rec.Delta,
				"error", err,
			)
			metrics.CreditSettlementShortfalls.Inc()
			metrics.CreditUnsettledCredits.Add(float64(rec.Delta))
			r.publishShortfall(ctx, in, rec)

			result.ChargedCredits = rec.EstimatedCredits
			result.UnsettledCredits = rec.Delta
			return result, nil
		}
		result.ExtraTransactionID = deducted.TransactionID
		return result, nil

	default:
		refunded, err := r.ledger.Refund(ctx, in.UserID, rec.Delta, in.ReservationTxID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		result.RefundTransactionID = refunded.TransactionID
		return result, nil
	}
}

func (r *Reconciler) publishShortfall(ctx context.Context, in SettleInput, rec Reconciliation) {
	if r.publisher == nil {
		return
	}
	_ = r.publisher.PublishAudit(ctx, service.AuditEvent{
		UserID:       in.UserID,
		Action:       "settlement_shortfall",
		ResourceType: "generation_run",
		ResourceID:   in.RunID,
		Metadata: map[string]any{
			"estimated_credits": rec.EstimatedCredits,
			"actual_credits":    rec.ActualCredits,
			"shortfall":         rec.Delta,
		},
	})
}

// RollbackAll 撤销一次运行产生的全部扣减，用于生成失败或取消后的补偿。
// 按创建顺序的逆序逐笔撤销；已结算的事务视为补偿完成并跳过，
// 因此重复调用是幂等的。
func (r *Reconciler) RollbackAll(ctx context.Context, userID string, deductionTxIDs []string) error {
	ctx, span := tracer.Start(ctx, "reconciler.RollbackAll")
	defer span.End()

	var errs []error
	for i := len(deductionTxIDs) - 1; i >= 0; i-- {
		txID := deductionTxIDs[i]
		if txID == "" {
			continue
		}
		if _, err := r.ledger.Rollback(ctx, userID, txID); err != nil {
			if apperrors.IsCode(err, apperrors.CodeRefundAlreadySettled) {
				continue
			}
			span.RecordError(err)
			logger.Error(ctx, "rollback failed for transaction", err, "transaction_id", txID)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
