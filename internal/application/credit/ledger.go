package credit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("application.credit")

// Ledger 积分账本服务
// 所有余额变更都在数据库事务内以 CAS 方式写入：
// 读取账户、校验、条件更新、追加事务流水作为一个原子单元，
// 冲突时整体重试。余额永不为负，任何失败都不留下部分写入。
type Ledger struct {
	accounts     repository.AccountRepository
	transactions repository.CreditTransactionRepository
	usage        repository.MonthlyUsageRepository
	quota        *QuotaChecker
	txManager    repository.Transactor
	retry        *RetryPolicy
}

func NewLedger(
	accounts repository.AccountRepository,
	transactions repository.CreditTransactionRepository,
	usage repository.MonthlyUsageRepository,
	quota *QuotaChecker,
	txManager repository.Transactor,
) *Ledger {
	return &Ledger{
		accounts:     accounts,
		transactions: transactions,
		usage:        usage,
		quota:        quota,
		txManager:    txManager,
		retry:        NewRetryPolicy(),
	}
}

// DeductResult 扣减结果
type DeductResult struct {
	TransactionID string
	NewBalance    int64
	MonthlyUsage  *entity.MonthlyUsageRecord
}

// RefundResult 退款结果
type RefundResult struct {
	TransactionID string
	NewBalance    int64
}

// RollbackResult 撤销结果
type RollbackResult struct {
	TransactionID   string
	NewBalance      int64
	RestoredCredits int64
	ReversedWords   int
}

// Deduct 原子扣减积分并累计月度用量。
// words 为计入月度配额的生成字数，扫描类操作传 0。
// 余额不足返回 CodeInsufficientFunds，配额超限返回 CodeQuotaExceeded，
// 两者都不产生任何写入。
func (l *Ledger) Deduct(ctx context.Context, userID string, credits int64, words int, tool Tool) (*DeductResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Deduct")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("credits", credits),
		attribute.Int("words", words),
		attribute.String("tool", string(tool)),
	)

	if userID == "" {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "user id is required")
	}
	if credits <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if words < 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "negative word count: %d", words)
	}

	var result DeductResult
	err := l.retry.Execute(ctx, "deduct", func(ctx context.Context) error {
		return l.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			account, err := l.accounts.GetByUserID(ctx, userID)
			if err != nil {
				return err
			}
			if account == nil {
				return apperrors.Newf(apperrors.CodeAccountNotFound, "account not found for user %s", userID)
			}

			usage, err := l.quota.Check(ctx, userID, account.PlanTier, words)
			if err != nil {
				return err
			}
			if !account.CanAfford(credits) {
				return apperrors.Newf(apperrors.CodeInsufficientFunds,
					"insufficient credits: need %d, have %d", credits, account.Balance)
			}

			deduction := entity.NewDeduction(userID, credits, words, string(tool), account.Balance)
			if err := l.accounts.ApplyBalanceChange(ctx, account.ID, repository.BalanceChange{
				ExpectedBalance:  account.Balance,
				BalanceDelta:     -credits,
				CreditsUsedDelta: credits,
				WordsDelta:       int64(words),
				TouchDeduction:   true,
			}); err != nil {
				return err
			}
			if err := l.transactions.Create(ctx, deduction); err != nil {
				return err
			}

			period := l.quota.CurrentPeriod()
			if err := l.usage.Ensure(ctx, userID, period); err != nil {
				return err
			}
			if err := l.usage.AddUsage(ctx, userID, period, words, credits, 1); err != nil {
				return err
			}
			usage.WordsGenerated += words
			usage.CreditsUsed += credits
			usage.RequestCount++

			result = DeductResult{
				TransactionID: deduction.ID,
				NewBalance:    deduction.NewBalance,
				MonthlyUsage:  usage,
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		metrics.CreditTransactionsTotal.WithLabelValues(string(entity.TransactionKindDeduction), string(tool), transactionStatus(err)).Inc()
		return nil, err
	}

	metrics.CreditTransactionsTotal.WithLabelValues(string(entity.TransactionKindDeduction), string(tool), "success").Inc()
	metrics.CreditsSpent.WithLabelValues(string(tool)).Add(float64(credits))
	return &result, nil
}

// Refund 将部分或全部积分退回到账户，关联原扣减事务。
// 原事务已被退款或撤销时返回 CodeRefundAlreadySettled；
// 月度字数计数保持不变，退款只回补余额。
func (l *Ledger) Refund(ctx context.Context, userID string, credits int64, referenceTxID string) (*RefundResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("credits", credits),
		attribute.String("reference_tx_id", referenceTxID),
	)

	if credits <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if referenceTxID == "" {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "reference transaction id is required")
	}

	var result RefundResult
	var refTool string
	err := l.retry.Execute(ctx, "refund", func(ctx context.Context) error {
		return l.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			ref, err := l.loadReference(ctx, userID, referenceTxID)
			if err != nil {
				return err
			}
			refTool = ref.Tool
			if credits > ref.Amount {
				return apperrors.Newf(apperrors.CodeInvalidAmount,
					"refund %d exceeds deducted amount %d", credits, ref.Amount)
			}

			account, err := l.accounts.GetByUserID(ctx, userID)
			if err != nil {
				return err
			}
			if account == nil {
				return apperrors.Newf(apperrors.CodeAccountNotFound, "account not found for user %s", userID)
			}

			usedDelta := credits
			if usedDelta > account.TotalCreditsUsed {
				usedDelta = account.TotalCreditsUsed
			}

			refund := entity.NewRefund(userID, credits, ref.ID, account.Balance)
			if err := l.accounts.ApplyBalanceChange(ctx, account.ID, repository.BalanceChange{
				ExpectedBalance:  account.Balance,
				BalanceDelta:     credits,
				CreditsUsedDelta: -usedDelta,
			}); err != nil {
				return err
			}
			if err := l.transactions.Create(ctx, refund); err != nil {
				return err
			}
			if err := l.transactions.UpdateStatus(ctx, ref.ID, entity.TransactionStatusRefunded); err != nil {
				return err
			}

			result = RefundResult{
				TransactionID: refund.ID,
				NewBalance:    refund.NewBalance,
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		metrics.CreditTransactionsTotal.WithLabelValues(string(entity.TransactionKindRefund), refTool, transactionStatus(err)).Inc()
		return nil, err
	}

	metrics.CreditTransactionsTotal.WithLabelValues(string(entity.TransactionKindRefund), refTool, "success").Inc()
	return &result, nil
}

// Rollback 整体撤销一笔扣减：退回全部积分并回退账户与月度计数。
// 撤销金额与字数取自被引用的扣减事务本身，调用方无法传入不一致的值。
// 月度计数回退到扣减发生时所在的周期，计数下限为零。
func (l *Ledger) Rollback(ctx context.Context, userID string, referenceTxID string) (*RollbackResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Rollback")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("reference_tx_id", referenceTxID),
	)

	if referenceTxID == "" {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "reference transaction id is required")
	}

	var result RollbackResult
	var refTool string
	err := l.retry.Execute(ctx, "rollback", func(ctx context.Context) error {
		return l.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			ref, err := l.loadReference(ctx, userID, referenceTxID)
			if err != nil {
				return err
			}
			refTool = ref.Tool

			account, err := l.accounts.GetByUserID(ctx, userID)
			if err != nil {
				return err
			}
			if account == nil {
				return apperrors.Newf(apperrors.CodeAccountNotFound, "account not found for user %s", userID)
			}

			usedDelta := ref.Amount
			if usedDelta > account.TotalCreditsUsed {
				usedDelta = account.TotalCreditsUsed
			}
			wordsDelta := int64(ref.WordCount)
			if wordsDelta > account.TotalWordsGenerated {
				wordsDelta = account.TotalWordsGenerated
			}

			rollback := entity.NewRollback(userID, ref.Amount, ref.WordCount, ref.ID, account.Balance)
			if err := l.accounts.ApplyBalanceChange(ctx, account.ID, repository.BalanceChange{
				ExpectedBalance:  account.Balance,
				BalanceDelta:     ref.Amount,
				CreditsUsedDelta: -usedDelta,
				WordsDelta:       -wordsDelta,
			}); err != nil {
				return err
			}
			if err := l.transactions.Create(ctx, rollback); err != nil {
				return err
			}
			if err := l.transactions.UpdateStatus(ctx, ref.ID, entity.TransactionStatusRolledBack); err != nil {
				return err
			}
			if err := l.usage.ReverseUsage(ctx, userID, entity.UsagePeriod(ref.CreatedAt), ref.WordCount, ref.Amount); err != nil {
				return err
			}

			result = RollbackResult{
				TransactionID:   rollback.ID,
				NewBalance:      rollback.NewBalance,
				RestoredCredits: ref.Amount,
				ReversedWords:   ref.WordCount,
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		metrics.CreditTransactionsTotal.WithLabelValues(string(entity.TransactionKindRollback), refTool, transactionStatus(err)).Inc()
		return nil, err
	}

	metrics.CreditTransactionsTotal.WithLabelValues(string(entity.TransactionKindRollback), refTool, "success").Inc()
	return &result, nil
}

// loadReference 加载并校验被退款或撤销的扣减事务。
// 事务不属于该用户时按不存在处理，不泄露他人事务。
func (l *Ledger) loadReference(ctx context.Context, userID, referenceTxID string) (*entity.CreditTransaction, error) {
	ref, err := l.transactions.GetByID(ctx, referenceTxID)
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.UserID != userID {
		return nil, apperrors.Newf(apperrors.CodeTransactionNotFound, "transaction %s not found", referenceTxID)
	}
	if ref.Kind != entity.TransactionKindDeduction {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "only deductions can be reversed, got %s", ref.Kind)
	}
	if ref.IsSettled() {
		return nil, apperrors.Newf(apperrors.CodeRefundAlreadySettled,
			"transaction %s already settled with status %s", ref.ID, ref.Status)
	}
	return ref, nil
}

// GetBalance 查询账户余额
func (l *Ledger) GetBalance(ctx context.Context, userID string) (*entity.Account, error) {
	account, err := l.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.Newf(apperrors.CodeAccountNotFound, "account not found for user %s", userID)
	}
	return account, nil
}

// GetHistory 查询账本事务历史
func (l *Ledger) GetHistory(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	return l.transactions.ListByUser(ctx, userID, pagination)
}

// GetUsage 查询当前周期的月度用量，没有记录时返回零值记录。
func (l *Ledger) GetUsage(ctx context.Context, userID string) (*entity.MonthlyUsageRecord, error) {
	period := l.quota.CurrentPeriod()
	record, err := l.usage.Get(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = entity.NewMonthlyUsageRecord(userID, period)
	}
	return record, nil
}

// Quota 返回账本使用的配额检查器
func (l *Ledger) Quota() *QuotaChecker {
	return l.quota
}

func transactionStatus(err error) string {
	if apperrors.IsCode(err, apperrors.CodeTransactionConflict) {
		return "conflict"
	}
	return "error"
}
