package credit

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"z-writer-ai-api/internal/domain/repository"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/metrics"
)

// RetryPolicy 账本写入的重试策略，只对乐观写冲突退避重试。
type RetryPolicy struct {
	maxAttempts     uint
	initialInterval time.Duration
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		maxAttempts:     3,
		initialInterval: 10 * time.Millisecond,
	}
}

// Execute 执行 fn，遇 ErrWriteConflict 重试，其余错误立即终止。
// operation 仅用于冲突指标打点。重试预算耗尽后返回事务冲突业务错误。
func (p *RetryPolicy) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := p.maxAttempts
	if attempts == 0 {
		attempts = 3
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := fn(ctx); err != nil {
			if errors.Is(err, repository.ErrWriteConflict) {
				metrics.CreditWriteConflicts.WithLabelValues(operation).Inc()
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(attempts),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrWriteConflict) {
		return apperrors.Wrap(err, apperrors.CodeTransactionConflict, "ledger write conflict, retries exhausted")
	}
	return err
}
