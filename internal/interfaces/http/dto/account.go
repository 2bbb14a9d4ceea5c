// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"z-writer-ai-api/internal/domain/entity"
)

// BalanceResponse 账户余额响应
type BalanceResponse struct {
	AccountID           string     `json:"account_id"`
	UserID              string     `json:"user_id"`
	Balance             int64      `json:"balance"`
	PlanTier            string     `json:"plan_tier"`
	TotalCreditsUsed    int64      `json:"total_credits_used"`
	TotalWordsGenerated int64      `json:"total_words_generated"`
	LastDeductionAt     *time.Time `json:"last_deduction_at,omitempty"`
}

// ToBalanceResponse 实体转换为响应
func ToBalanceResponse(a *entity.Account) *BalanceResponse {
	if a == nil {
		return nil
	}
	return &BalanceResponse{
		AccountID:           a.ID,
		UserID:              a.UserID,
		Balance:             a.Balance,
		PlanTier:            string(a.PlanTier),
		TotalCreditsUsed:    a.TotalCreditsUsed,
		TotalWordsGenerated: a.TotalWordsGenerated,
		LastDeductionAt:     a.LastDeductionAt,
	}
}

// TransactionResponse 积分流水响应
type TransactionResponse struct {
	ID                     string    `json:"id"`
	Kind                   string    `json:"kind"`
	Amount                 int64     `json:"amount"`
	WordCount              int       `json:"word_count"`
	PreviousBalance        int64     `json:"previous_balance"`
	NewBalance             int64     `json:"new_balance"`
	Status                 string    `json:"status"`
	Tool                   string    `json:"tool,omitempty"`
	ReferenceTransactionID string    `json:"reference_transaction_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// TransactionListResponse 积分流水列表响应
type TransactionListResponse struct {
	Items []*TransactionResponse `json:"items"`
}

// ToTransactionResponse 实体转换为响应
func ToTransactionResponse(tx *entity.CreditTransaction) *TransactionResponse {
	if tx == nil {
		return nil
	}
	return &TransactionResponse{
		ID:                     tx.ID,
		Kind:                   string(tx.Kind),
		Amount:                 tx.Amount,
		WordCount:              tx.WordCount,
		PreviousBalance:        tx.PreviousBalance,
		NewBalance:             tx.NewBalance,
		Status:                 string(tx.Status),
		Tool:                   tx.Tool,
		ReferenceTransactionID: tx.ReferenceTransactionID,
		CreatedAt:              tx.CreatedAt,
	}
}

// ToTransactionListResponse 实体列表转换为响应
func ToTransactionListResponse(txs []*entity.CreditTransaction) *TransactionListResponse {
	items := make([]*TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, ToTransactionResponse(tx))
	}
	return &TransactionListResponse{Items: items}
}

// UsageResponse 月度用量响应
// RemainingWords 为 -1 表示当前计划不设月度字数上限。
type UsageResponse struct {
	Period         string `json:"period"`
	WordsGenerated int    `json:"words_generated"`
	CreditsUsed    int64  `json:"credits_used"`
	RequestCount   int    `json:"request_count"`
	MonthlyWordCap int    `json:"monthly_word_cap"`
	RemainingWords int    `json:"remaining_words"`
}

// ToUsageResponse 实体转换为响应
func ToUsageResponse(record *entity.MonthlyUsageRecord, plan entity.Plan, remaining int) *UsageResponse {
	resp := &UsageResponse{
		MonthlyWordCap: plan.MonthlyWordCap,
		RemainingWords: remaining,
	}
	if record != nil {
		resp.Period = record.YearMonth
		resp.WordsGenerated = record.WordsGenerated
		resp.CreditsUsed = record.CreditsUsed
		resp.RequestCount = record.RequestCount
	}
	return resp
}
