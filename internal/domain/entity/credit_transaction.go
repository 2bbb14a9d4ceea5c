// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind 账本事务类型
type TransactionKind string

const (
	TransactionKindDeduction TransactionKind = "deduction"
	TransactionKindRefund    TransactionKind = "refund"
	TransactionKindRollback  TransactionKind = "rollback"
)

// TransactionStatus 账本事务状态
// 扣减事务被部分退款后标记为 refunded，被整体撤销后标记为 rolled_back，
// 两种状态都拒绝再次退款。
type TransactionStatus string

const (
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusRefunded   TransactionStatus = "refunded"
	TransactionStatusRolledBack TransactionStatus = "rolled_back"
)

// CreditTransaction 积分账本事务，只追加不修改（状态翻转除外）
type CreditTransaction struct {
	ID                     string            `json:"id" gorm:"type:uuid;primaryKey"`
	UserID                 string            `json:"user_id" gorm:"type:uuid;index;not null"`
	Kind                   TransactionKind   `json:"kind" gorm:"type:varchar(20);not null"`
	Amount                 int64             `json:"amount" gorm:"not null"`
	WordCount              int               `json:"word_count" gorm:"not null;default:0"`
	PreviousBalance        int64             `json:"previous_balance" gorm:"not null"`
	NewBalance             int64             `json:"new_balance" gorm:"not null"`
	Status                 TransactionStatus `json:"status" gorm:"type:varchar(20);not null;default:'completed'"`
	Tool                   string            `json:"tool,omitempty" gorm:"type:varchar(32)"`
	ReferenceTransactionID string            `json:"reference_transaction_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt              time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// NewDeduction 创建扣减事务
func NewDeduction(userID string, amount int64, wordCount int, tool string, previousBalance int64) *CreditTransaction {
	return &CreditTransaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Kind:            TransactionKindDeduction,
		Amount:          amount,
		WordCount:       wordCount,
		PreviousBalance: previousBalance,
		NewBalance:      previousBalance - amount,
		Status:          TransactionStatusCompleted,
		Tool:            tool,
		CreatedAt:       time.Now(),
	}
}

// NewRefund 创建退款事务，关联原扣减事务
func NewRefund(userID string, amount int64, referenceTxID string, previousBalance int64) *CreditTransaction {
	return &CreditTransaction{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		Kind:                   TransactionKindRefund,
		Amount:                 amount,
		PreviousBalance:        previousBalance,
		NewBalance:             previousBalance + amount,
		Status:                 TransactionStatusCompleted,
		ReferenceTransactionID: referenceTxID,
		CreatedAt:              time.Now(),
	}
}

// NewRollback 创建撤销事务，关联被撤销的扣减事务
func NewRollback(userID string, amount int64, wordCount int, referenceTxID string, previousBalance int64) *CreditTransaction {
	return &CreditTransaction{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		Kind:                   TransactionKindRollback,
		Amount:                 amount,
		WordCount:              wordCount,
		PreviousBalance:        previousBalance,
		NewBalance:             previousBalance + amount,
		Status:                 TransactionStatusCompleted,
		ReferenceTransactionID: referenceTxID,
		CreatedAt:              time.Now(),
	}
}

// IsSettled 检查事务是否已被退款或撤销
func (t *CreditTransaction) IsSettled() bool {
	return t.Status == TransactionStatusRefunded || t.Status == TransactionStatusRolledBack
}
