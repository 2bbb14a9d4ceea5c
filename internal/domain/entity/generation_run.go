// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus 生成流水线运行状态
type RunStatus string

const (
	RunStatusReservingFunds RunStatus = "reserving_funds"
	RunStatusGenerating     RunStatus = "generating"
	RunStatusReconciling    RunStatus = "reconciling"
	RunStatusComplete       RunStatus = "complete"
	RunStatusFailedRefunded RunStatus = "failed_refunded"
)

// GenerationRun 一次生成流水线的执行记录
// 既是对账协议的审计轨迹，也是运行历史查询的载体。
type GenerationRun struct {
	ID                 string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID             string    `json:"user_id" gorm:"type:uuid;index;not null"`
	Status             RunStatus `json:"status" gorm:"type:varchar(20);not null;default:'reserving_funds'"`
	Prompt             string    `json:"prompt" gorm:"type:text;not null"`
	Style              string    `json:"style,omitempty" gorm:"type:varchar(64)"`
	Tone               string    `json:"tone,omitempty" gorm:"type:varchar(64)"`
	QualityTier        string    `json:"quality_tier,omitempty" gorm:"type:varchar(20)"`
	PlanTier           PlanTier  `json:"plan_tier" gorm:"type:varchar(20);not null"`
	RequestedWordCount int       `json:"requested_word_count" gorm:"not null"`
	ActualWordCount    int       `json:"actual_word_count" gorm:"not null;default:0"`
	EstimatedCredits   int64     `json:"estimated_credits" gorm:"not null;default:0"`
	ChargedCredits     int64     `json:"charged_credits" gorm:"not null;default:0"`
	// UnsettledCredits 补扣失败后遗留的未结算积分
	UnsettledCredits         int64      `json:"unsettled_credits" gorm:"not null;default:0"`
	ChunksGenerated          int        `json:"chunks_generated" gorm:"not null;default:0"`
	RefinementCycles         int        `json:"refinement_cycles" gorm:"not null;default:0"`
	UsedSimilarContent       bool       `json:"used_similar_content" gorm:"not null;default:false"`
	OriginalityScore         float64    `json:"originality_score" gorm:"not null;default:0"`
	AIDetectionScore         float64    `json:"ai_detection_score" gorm:"not null;default:0"`
	ReadabilityScore         float64    `json:"readability_score" gorm:"not null;default:0"`
	RequiresReview           bool       `json:"requires_review" gorm:"not null;default:false"`
	ContentID                string     `json:"content_id,omitempty" gorm:"type:varchar(36)"`
	ReservationTransactionID string     `json:"reservation_transaction_id,omitempty" gorm:"type:varchar(36)"`
	ErrorMessage             string     `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt                time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt                time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt                *time.Time `json:"started_at,omitempty"`
	CompletedAt              *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (GenerationRun) TableName() string {
	return "generation_runs"
}

// NewGenerationRun 创建生成运行记录
func NewGenerationRun(userID, prompt, style, tone, qualityTier string, planTier PlanTier, requestedWords int) *GenerationRun {
	now := time.Now()
	return &GenerationRun{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Status:             RunStatusReservingFunds,
		Prompt:             prompt,
		Style:              style,
		Tone:               tone,
		QualityTier:        qualityTier,
		PlanTier:           planTier,
		RequestedWordCount: requestedWords,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Start 资金预留完成，进入生成阶段
func (r *GenerationRun) Start(reservationTxID string, estimatedCredits int64) {
	now := time.Now()
	r.Status = RunStatusGenerating
	r.ReservationTransactionID = reservationTxID
	r.EstimatedCredits = estimatedCredits
	r.StartedAt = &now
}

// BeginReconcile 生成完成，进入对账阶段
func (r *GenerationRun) BeginReconcile(actualWords int) {
	r.Status = RunStatusReconciling
	r.ActualWordCount = actualWords
}

// Complete 运行成功结束
func (r *GenerationRun) Complete(chargedCredits int64) {
	now := time.Now()
	r.Status = RunStatusComplete
	r.ChargedCredits = chargedCredits
	r.CompletedAt = &now
}

// Fail 运行失败，补偿退款已执行
func (r *GenerationRun) Fail(errMsg string) {
	now := time.Now()
	r.Status = RunStatusFailedRefunded
	r.ErrorMessage = errMsg
	r.CompletedAt = &now
}

// DurationMs 运行耗时（毫秒）
func (r *GenerationRun) DurationMs() int64 {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt).Milliseconds()
}
