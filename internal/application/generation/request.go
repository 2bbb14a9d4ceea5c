package generation

import (
	"strings"

	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/domain/entity"
	apperrors "z-writer-ai-api/pkg/errors"
)

// GenerationRequest 一次生成请求的完整参数。
// Provider 与 Model 留空时由 LLM 工厂回退到默认提供商。
type GenerationRequest struct {
	UserID   string
	PlanTier entity.PlanTier

	Prompt  string
	Style   string
	Tone    string
	Quality string

	RequestedWords int

	WithCitations bool
	CitationStyle string

	Provider string
	Model    string
}

// Normalize 填充默认值并校验必填项。
func (r *GenerationRequest) Normalize() error {
	if r == nil {
		return apperrors.Newf(apperrors.CodeInvalidParam, "request is nil")
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Style = strings.TrimSpace(r.Style)
	r.Tone = strings.TrimSpace(r.Tone)
	r.Quality = strings.TrimSpace(r.Quality)
	r.CitationStyle = strings.TrimSpace(r.CitationStyle)

	if strings.TrimSpace(r.UserID) == "" {
		return apperrors.Newf(apperrors.CodeInvalidParam, "user id is required")
	}
	if r.Prompt == "" {
		return apperrors.Newf(apperrors.CodeInvalidParam, "prompt is required")
	}
	if r.RequestedWords <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidAmount, "requested word count must be positive, got %d", r.RequestedWords)
	}
	if !r.PlanTier.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidParam, "unknown plan tier: %s", r.PlanTier)
	}
	if r.Quality == "" {
		r.Quality = credit.QualityStandard
	}
	if r.WithCitations && r.CitationStyle == "" {
		r.CitationStyle = "apa"
	}
	return nil
}

// DetectionSummary 整篇内容的质量检测汇总。
// Degraded 表示检测服务不可用，分值按通过处理。
type DetectionSummary struct {
	OriginalityScore float64 `json:"originality_score"`
	AILikelihood     float64 `json:"ai_likelihood"`
	ReadabilityGrade float64 `json:"readability_grade"`
	RequiresReview   bool    `json:"requires_review"`
	Degraded         bool    `json:"degraded"`
}

// GenerationResult 生成管线的最终产出。
type GenerationResult struct {
	RunID     string
	ContentID string

	Content      string
	Bibliography string
	WordCount    int

	EstimatedCredits int64
	ChargedCredits   int64
	UnsettledCredits int64

	ChunksGenerated    int
	RefinementCycles   int
	UsedSimilarContent bool

	Detection DetectionSummary
}
