// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/domain/entity"
)

// GenerateRequest 内容生成请求
type GenerateRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	WordCount int    `json:"word_count" binding:"required,min=1,max=50000"`
	Style     string `json:"style" binding:"omitempty,max=64"`
	Tone      string `json:"tone" binding:"omitempty,max=64"`
	Quality   string `json:"quality" binding:"omitempty,oneof=standard premium"`

	WithCitations bool   `json:"with_citations"`
	CitationStyle string `json:"citation_style" binding:"omitempty,oneof=apa mla chicago"`

	Provider string `json:"provider" binding:"omitempty,max=32"`
	Model    string `json:"model" binding:"omitempty,max=64"`
}

// DetectionDTO 质量检测汇总
type DetectionDTO struct {
	OriginalityScore float64 `json:"originality_score"`
	AILikelihood     float64 `json:"ai_likelihood"`
	ReadabilityGrade float64 `json:"readability_grade"`
	RequiresReview   bool    `json:"requires_review"`
	Degraded         bool    `json:"degraded"`
}

// GenerateResponse 内容生成响应
type GenerateResponse struct {
	RunID     string `json:"run_id"`
	ContentID string `json:"content_id"`

	Content      string `json:"content"`
	Bibliography string `json:"bibliography,omitempty"`
	WordCount    int    `json:"word_count"`

	EstimatedCredits int64 `json:"estimated_credits"`
	ChargedCredits   int64 `json:"charged_credits"`
	UnsettledCredits int64 `json:"unsettled_credits,omitempty"`

	ChunksGenerated    int  `json:"chunks_generated"`
	RefinementCycles   int  `json:"refinement_cycles"`
	UsedSimilarContent bool `json:"used_similar_content"`

	Detection DetectionDTO `json:"detection"`
}

// ToGenerateResponse 管线结果转换为响应
func ToGenerateResponse(result *generation.GenerationResult) *GenerateResponse {
	if result == nil {
		return nil
	}
	return &GenerateResponse{
		RunID:              result.RunID,
		ContentID:          result.ContentID,
		Content:            result.Content,
		Bibliography:       result.Bibliography,
		WordCount:          result.WordCount,
		EstimatedCredits:   result.EstimatedCredits,
		ChargedCredits:     result.ChargedCredits,
		UnsettledCredits:   result.UnsettledCredits,
		ChunksGenerated:    result.ChunksGenerated,
		RefinementCycles:   result.RefinementCycles,
		UsedSimilarContent: result.UsedSimilarContent,
		Detection: DetectionDTO{
			OriginalityScore: result.Detection.OriginalityScore,
			AILikelihood:     result.Detection.AILikelihood,
			ReadabilityGrade: result.Detection.ReadabilityGrade,
			RequiresReview:   result.Detection.RequiresReview,
			Degraded:         result.Detection.Degraded,
		},
	}
}

// RunResponse 生成运行记录响应
type RunResponse struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	Prompt             string     `json:"prompt"`
	Style              string     `json:"style,omitempty"`
	Tone               string     `json:"tone,omitempty"`
	QualityTier        string     `json:"quality_tier,omitempty"`
	PlanTier           string     `json:"plan_tier"`
	RequestedWordCount int        `json:"requested_word_count"`
	ActualWordCount    int        `json:"actual_word_count"`
	EstimatedCredits   int64      `json:"estimated_credits"`
	ChargedCredits     int64      `json:"charged_credits"`
	UnsettledCredits   int64      `json:"unsettled_credits,omitempty"`
	ChunksGenerated    int        `json:"chunks_generated"`
	RefinementCycles   int        `json:"refinement_cycles"`
	UsedSimilarContent bool       `json:"used_similar_content"`
	OriginalityScore   float64    `json:"originality_score"`
	AIDetectionScore   float64    `json:"ai_detection_score"`
	ReadabilityScore   float64    `json:"readability_score"`
	RequiresReview     bool       `json:"requires_review"`
	ContentID          string     `json:"content_id,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// RunListResponse 生成运行记录列表响应
type RunListResponse struct {
	Items []*RunResponse `json:"items"`
}

// ToRunResponse 实体转换为响应
func ToRunResponse(run *entity.GenerationRun) *RunResponse {
	if run == nil {
		return nil
	}
	return &RunResponse{
		ID:                 run.ID,
		Status:             string(run.Status),
		Prompt:             run.Prompt,
		Style:              run.Style,
		Tone:               run.Tone,
		QualityTier:        run.QualityTier,
		PlanTier:           string(run.PlanTier),
		RequestedWordCount: run.RequestedWordCount,
		ActualWordCount:    run.ActualWordCount,
		EstimatedCredits:   run.EstimatedCredits,
		ChargedCredits:     run.ChargedCredits,
		UnsettledCredits:   run.UnsettledCredits,
		ChunksGenerated:    run.ChunksGenerated,
		RefinementCycles:   run.RefinementCycles,
		UsedSimilarContent: run.UsedSimilarContent,
		OriginalityScore:   run.OriginalityScore,
		AIDetectionScore:   run.AIDetectionScore,
		ReadabilityScore:   run.ReadabilityScore,
		RequiresReview:     run.RequiresReview,
		ContentID:          run.ContentID,
		ErrorMessage:       run.ErrorMessage,
		CreatedAt:          run.CreatedAt,
		StartedAt:          run.StartedAt,
		CompletedAt:        run.CompletedAt,
	}
}

// ToRunListResponse 实体列表转换为响应
func ToRunListResponse(runs []*entity.GenerationRun) *RunListResponse {
	items := make([]*RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, ToRunResponse(run))
	}
	return &RunListResponse{Items: items}
}

// ContentResponse 已生成内容响应
type ContentResponse struct {
	ID               string    `json:"id"`
	Prompt           string    `json:"prompt"`
	Style            string    `json:"style,omitempty"`
	Tone             string    `json:"tone,omitempty"`
	Content          string    `json:"content"`
	WordCount        int       `json:"word_count"`
	Keywords         []string  `json:"keywords,omitempty"`
	OriginalityScore float64   `json:"originality_score"`
	AIDetectionScore float64   `json:"ai_detection_score"`
	ReadabilityScore float64   `json:"readability_score"`
	Indexed          bool      `json:"indexed"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToContentResponse 实体转换为响应
func ToContentResponse(content *entity.GeneratedContent) *ContentResponse {
	if content == nil {
		return nil
	}
	return &ContentResponse{
		ID:               content.ID,
		Prompt:           content.Prompt,
		Style:            content.Style,
		Tone:             content.Tone,
		Content:          content.Content,
		WordCount:        content.WordCount,
		Keywords:         content.Keywords,
		OriginalityScore: content.OriginalityScore,
		AIDetectionScore: content.AIDetectionScore,
		ReadabilityScore: content.ReadabilityScore,
		Indexed:          content.Indexed,
		CreatedAt:        content.CreatedAt,
	}
}
