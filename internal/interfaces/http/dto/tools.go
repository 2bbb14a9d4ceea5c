// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"z-writer-ai-api/internal/application/generation"
	wfmodel "z-writer-ai-api/internal/workflow/model"
)

// ScanRequest 内容检测请求
type ScanRequest struct {
	Text string `json:"text" binding:"required"`
}

// FlaggedSpanDTO 检测命中的文本区间
type FlaggedSpanDTO struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Reason string `json:"reason"`
}

// ScanResponse 内容检测响应
type ScanResponse struct {
	OriginalityScore float64          `json:"originality_score"`
	AILikelihood     float64          `json:"ai_likelihood"`
	ReadabilityGrade float64          `json:"readability_grade"`
	FlaggedSpans     []FlaggedSpanDTO `json:"flagged_spans,omitempty"`
	Recommendations  []string         `json:"recommendations,omitempty"`
	WordCount        int              `json:"word_count"`
	ChargedCredits   int64            `json:"charged_credits"`
}

// ToScanResponse 检测报告转换为响应
func ToScanResponse(report *generation.DetectionReport, wordCount int, credits int64) *ScanResponse {
	if report == nil {
		return nil
	}
	spans := make([]FlaggedSpanDTO, 0, len(report.FlaggedSpans))
	for _, s := range report.FlaggedSpans {
		spans = append(spans, FlaggedSpanDTO{Start: s.Start, End: s.End, Reason: s.Reason})
	}
	return &ScanResponse{
		OriginalityScore: report.OriginalityScore,
		AILikelihood:     report.AILikelihood,
		ReadabilityGrade: report.ReadabilityGrade,
		FlaggedSpans:     spans,
		Recommendations:  report.Recommendations,
		WordCount:        wordCount,
		ChargedCredits:   credits,
	}
}

// CitationSourceDTO 待格式化的文献条目
type CitationSourceDTO struct {
	Title   string   `json:"title" binding:"required"`
	Authors []string `json:"authors" binding:"required,min=1"`
	Year    int      `json:"year" binding:"required"`
	Source  string   `json:"source"`
	URL     string   `json:"url"`
	DOI     string   `json:"doi"`
}

// FormatCitationsRequest 引文格式化请求
type FormatCitationsRequest struct {
	Sources []CitationSourceDTO `json:"sources" binding:"required,min=1,max=50"`
	Style   string              `json:"style" binding:"omitempty,oneof=apa mla chicago"`

	Provider string `json:"provider" binding:"omitempty,max=32"`
	Model    string `json:"model" binding:"omitempty,max=64"`
}

// ToCitationSources DTO 列表转换为工作流输入
func (r *FormatCitationsRequest) ToCitationSources() []wfmodel.CitationSource {
	sources := make([]wfmodel.CitationSource, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, wfmodel.CitationSource{
			Title:   s.Title,
			Authors: s.Authors,
			Year:    s.Year,
			Source:  s.Source,
			URL:     s.URL,
			DOI:     s.DOI,
		})
	}
	return sources
}

// FormattedCitationDTO 单条格式化结果
type FormattedCitationDTO struct {
	Formatted string `json:"formatted"`
	InText    string `json:"in_text,omitempty"`
}

// FormatCitationsResponse 引文格式化响应
type FormatCitationsResponse struct {
	Style          string                 `json:"style"`
	Citations      []FormattedCitationDTO `json:"citations"`
	ChargedCredits int64                  `json:"charged_credits"`
}

// ResearchRequest 研究简报请求
type ResearchRequest struct {
	Topic           string `json:"topic" binding:"required,max=512"`
	Focus           string `json:"focus" binding:"omitempty,max=512"`
	TargetWordCount int    `json:"target_word_count" binding:"required,min=1,max=10000"`

	Notes []TextAttachmentDTO `json:"notes" binding:"omitempty,max=10"`

	Provider string `json:"provider" binding:"omitempty,max=32"`
	Model    string `json:"model" binding:"omitempty,max=64"`
}

// TextAttachmentDTO 附带的原始材料
type TextAttachmentDTO struct {
	Name    string `json:"name"`
	Content string `json:"content" binding:"required"`
}

// ToAttachments DTO 列表转换为工作流输入
func (r *ResearchRequest) ToAttachments() []wfmodel.TextAttachment {
	notes := make([]wfmodel.TextAttachment, 0, len(r.Notes))
	for _, n := range r.Notes {
		notes = append(notes, wfmodel.TextAttachment{Name: n.Name, Content: n.Content})
	}
	return notes
}

// ResearchResponse 研究简报响应
type ResearchResponse struct {
	Brief          string `json:"brief"`
	WordCount      int    `json:"word_count"`
	ChargedCredits int64  `json:"charged_credits"`
}

// OptimizePromptRequest 提示词优化请求
type OptimizePromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Goal   string `json:"goal" binding:"omitempty,max=512"`

	Provider string `json:"provider" binding:"omitempty,max=32"`
	Model    string `json:"model" binding:"omitempty,max=64"`
}

// OptimizePromptResponse 提示词优化响应
type OptimizePromptResponse struct {
	OptimizedPrompt string   `json:"optimized_prompt"`
	Notes           []string `json:"notes,omitempty"`
	ChargedCredits  int64    `json:"charged_credits"`
}
