package generation

import "context"

// Detector 内容检测服务端口，由 infrastructure/detection 提供实现。
type Detector interface {
	// Scan 对文本执行原创性、AI 痕迹与可读性检测。
	Scan(ctx context.Context, text string) (*DetectionReport, error)
}

// DetectionReport 检测服务返回的原始指标，分值区间均为 0 到 100。
type DetectionReport struct {
	// OriginalityScore 越高越原创
	OriginalityScore float64
	// AILikelihood 越高越像机器生成
	AILikelihood float64
	// ReadabilityGrade 阅读难度年级水平
	ReadabilityGrade float64
	FlaggedSpans     []FlaggedSpan
	Recommendations  []string
}

// FlaggedSpan 检测命中的文本区间，偏移以 rune 计。
type FlaggedSpan struct {
	Start  int
	End    int
	Reason string
}
