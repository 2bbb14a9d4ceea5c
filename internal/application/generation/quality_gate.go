package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/metrics"
)

// Severity 质量问题等级
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// 质量门阈值，分值区间 0 到 100，可读性为年级水平。
const (
	plagiarismMediumThreshold = 30
	plagiarismHighThreshold   = 50
	aiMediumThreshold         = 70
	aiHighThreshold           = 85
	readabilityGradeLimit     = 12
)

// DetectionResult 质量门对一段文本的评估结论。
// Issues 面向改写提示词，描述具体问题；Recommendations 是检测服务
// 与质量门给出的改进建议。Degraded 表示检测服务不可用，按通过处理。
type DetectionResult struct {
	OriginalityScore float64
	PlagiarismScore  float64
	AILikelihood     float64
	ReadabilityGrade float64

	NeedsRefinement bool
	Severity        Severity
	Issues          []string
	Recommendations []string
	FlaggedSpans    []FlaggedSpan

	Degraded bool
}

// ScanCache 检测结果缓存端口，由 redis.Cache 满足。
// 整改后的重扫常命中相近文本，read-through 加 singleflight 足够。
type ScanCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

const defaultScanCacheTTL = 10 * time.Minute

// QualityGate 内容质量门：调用检测服务并按阈值矩阵定级。
// 检测失败不阻断生成流程，降级为接受当前内容。
type QualityGate struct {
	detector Detector
	cache    ScanCache
	cacheTTL time.Duration
}

func NewQualityGate(detector Detector, cache ScanCache) *QualityGate {
	return &QualityGate{
		detector: detector,
		cache:    cache,
		cacheTTL: defaultScanCacheTTL,
	}
}

// Evaluate 对文本执行检测并评估质量等级。
func (g *QualityGate) Evaluate(ctx context.Context, text string) *DetectionResult {
	if g == nil || g.detector == nil {
		return &DetectionResult{Severity: SeverityNone, Degraded: true}
	}

	start := time.Now()
	report, err := g.scan(ctx, text)
	metrics.DetectionScanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Warn(ctx, "detection scan failed, accepting content as-is", "error", err.Error())
		metrics.DetectionScansTotal.WithLabelValues("degraded").Inc()
		return &DetectionResult{Severity: SeverityNone, Degraded: true}
	}
	metrics.DetectionScansTotal.WithLabelValues("success").Inc()

	return evaluateReport(report)
}

func (g *QualityGate) scan(ctx context.Context, text string) (*DetectionReport, error) {
	if g.cache == nil {
		return g.detector.Scan(ctx, text)
	}

	raw, err := g.cache.GetOrLoadSafe(ctx, detectionScanKey(text), g.cacheTTL, func() (interface{}, error) {
		return g.detector.Scan(ctx, text)
	})
	if err != nil {
		return nil, err
	}

	var report DetectionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode cached scan report: %w", err)
	}
	return &report, nil
}

// detectionScanKey 以文本哈希为缓存键，同文重扫直接命中。
func detectionScanKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "detection:scan:" + hex.EncodeToString(sum[:])
}

// evaluateReport 按阈值矩阵定级：
// 重复率或 AI 痕迹超过中档阈值记 medium，两者同时触发或任一越过
// 高档阈值升为 high；可读性超过年级上限追加简化建议，至少 medium。
func evaluateReport(report *DetectionReport) *DetectionResult {
	result := &DetectionResult{
		OriginalityScore: report.OriginalityScore,
		PlagiarismScore:  100 - report.OriginalityScore,
		AILikelihood:     report.AILikelihood,
		ReadabilityGrade: report.ReadabilityGrade,
		Severity:         SeverityNone,
		Recommendations:  append([]string(nil), report.Recommendations...),
		FlaggedSpans:     append([]FlaggedSpan(nil), report.FlaggedSpans...),
	}

	plagiarismHit := result.PlagiarismScore > plagiarismMediumThreshold
	aiHit := result.AILikelihood > aiMediumThreshold

	if plagiarismHit {
		result.Severity = SeverityMedium
		result.Issues = append(result.Issues,
			fmt.Sprintf("重复率偏高：%.1f，超过阈值 %d，请换用原创表达", result.PlagiarismScore, plagiarismMediumThreshold))
	}
	if aiHit {
		result.Severity = SeverityMedium
		result.Issues = append(result.Issues,
			fmt.Sprintf("机器生成痕迹明显：%.1f，超过阈值 %d，请增加句式与结构的自然变化", result.AILikelihood, aiMediumThreshold))
	}
	if (plagiarismHit && aiHit) ||
		result.PlagiarismScore > plagiarismHighThreshold ||
		result.AILikelihood > aiHighThreshold {
		result.Severity = SeverityHigh
	}

	if result.ReadabilityGrade > readabilityGradeLimit {
		if result.Severity == SeverityNone {
			result.Severity = SeverityMedium
		}
		result.Issues = append(result.Issues,
			fmt.Sprintf("阅读难度过高：年级水平 %.1f，超过上限 %d", result.ReadabilityGrade, readabilityGradeLimit))
		result.Recommendations = append(result.Recommendations, "使用更短的句子和更常见的词汇，降低阅读难度")
	}

	for _, span := range result.FlaggedSpans {
		if span.Reason == "" {
			continue
		}
		result.Issues = append(result.Issues,
			fmt.Sprintf("第 %d 至 %d 字区间：%s", span.Start, span.End, span.Reason))
	}

	result.NeedsRefinement = result.Severity != SeverityNone
	return result
}
