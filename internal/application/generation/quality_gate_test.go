package generation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDetector struct {
	mu     sync.Mutex
	calls  int
	report *DetectionReport
	err    error
}

func (d *scriptedDetector) Scan(_ context.Context, _ string) (*DetectionReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls += 1
	if d.err != nil {
		return nil, d.err
	}
	return d.report, nil
}

// memoryScanCache 内存版 read-through 缓存，统计 loader 触发次数。
type memoryScanCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	loads   int
}

func newMemoryScanCache() *memoryScanCache {
	return &memoryScanCache{entries: make(map[string][]byte)}
}

func (c *memoryScanCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.entries[key]; ok {
		return b, nil
	}
	c.loads++
	v, err := loader()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c.entries[key] = b
	return b, nil
}

func TestEvaluateReport_SeverityMatrix(t *testing.T) {
	tests := []struct {
		name        string
		originality float64
		ai          float64
		readability float64
		severity    Severity
		needs       bool
	}{
		{name: "clean", originality: 95, ai: 20, readability: 8, severity: SeverityNone, needs: false},
		{name: "plagiarism boundary not triggered", originality: 70, ai: 20, readability: 8, severity: SeverityNone, needs: false},
		{name: "plagiarism medium", originality: 65, ai: 20, readability: 8, severity: SeverityMedium, needs: true},
		{name: "ai medium", originality: 95, ai: 75, readability: 8, severity: SeverityMedium, needs: true},
		{name: "both signals escalate to high", originality: 65, ai: 75, readability: 8, severity: SeverityHigh, needs: true},
		{name: "plagiarism hard ceiling", originality: 45, ai: 20, readability: 8, severity: SeverityHigh, needs: true},
		{name: "ai hard ceiling", originality: 95, ai: 90, readability: 8, severity: SeverityHigh, needs: true},
		{name: "readability only", originality: 95, ai: 20, readability: 14, severity: SeverityMedium, needs: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluateReport(&DetectionReport{
				OriginalityScore: tt.originality,
				AILikelihood:     tt.ai,
				ReadabilityGrade: tt.readability,
			})
			assert.Equal(t, tt.severity, result.Severity)
			assert.Equal(t, tt.needs, result.NeedsRefinement)
			assert.InDelta(t, 100-tt.originality, result.PlagiarismScore, 0.001)
		})
	}
}

func TestEvaluateReport_ReadabilityAddsSimplificationAdvice(t *testing.T) {
	result := evaluateReport(&DetectionReport{
		OriginalityScore: 95,
		AILikelihood:     10,
		ReadabilityGrade: 15,
		Recommendations:  []string{"服务端建议"},
	})

	assert.Equal(t, SeverityMedium, result.Severity)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "服务端建议", result.Recommendations[0])
	assert.Contains(t, result.Recommendations[1], "阅读难度")
	require.NotEmpty(t, result.Issues)
	assert.Contains(t, result.Issues[0], "阅读难度过高")
}

func TestEvaluateReport_FlaggedSpansBecomeIssues(t *testing.T) {
	result := evaluateReport(&DetectionReport{
		OriginalityScore: 60,
		AILikelihood:     10,
		ReadabilityGrade: 8,
		FlaggedSpans: []FlaggedSpan{
			{Start: 10, End: 42, Reason: "与已收录内容高度一致"},
		},
	})

	assert.Equal(t, SeverityMedium, result.Severity)
	require.Len(t, result.Issues, 2)
	assert.Contains(t, result.Issues[1], "与已收录内容高度一致")
}

func TestQualityGate_DegradesOnDetectorFailure(t *testing.T) {
	detector := &scriptedDetector{err: errors.New("scan service down")}
	gate := NewQualityGate(detector, nil)

	result := gate.Evaluate(context.Background(), "任意文本")

	assert.True(t, result.Degraded)
	assert.False(t, result.NeedsRefinement)
	assert.Equal(t, SeverityNone, result.Severity)
}

func TestQualityGate_MemoizesScansByTextHash(t *testing.T) {
	detector := &scriptedDetector{report: &DetectionReport{OriginalityScore: 90, AILikelihood: 10, ReadabilityGrade: 6}}
	cache := newMemoryScanCache()
	gate := NewQualityGate(detector, cache)

	first := gate.Evaluate(context.Background(), "同一段文本")
	second := gate.Evaluate(context.Background(), "同一段文本")
	third := gate.Evaluate(context.Background(), "另一段文本")

	// 同文命中缓存，检测器只被调用两次
	assert.Equal(t, 2, cache.loads)
	assert.Equal(t, 2, detector.calls)
	assert.Equal(t, first.OriginalityScore, second.OriginalityScore)
	assert.False(t, third.Degraded)
}
