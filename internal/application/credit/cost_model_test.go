package credit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "z-writer-ai-api/pkg/errors"
)

func TestRequiredCredits_Ratios(t *testing.T) {
	cases := []struct {
		name  string
		words int
		tool  Tool
		op    Operation
		want  int64
	}{
		{"writer output exact", 300, ToolWriter, OperationOutput, 10},
		{"writer output rounds up", 301, ToolWriter, OperationOutput, 11},
		{"writer output single word", 1, ToolWriter, OperationOutput, 1},
		{"writer input", 100, ToolWriter, OperationInput, 1},
		{"writer input rounds up", 150, ToolWriter, OperationInput, 2},
		{"research", 100, ToolResearch, OperationOutput, 5},
		{"detector cheap per word", 1000, ToolDetector, OperationInput, 2},
		{"detector below ratio", 499, ToolDetector, OperationInput, 1},
		{"citations", 120, ToolCitations, OperationOutput, 3},
		{"prompt optimizer exact", 80, ToolPromptOptimizer, OperationOutput, 1},
		{"prompt optimizer rounds up", 81, ToolPromptOptimizer, OperationOutput, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RequiredCredits(tc.words, tc.tool, tc.op)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequiredCredits_InvalidInput(t *testing.T) {
	_, err := RequiredCredits(0, ToolWriter, OperationOutput)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAmount))

	_, err = RequiredCredits(-10, ToolWriter, OperationOutput)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAmount))

	_, err = RequiredCredits(100, Tool("translator"), OperationOutput)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestEstimateOutputWords(t *testing.T) {
	assert.Equal(t, 1000, EstimateOutputWords(1000, QualityStandard))
	assert.Equal(t, 1150, EstimateOutputWords(1000, QualityPremium))
	assert.Equal(t, 115, EstimateOutputWords(100, QualityPremium))
	// 放大后向上取整
	assert.Equal(t, 2, EstimateOutputWords(1, QualityPremium))
	assert.Equal(t, 0, EstimateOutputWords(0, QualityPremium))
	// 未知档位按 standard 处理
	assert.Equal(t, 500, EstimateOutputWords(500, "unknown"))
}

func TestWriterCost(t *testing.T) {
	// 输入 100 词 1 积分 + 产出 300 词 10 积分
	cost, err := WriterCost(100, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(11), cost)

	// 无输入成本时只计产出
	cost, err = WriterCost(0, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cost)

	_, err = WriterCost(100, 0)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAmount))
}

func TestEstimateWriterCost_PremiumInflation(t *testing.T) {
	standard, err := EstimateWriterCost(100, 1000, QualityStandard)
	require.NoError(t, err)
	premium, err := EstimateWriterCost(100, 1000, QualityPremium)
	require.NoError(t, err)

	// standard: 1 + ceil(1000/30)=34; premium: 1 + ceil(1150/30)=39
	assert.Equal(t, int64(35), standard)
	assert.Equal(t, int64(40), premium)
	assert.Greater(t, premium, standard)
}
