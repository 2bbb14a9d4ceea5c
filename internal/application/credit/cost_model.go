// Package credit 实现积分账本、月度配额与成本核算。
package credit

import (
	"math"

	apperrors "z-writer-ai-api/pkg/errors"
)

// Tool 消耗积分的工具类型
type Tool string

const (
	ToolWriter          Tool = "writer"
	ToolResearch        Tool = "research"
	ToolDetector        Tool = "detector"
	ToolCitations       Tool = "citations"
	ToolPromptOptimizer Tool = "prompt_optimizer"
)

// Operation 计费口径，写作工具对输入与输出采用不同费率
type Operation string

const (
	OperationInput  Operation = "input"
	OperationOutput Operation = "output"
)

// 每 1 积分可处理的词数费率
const (
	writerOutputWordsPerCredit    = 30
	writerInputWordsPerCredit     = 100
	researchWordsPerCredit        = 20
	detectorWordsPerCredit        = 500
	citationsWordsPerCredit       = 50
	promptOptimizerWordsPerCredit = 80
)

// 写作质量档位
const (
	QualityStandard = "standard"
	QualityPremium  = "premium"
)

// premiumOutputFactor premium 档位预估产出的放大系数
const premiumOutputFactor = 1.15

// RequiredCredits 计算工具以 op 口径处理 words 词所需的积分，不足 1 积分向上取整。
func RequiredCredits(words int, tool Tool, op Operation) (int64, error) {
	if words <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	ratio := wordsPerCredit(tool, op)
	if ratio <= 0 {
		return 0, apperrors.Newf(apperrors.CodeInvalidParam, "unknown tool: %s", tool)
	}
	return int64(math.Ceil(float64(words) / float64(ratio))), nil
}

func wordsPerCredit(tool Tool, op Operation) int {
	switch tool {
	case ToolWriter:
		if op == OperationInput {
			return writerInputWordsPerCredit
		}
		return writerOutputWordsPerCredit
	case ToolResearch:
		return researchWordsPerCredit
	case ToolDetector:
		return detectorWordsPerCredit
	case ToolCitations:
		return citationsWordsPerCredit
	case ToolPromptOptimizer:
		return promptOptimizerWordsPerCredit
	default:
		return 0
	}
}

// EstimateOutputWords 预估实际产出字数，premium 档位按放大系数上浮取整。
func EstimateOutputWords(requestedWords int, quality string) int {
	if requestedWords <= 0 {
		return 0
	}
	if quality == QualityPremium {
		return int(math.Ceil(float64(requestedWords) * premiumOutputFactor))
	}
	return requestedWords
}

// WriterCost 计算写作成本：输入提示按输入费率、产出按输出费率分别取整后相加。
func WriterCost(promptWords, outputWords int) (int64, error) {
	outputCredits, err := RequiredCredits(outputWords, ToolWriter, OperationOutput)
	if err != nil {
		return 0, err
	}
	if promptWords <= 0 {
		return outputCredits, nil
	}
	inputCredits, err := RequiredCredits(promptWords, ToolWriter, OperationInput)
	if err != nil {
		return 0, err
	}
	return outputCredits + inputCredits, nil
}

// EstimateWriterCost 预估一次写作请求需要预留的积分。
func EstimateWriterCost(promptWords, requestedWords int, quality string) (int64, error) {
	return WriterCost(promptWords, EstimateOutputWords(requestedWords, quality))
}
