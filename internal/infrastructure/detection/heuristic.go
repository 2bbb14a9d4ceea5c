package detection

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/application/generation/textutil"
)

// Heuristic 本地启发式检测器，指标为粗略统计近似。
// 仅用于未配置远端检测服务的环境，分值区间与远端服务保持一致。
type Heuristic struct{}

var _ generation.Detector = (*Heuristic)(nil)

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Scan(_ context.Context, text string) (*generation.DetectionReport, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("text is empty")
	}

	sentences := textutil.SplitSentences(trimmed)
	tokens := strings.FieldsFunc(strings.ToLower(trimmed), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return &generation.DetectionReport{
		OriginalityScore: trigramOriginality(tokens),
		AILikelihood:     uniformityScore(sentences),
		ReadabilityGrade: fleschKincaidGrade(trimmed, sentences, tokens),
	}, nil
}

// trigramOriginality 以去重三元组占比近似原创性，重复片段越多分越低。
func trigramOriginality(tokens []string) float64 {
	if len(tokens) < 3 {
		return 100
	}
	seen := make(map[string]struct{})
	total := 0
	for i := 0; i+3 <= len(tokens); i++ {
		seen[tokens[i]+" "+tokens[i+1]+" "+tokens[i+2]] = struct{}{}
		total++
	}
	return float64(len(seen)) / float64(total) * 100
}

// uniformityScore 句长越均匀越像机器生成，取句长变异系数的反值。
func uniformityScore(sentences []string) float64 {
	if len(sentences) < 3 {
		return 0
	}
	lengths := make([]float64, 0, len(sentences))
	var sum float64
	for _, s := range sentences {
		l := float64(textutil.CountWords(s))
		lengths = append(lengths, l)
		sum += l
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))

	cv := math.Sqrt(variance) / mean
	if cv >= 0.5 {
		return 0
	}
	return (1 - cv/0.5) * 100
}

// fleschKincaidGrade 估算阅读年级，CJK 字符按单音节近似。
func fleschKincaidGrade(text string, sentences []string, tokens []string) float64 {
	words := textutil.CountWords(text)
	if words == 0 || len(sentences) == 0 {
		return 0
	}

	syllables := 0
	for _, r := range text {
		if isCJKRune(r) {
			syllables++
		}
	}
	for _, tok := range tokens {
		syllables += latinSyllables(tok)
	}

	grade := 0.39*(float64(words)/float64(len(sentences))) +
		11.8*(float64(syllables)/float64(words)) - 15.59
	if grade < 0 {
		return 0
	}
	return grade
}

func latinSyllables(word string) int {
	count := 0
	prevVowel := false
	hasLatin := false
	for _, r := range word {
		if r > unicode.MaxASCII {
			prevVowel = false
			continue
		}
		hasLatin = true
		isVowel := strings.ContainsRune("aeiouy", unicode.ToLower(r))
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if hasLatin && count == 0 {
		count = 1
	}
	return count
}

func isCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
