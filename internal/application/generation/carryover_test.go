package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCarryover(t *testing.T) {
	lastChunk := "First sentence here. Second sentence follows. Closing thought arrives."
	accumulated := "markets markets markets policy policy inflation " + lastChunk

	got := BuildCarryover(lastChunk, accumulated)

	// 取末尾两句
	assert.Contains(t, got, "Second sentence follows.")
	assert.Contains(t, got, "Closing thought arrives.")
	assert.NotContains(t, got, "First sentence here.")

	// 高频关键词来自全部已生成文本
	assert.Contains(t, got, "关键词：")
	assert.Contains(t, got, "markets")
	assert.Contains(t, got, "policy")
}

func TestBuildCarryover_StopwordsExcluded(t *testing.T) {
	accumulated := "because because because theory theory theory progress progress"

	// 只有关键词行，便于断言停用词被排除
	got := BuildCarryover("", accumulated)
	assert.NotContains(t, got, "because")
	assert.Contains(t, got, "theory")
	assert.Contains(t, got, "progress")
}

func TestBuildCarryover_Empty(t *testing.T) {
	assert.Equal(t, "", BuildCarryover("", ""))
}

func TestBuildCarryover_KeywordCountBounded(t *testing.T) {
	text := "alphaword betaword gammaword deltaword epsilonword zetaword etaword. " +
		strings.Repeat("alphaword betaword gammaword deltaword epsilonword zetaword etaword ", 3)

	got := BuildCarryover(text, text)
	idx := strings.Index(got, "关键词：")
	assert.GreaterOrEqual(t, idx, 0)
	keywords := strings.Split(got[idx+len("关键词："):], "、")
	assert.LessOrEqual(t, len(keywords), carryoverKeywords)
}
