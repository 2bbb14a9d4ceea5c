package generation

import (
	"strings"

	"z-writer-ai-api/internal/application/generation/textutil"
)

const (
	// carryoverSentences 接续上下文包含的上一分块末尾句数
	carryoverSentences = 2
	// carryoverKeywords 接续上下文包含的高频词数量
	carryoverKeywords = 5
	// keywordMinRunes 参与关键词统计的最小词长（rune 数，不含边界）
	keywordMinRunes = 4
)

// carryoverStopwords 关键词统计排除的常见虚词。
var carryoverStopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "among": {},
	"because": {}, "before": {}, "being": {}, "below": {}, "between": {},
	"could": {}, "doing": {}, "during": {}, "every": {}, "further": {},
	"having": {}, "might": {}, "other": {}, "others": {}, "ought": {},
	"shall": {}, "should": {}, "since": {}, "their": {}, "theirs": {},
	"there": {}, "these": {}, "things": {}, "those": {}, "through": {},
	"under": {}, "until": {}, "where": {}, "which": {}, "while": {},
	"would": {}, "一个": {}, "他们": {}, "以及": {}, "但是": {},
	"你们": {}, "因为": {}, "因此": {}, "如果": {}, "我们": {},
	"所以": {}, "没有": {}, "然后": {}, "由于": {}, "虽然": {},
	"这个": {}, "这些": {}, "那个": {}, "那些": {},
}

// BuildCarryover 为下一分块组装接续上下文：上一分块的末尾句子加上
// 全部已生成文本的高频关键词。这是轻量的连贯性信号，不做语义摘要。
func BuildCarryover(lastChunk, accumulated string) string {
	tail := textutil.LastSentences(lastChunk, carryoverSentences)
	keywords := textutil.TopKeywords(accumulated, carryoverKeywords, keywordMinRunes, carryoverStopwords)

	var b strings.Builder
	if tail != "" {
		b.WriteString(tail)
	}
	if len(keywords) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("关键词：")
		b.WriteString(strings.Join(keywords, "、"))
	}
	return b.String()
}
