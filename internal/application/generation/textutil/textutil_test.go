package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "latin words", text: "the quick brown fox", want: 4},
		{name: "extra whitespace", text: "  hello   world  ", want: 2},
		{name: "cjk per rune", text: "今天天气不错", want: 6},
		{name: "mixed latin and cjk", text: "Go 语言很好", want: 5},
		{name: "punctuation only", text: "?!", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.text))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("第一句。第二句！Is this the third? yes")
	assert.Equal(t, []string{"第一句。", "第二句！", "Is this the third?", "yes"}, got)
}

func TestLastSentences(t *testing.T) {
	text := "one. two. three. four."

	assert.Equal(t, "three. four.", LastSentences(text, 2))
	assert.Equal(t, "one. two. three. four.", LastSentences(text, 10))
	assert.Equal(t, "", LastSentences(text, 0))
	assert.Equal(t, "", LastSentences("", 2))
}

func TestSplitByWords(t *testing.T) {
	text := "alpha beta gamma. delta epsilon zeta. eta theta iota."

	parts := SplitByWords(text, 4)
	assert.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, CountWords(p), 4)
	}
	// 重组后不丢句子
	joined := strings.Join(parts, " ")
	assert.Contains(t, joined, "alpha beta gamma.")
	assert.Contains(t, joined, "eta theta iota.")
}

func TestSplitByWords_ShortText(t *testing.T) {
	assert.Equal(t, []string{"short text"}, SplitByWords("short text", 100))
	assert.Nil(t, SplitByWords("   ", 10))
}

func TestSplitByWords_LongSentenceKeptWhole(t *testing.T) {
	long := "a b c d e f g h."
	parts := SplitByWords(long+" tail.", 3)
	// 超长句独立成段，不做句内硬切
	assert.Equal(t, long, parts[0])
}

func TestTopKeywords(t *testing.T) {
	text := "monetary policy shapes markets. monetary policy drives inflation. markets react."

	got := TopKeywords(text, 3, 4, map[string]struct{}{"drives": {}})
	assert.Equal(t, []string{"monetary", "policy", "markets"}, got)
}

func TestTopKeywords_FiltersShortAndStopwords(t *testing.T) {
	got := TopKeywords("cat cat cat elephants elephants", 5, 4, nil)
	// 词长不超过 4 个 rune 的被忽略
	assert.Equal(t, []string{"elephants"}, got)

	assert.Nil(t, TopKeywords("anything", 0, 4, nil))
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "你好", TruncateByRunes("你好世界", 2))
	assert.Equal(t, "abc", TruncateByRunes("abc", 10))
	assert.Equal(t, "", TruncateByRunes("abc", 0))
}
