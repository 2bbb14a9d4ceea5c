// Package textutil 提供生成管线共享的文本统计与切分工具。
package textutil

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CountWords 统计词数。拉丁词按空白分隔计数，CJK 每个字符计为一词。
func CountWords(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case isCJK(r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}

// SplitSentences 按句末标点切句，标点保留在句尾。
func SplitSentences(s string) []string {
	var out []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		switch r {
		case '。', '！', '？', '…', '.', '!', '?':
			if t := strings.TrimSpace(b.String()); t != "" {
				out = append(out, t)
			}
			b.Reset()
		}
	}
	if t := strings.TrimSpace(b.String()); t != "" {
		out = append(out, t)
	}
	return out
}

// LastSentences 返回文本末尾最多 n 句。
func LastSentences(s string, n int) string {
	if n <= 0 {
		return ""
	}
	sents := SplitSentences(s)
	if len(sents) == 0 {
		return ""
	}
	if len(sents) > n {
		sents = sents[len(sents)-n:]
	}
	return strings.Join(sents, " ")
}

// SplitByWords 将文本切成词数不超过 maxWords 的段序列，优先在段落与句子边界断开。
// 单句超过 maxWords 时独立成段，不做句内硬切。
func SplitByWords(s string, maxWords int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if maxWords <= 0 || CountWords(raw) <= maxWords {
		return []string{raw}
	}

	var out []string
	var cur strings.Builder
	curWords := 0

	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
		curWords = 0
	}

	for _, para := range strings.Split(raw, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, sent := range SplitSentences(para) {
			w := CountWords(sent)
			if curWords > 0 && curWords+w > maxWords {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString(" ")
			}
			cur.WriteString(sent)
			curWords += w
			if curWords >= maxWords {
				flush()
			}
		}
	}
	flush()
	return out
}

// TopKeywords 返回出现频率最高的 k 个词。
// 词长（rune 数）不超过 minRunes 或命中停用词的 token 被忽略；
// 频率相同时保持首次出现的先后顺序。
func TopKeywords(s string, k, minRunes int, stopwords map[string]struct{}) []string {
	if k <= 0 {
		return nil
	}

	type stat struct {
		word  string
		count int
		first int
	}
	counts := make(map[string]*stat)
	order := 0
	for _, tok := range tokenize(s) {
		w := strings.ToLower(tok)
		if utf8.RuneCountInString(w) <= minRunes {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		st, ok := counts[w]
		if !ok {
			st = &stat{word: w, first: order}
			counts[w] = st
			order++
		}
		st.count++
	}

	stats := make([]*stat, 0, len(counts))
	for _, st := range counts {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].first < stats[j].first
	})
	if len(stats) > k {
		stats = stats[:k]
	}
	out := make([]string, 0, len(stats))
	for _, st := range stats {
		out = append(out, st.word)
	}
	return out
}

// TruncateByRunes 按 rune 数量截断字符串。
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

func tokenize(s string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
