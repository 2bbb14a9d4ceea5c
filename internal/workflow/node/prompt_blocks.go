package node

import (
	"encoding/json"
	"fmt"
	"strings"

	wfmodel "z-writer-ai-api/internal/workflow/model"
)

func BuildAttachmentsBlock(attachments []wfmodel.TextAttachment) string {
	if len(attachments) == 0 {
		return ""
	}
	lines := make([]string, 0, len(attachments)+1)
	lines = append(lines, "附加材料：")
	for _, a := range attachments {
		name := strings.TrimSpace(a.Name)
		content := strings.TrimSpace(a.Content)
		if content == "" {
			continue
		}
		if name == "" {
			name = "附件"
		}
		lines = append(lines, "- "+name+"\n"+content)
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n\n")
}

// BuildCarryoverBlock 组装前文接续段落；首个分块没有前文。
func BuildCarryoverBlock(carryover string) string {
	carryover = strings.TrimSpace(carryover)
	if carryover == "" {
		return "前文接续摘要：（无，本段为开篇）"
	}
	return "前文接续摘要：\n" + carryover
}

func BuildIssuesBlock(issues []string) string {
	if len(issues) == 0 {
		return "（无）"
	}
	lines := make([]string, 0, len(issues))
	for i, issue := range issues {
		issue = strings.TrimSpace(issue)
		if issue == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, issue))
	}
	if len(lines) == 0 {
		return "（无）"
	}
	return strings.Join(lines, "\n")
}

// BuildSourcesBlock 把文献条目序列化成编号 JSON 行，缺字段的条目原样保留由模型按规范处理。
func BuildSourcesBlock(sources []wfmodel.CitationSource) string {
	lines := make([]string, 0, len(sources))
	for i, src := range sources {
		b, err := json.Marshal(src)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, string(b)))
	}
	return strings.Join(lines, "\n")
}
