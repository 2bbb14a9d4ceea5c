package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	workflowchain "z-writer-ai-api/internal/workflow/chain"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	wfnode "z-writer-ai-api/internal/workflow/node"
	workflowport "z-writer-ai-api/internal/workflow/port"
)

// CitationPassInput 全文引用补全输入。
type CitationPassInput struct {
	Text  string
	Style string

	Provider string
	Model    string
}

// CitationPassResult 引用补全结果。
type CitationPassResult struct {
	ProcessedText   string   `json:"processed_text"`
	Bibliography    string   `json:"bibliography"`
	InTextCitations []string `json:"in_text_citations"`
}

// CitationFormatter 引用补全端口，按请求对最终内容追加文内引用与参考文献。
type CitationFormatter interface {
	Apply(ctx context.Context, in *CitationPassInput) (*CitationPassResult, error)
}

// ChainCitationFormatter 基于引文工作流的引用补全实现。
type ChainCitationFormatter struct {
	chain *workflowchain.CitationChain
}

var _ CitationFormatter = (*ChainCitationFormatter)(nil)

func NewChainCitationFormatter(factory workflowport.ChatModelFactory) *ChainCitationFormatter {
	return &ChainCitationFormatter{
		chain: workflowchain.NewCitationChain(factory),
	}
}

// Apply 调用引文工作流并解析 JSON 结果。
// processed_text 缺失或为空视为失败，调用方保留原文继续。
func (f *ChainCitationFormatter) Apply(ctx context.Context, in *CitationPassInput) (*CitationPassResult, error) {
	if f == nil || f.chain == nil {
		return nil, fmt.Errorf("citation workflow not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	outMsg, err := f.chain.ApplyToText(ctx, &wfmodel.CitationApplyInput{
		Text:     in.Text,
		Style:    in.Style,
		Provider: in.Provider,
		Model:    in.Model,
	})
	if err != nil {
		return nil, err
	}

	jsonText := wfnode.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("empty citation pass output")
	}

	var result CitationPassResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("failed to parse citation pass json: %w", err)
	}
	if strings.TrimSpace(result.ProcessedText) == "" {
		return nil, fmt.Errorf("citation pass returned empty processed text")
	}
	return &result, nil
}
