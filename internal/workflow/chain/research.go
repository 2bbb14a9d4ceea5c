package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	llmctx "z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	wfnode "z-writer-ai-api/internal/workflow/node"
	workflowport "z-writer-ai-api/internal/workflow/port"
	workflowprompt "z-writer-ai-api/internal/workflow/prompt"
)

// ResearchChain 研究简报工作流：围绕主题产出结构化调研材料。
type ResearchChain struct {
	factory workflowport.ChatModelFactory
}

func NewResearchChain(factory workflowport.ChatModelFactory) *ResearchChain {
	return &ResearchChain{factory: factory}
}

func (c *ResearchChain) Invoke(ctx context.Context, in *wfmodel.ResearchBriefInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if in.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target_word_count is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "research_brief", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := researchPromptRegistry.ChatTemplate(workflowprompt.PromptResearchBriefV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"topic":             strings.TrimSpace(in.Topic),
		"focus":             strings.TrimSpace(in.Focus),
		"target_word_count": in.TargetWordCount,
		"attachments_block": wfnode.BuildAttachmentsBlock(in.Notes),
	})
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildWriterModelOptions(in.Temperature, in.MaxTokens, in.Model)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

var researchPromptRegistry = workflowprompt.NewRegistry()
