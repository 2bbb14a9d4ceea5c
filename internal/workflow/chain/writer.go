package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	wfnode "z-writer-ai-api/internal/workflow/node"
	workflowport "z-writer-ai-api/internal/workflow/port"
	workflowprompt "z-writer-ai-api/internal/workflow/prompt"
)

// WriterChain 写作分块工作流：全新生成、底稿改写、定向修订与整段重写。
type WriterChain struct {
	factory workflowport.ChatModelFactory
}

func NewWriterChain(factory workflowport.ChatModelFactory) *WriterChain {
	return &WriterChain{factory: factory}
}

func (c *WriterChain) GenerateChunk(ctx context.Context, in *wfmodel.ChunkGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if in.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target_word_count is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "chunk_generate", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := writerPromptRegistry.ChatTemplate(workflowprompt.PromptChunkGenerateV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"prompt":            strings.TrimSpace(in.Prompt),
		"style":             strings.TrimSpace(in.Style),
		"tone":              strings.TrimSpace(in.Tone),
		"quality_tier":      strings.TrimSpace(in.QualityTier),
		"total_word_count":  in.TotalWordCount,
		"section_index":     in.SectionIndex + 1,
		"section_role":      strings.TrimSpace(in.SectionRole),
		"target_word_count": in.TargetWordCount,
		"carryover_block":   wfnode.BuildCarryoverBlock(in.CarryoverContext),
	})
	if err != nil {
		return nil, err
	}

	return c.generate(ctx, chatModel, msgs, in.Temperature, in.MaxTokens, in.Model)
}

func (c *WriterChain) PolishChunk(ctx context.Context, in *wfmodel.ChunkPolishInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.BaseContent) == "" {
		return nil, fmt.Errorf("base content is required")
	}
	if in.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target_word_count is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "chunk_polish", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := writerPromptRegistry.ChatTemplate(workflowprompt.PromptChunkPolishV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"prompt":            strings.TrimSpace(in.Prompt),
		"style":             strings.TrimSpace(in.Style),
		"tone":              strings.TrimSpace(in.Tone),
		"target_word_count": in.TargetWordCount,
		"base_content":      strings.TrimSpace(in.BaseContent),
	})
	if err != nil {
		return nil, err
	}

	return c.generate(ctx, chatModel, msgs, in.Temperature, in.MaxTokens, in.Model)
}

// RewriteChunk 定向修订：只改写质量门指出的问题部分。
func (c *WriterChain) RewriteChunk(ctx context.Context, in *wfmodel.ChunkRefineInput) (*schema.Message, error) {
	return c.refine(ctx, "chunk_rewrite", workflowprompt.PromptChunkRewriteV1, in)
}

// RegenerateChunk 整段重写：丢弃草稿表达，规避全部质量问题。
func (c *WriterChain) RegenerateChunk(ctx context.Context, in *wfmodel.ChunkRefineInput) (*schema.Message, error) {
	return c.refine(ctx, "chunk_regenerate", workflowprompt.PromptChunkRegenerateV1, in)
}

func (c *WriterChain) refine(ctx context.Context, workflow string, promptID workflowprompt.PromptID, in *wfmodel.ChunkRefineInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Draft) == "" {
		return nil, fmt.Errorf("draft is required")
	}
	if in.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target_word_count is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, workflow, strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := writerPromptRegistry.ChatTemplate(promptID)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"prompt":            strings.TrimSpace(in.Prompt),
		"style":             strings.TrimSpace(in.Style),
		"tone":              strings.TrimSpace(in.Tone),
		"target_word_count": in.TargetWordCount,
		"carryover_block":   wfnode.BuildCarryoverBlock(in.CarryoverContext),
		"draft":             strings.TrimSpace(in.Draft),
		"issues_block":      wfnode.BuildIssuesBlock(in.Issues),
	})
	if err != nil {
		return nil, err
	}

	return c.generate(ctx, chatModel, msgs, in.Temperature, in.MaxTokens, in.Model)
}

func (c *WriterChain) generate(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message, temperature *float32, maxTokens *int, modelName string) (*schema.Message, error) {
	outMsg, err := chatModel.Generate(ctx, msgs, buildWriterModelOptions(temperature, maxTokens, modelName)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

var writerPromptRegistry = workflowprompt.NewRegistry()

func buildWriterModelOptions(temperature *float32, maxTokens *int, modelName string) []model.Option {
	opts := make([]model.Option, 0, 3)
	if temperature != nil {
		opts = append(opts, model.WithTemperature(*temperature))
	}
	if maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*maxTokens))
	}
	if strings.TrimSpace(modelName) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(modelName)))
	}
	return opts
}
