package chain

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	wfnode "z-writer-ai-api/internal/workflow/node"
	workflowport "z-writer-ai-api/internal/workflow/port"
	workflowprompt "z-writer-ai-api/internal/workflow/prompt"
	"z-writer-ai-api/pkg/logger"
)

// OptimizeChain 提示词优化工作流：把口语化需求改写成约束明确的生成提示。
type OptimizeChain struct {
	factory workflowport.ChatModelFactory
}

func NewOptimizeChain(factory workflowport.ChatModelFactory) *OptimizeChain {
	return &OptimizeChain{factory: factory}
}

func (c *OptimizeChain) Invoke(ctx context.Context, in *wfmodel.PromptOptimizeInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "prompt_optimize", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := optimizePromptRegistry.ChatTemplate(workflowprompt.PromptOptimizeV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"prompt": strings.TrimSpace(in.Prompt),
		"goal":   strings.TrimSpace(in.Goal),
	})
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildOptimizeModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", strings.TrimSpace(in.Provider),
			"model", strings.TrimSpace(in.Model),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildOptimizeModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

var optimizePromptRegistry = workflowprompt.NewRegistry()

func buildOptimizeModelOptions(in *wfmodel.PromptOptimizeInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}

	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}

	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "optimized_prompt",
					"strict": false,
					"schema": promptOptimizeJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func promptOptimizeJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"optimized_prompt"},
		"properties": map[string]any{
			"optimized_prompt": map[string]any{"type": "string"},
			"notes": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}
}
