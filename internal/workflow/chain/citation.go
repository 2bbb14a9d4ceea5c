package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	wfnode "z-writer-ai-api/internal/workflow/node"
	workflowport "z-writer-ai-api/internal/workflow/port"
	workflowprompt "z-writer-ai-api/internal/workflow/prompt"
	"z-writer-ai-api/pkg/logger"
)

type CitationChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.CitationFormatInput, *schema.Message]
	chainErr  error
}

func NewCitationChain(factory workflowport.ChatModelFactory) *CitationChain {
	return &CitationChain{factory: factory}
}

func (c *CitationChain) Invoke(ctx context.Context, in *wfmodel.CitationFormatInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if len(in.Sources) == 0 {
		return nil, fmt.Errorf("sources are required")
	}
	if strings.TrimSpace(in.Style) == "" {
		return nil, fmt.Errorf("citation style is required")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type citationChainState struct {
	In       *wfmodel.CitationFormatInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *CitationChain) getChain() (compose.Runnable[*wfmodel.CitationFormatInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *CitationChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.CitationFormatInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.CitationFormatInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.CitationFormatInput) (*citationChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			return &citationChainState{In: in}, nil
		}),
		compose.WithNodeName("citation.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *citationChainState) (*citationChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			msgs, err := formatCitationMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("citation.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *citationChainState) (*citationChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, "citation_format", strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildCitationModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildCitationModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("citation.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *citationChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("citation.finalize"),
	)

	return chain.Compile(ctx)
}

// ApplyToText 为整篇文稿补全文内引用与参考文献。
// 与 Invoke 的条目格式化不同，这里以全文为单位处理。
func (c *CitationChain) ApplyToText(ctx context.Context, in *wfmodel.CitationApplyInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if strings.TrimSpace(in.Style) == "" {
		return nil, fmt.Errorf("citation style is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "citation_apply", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := citationPromptRegistry.ChatTemplate(workflowprompt.PromptCitationApplyV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"style": strings.TrimSpace(in.Style),
		"text":  strings.TrimSpace(in.Text),
	})
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildCitationApplyModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", strings.TrimSpace(in.Provider),
			"model", strings.TrimSpace(in.Model),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildCitationApplyModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

var citationPromptRegistry = workflowprompt.NewRegistry()

func formatCitationMessages(ctx context.Context, in *wfmodel.CitationFormatInput) ([]*schema.Message, error) {
	tpl, err := citationPromptRegistry.ChatTemplate(workflowprompt.PromptCitationFormatV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{
		"style":         strings.TrimSpace(in.Style),
		"sources_block": wfnode.BuildSourcesBlock(in.Sources),
	})
}

func buildCitationModelOptions(in *wfmodel.CitationFormatInput, enableSchema bool) []model.Option {
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
					"name":   "citation_list",
					"strict": false,
					"schema": citationJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func buildCitationApplyModelOptions(in *wfmodel.CitationApplyInput, enableSchema bool) []model.Option {
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
					"name":   "citation_apply",
					"strict": false,
					"schema": citationApplyJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func citationApplyJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"processed_text"},
		"properties": map[string]any{
			"processed_text": map[string]any{"type": "string"},
			"bibliography":   map[string]any{"type": "string"},
			"in_text_citations": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}
}

func citationJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"citations"},
		"properties": map[string]any{
			"citations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"formatted"},
					"properties": map[string]any{
						"formatted": map[string]any{"type": "string"},
						"in_text":   map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}
