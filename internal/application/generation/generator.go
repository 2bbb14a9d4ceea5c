package generation

import (
	"context"
	"fmt"
	"strings"

	workflowchain "z-writer-ai-api/internal/workflow/chain"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	workflowport "z-writer-ai-api/internal/workflow/port"
)

// ChunkGenerator 封装写作工作流，产出修剪后的分块正文。
type ChunkGenerator struct {
	chain *workflowchain.WriterChain
}

func NewChunkGenerator(factory workflowport.ChatModelFactory) *ChunkGenerator {
	return &ChunkGenerator{
		chain: workflowchain.NewWriterChain(factory),
	}
}

// Fresh 全新生成一个分块。
func (g *ChunkGenerator) Fresh(ctx context.Context, in *wfmodel.ChunkGenerateInput) (string, error) {
	if g == nil || g.chain == nil {
		return "", fmt.Errorf("writer workflow not configured")
	}
	outMsg, err := g.chain.GenerateChunk(ctx, in)
	if err != nil {
		return "", err
	}
	return chunkContent(outMsg.Content)
}

// Polish 以相似历史内容为底稿改写出分块。
func (g *ChunkGenerator) Polish(ctx context.Context, in *wfmodel.ChunkPolishInput) (string, error) {
	if g == nil || g.chain == nil {
		return "", fmt.Errorf("writer workflow not configured")
	}
	outMsg, err := g.chain.PolishChunk(ctx, in)
	if err != nil {
		return "", err
	}
	return chunkContent(outMsg.Content)
}

// Rewrite 定向改写质量门标记的问题部分。
func (g *ChunkGenerator) Rewrite(ctx context.Context, in *wfmodel.ChunkRefineInput) (string, error) {
	if g == nil || g.chain == nil {
		return "", fmt.Errorf("writer workflow not configured")
	}
	outMsg, err := g.chain.RewriteChunk(ctx, in)
	if err != nil {
		return "", err
	}
	return chunkContent(outMsg.Content)
}

// Regenerate 按质量门的问题与建议整段重写。
func (g *ChunkGenerator) Regenerate(ctx context.Context, in *wfmodel.ChunkRefineInput) (string, error) {
	if g == nil || g.chain == nil {
		return "", fmt.Errorf("writer workflow not configured")
	}
	outMsg, err := g.chain.RegenerateChunk(ctx, in)
	if err != nil {
		return "", err
	}
	return chunkContent(outMsg.Content)
}

func chunkContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", fmt.Errorf("empty chunk content")
	}
	return content, nil
}
