package generation

import (
	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
)

// ChunkRole 分块在全文中的定位。
type ChunkRole string

const (
	ChunkRoleOpening ChunkRole = "opening"
	ChunkRoleBody    ChunkRole = "body"
	ChunkRoleClosing ChunkRole = "closing"
)

// closingTailRatio 全文末尾该比例以内的分块视为收尾段
const closingTailRatio = 0.2

// Label 返回提示词中使用的角色描述。
func (r ChunkRole) Label() string {
	switch r {
	case ChunkRoleOpening:
		return "开篇"
	case ChunkRoleClosing:
		return "收尾"
	default:
		return "正文"
	}
}

// Chunker 按订阅档位和请求字数规划分块。
type Chunker struct {
	chunkLimit     int
	requestedWords int
}

func NewChunker(tier entity.PlanTier, requestedWords int) *Chunker {
	return &Chunker{
		chunkLimit:     tier.ChunkWordLimit(),
		requestedWords: requestedWords,
	}
}

// ChunkLimit 单个分块的目标字数上限。
func (c *Chunker) ChunkLimit() int {
	return c.chunkLimit
}

// NextTarget 下一分块的目标字数，为档位上限与剩余字数的较小值。
// 已达到请求字数时返回 0。
func (c *Chunker) NextTarget(totalGenerated int) int {
	remaining := c.requestedWords - totalGenerated
	if remaining <= 0 {
		return 0
	}
	if remaining < c.chunkLimit {
		return remaining
	}
	return c.chunkLimit
}

// Role 推导分块角色：首块为开篇，进入全文末尾约 20% 后为收尾，其余为正文。
func (c *Chunker) Role(index, totalGenerated int) ChunkRole {
	if index == 0 {
		return ChunkRoleOpening
	}
	if float64(totalGenerated) >= float64(c.requestedWords)*(1-closingTailRatio) {
		return ChunkRoleClosing
	}
	return ChunkRoleBody
}

// Sections 把命中的历史内容按分块上限切段，与本次请求的分块节奏对齐。
func (c *Chunker) Sections(content string) []string {
	return textutil.SplitByWords(content, c.chunkLimit)
}
