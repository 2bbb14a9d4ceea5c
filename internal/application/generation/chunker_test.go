package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
)

func TestChunkerNextTarget(t *testing.T) {
	tests := []struct {
		name           string
		tier           entity.PlanTier
		requestedWords int
		totalGenerated int
		want           int
	}{
		{name: "free tier capped at chunk limit", tier: entity.PlanTierFree, requestedWords: 1000, totalGenerated: 0, want: 400},
		{name: "remaining below limit", tier: entity.PlanTierFree, requestedWords: 1000, totalGenerated: 900, want: 100},
		{name: "pro tier larger chunks", tier: entity.PlanTierPro, requestedWords: 2000, totalGenerated: 0, want: 800},
		{name: "premium tier largest chunks", tier: entity.PlanTierPremium, requestedWords: 5000, totalGenerated: 1500, want: 1500},
		{name: "request smaller than limit", tier: entity.PlanTierPremium, requestedWords: 300, totalGenerated: 0, want: 300},
		{name: "done", tier: entity.PlanTierFree, requestedWords: 400, totalGenerated: 400, want: 0},
		{name: "overshoot", tier: entity.PlanTierFree, requestedWords: 400, totalGenerated: 450, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChunker(tt.tier, tt.requestedWords)
			assert.Equal(t, tt.want, c.NextTarget(tt.totalGenerated))
		})
	}
}

func TestChunkerRole(t *testing.T) {
	c := NewChunker(entity.PlanTierFree, 1000)

	assert.Equal(t, ChunkRoleOpening, c.Role(0, 0))
	assert.Equal(t, ChunkRoleBody, c.Role(1, 400))
	assert.Equal(t, ChunkRoleBody, c.Role(2, 799))
	// 进入全文末尾 20% 后为收尾
	assert.Equal(t, ChunkRoleClosing, c.Role(2, 800))
	assert.Equal(t, ChunkRoleClosing, c.Role(3, 950))
}

func TestChunkerRole_SingleChunkIsOpening(t *testing.T) {
	c := NewChunker(entity.PlanTierPremium, 300)
	assert.Equal(t, ChunkRoleOpening, c.Role(0, 0))
}

func TestChunkerSections(t *testing.T) {
	c := NewChunker(entity.PlanTierFree, 1200)

	content := "one two three four. five six seven eight. nine ten eleven twelve."
	sections := c.Sections(content)
	assert.Equal(t, []string{content}, sections, "content within chunk limit stays whole")

	small := NewChunker(entity.PlanTierFree, 1200)
	small.chunkLimit = 4
	parts := small.Sections(content)
	assert.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, textutil.CountWords(p), 4)
	}
}

func TestChunkRoleLabel(t *testing.T) {
	assert.Equal(t, "开篇", ChunkRoleOpening.Label())
	assert.Equal(t, "正文", ChunkRoleBody.Label())
	assert.Equal(t, "收尾", ChunkRoleClosing.Label())
}
