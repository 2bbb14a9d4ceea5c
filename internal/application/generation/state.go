package generation

import "strings"

// ChunkMode 分块的产出方式
type ChunkMode string

const (
	ChunkModeFresh  ChunkMode = "fresh"
	ChunkModePolish ChunkMode = "polish"
)

// ChunkResult 单个分块的最终产出与质量结论。
type ChunkResult struct {
	Text   string
	Words  int
	Mode   ChunkMode
	Cycles int
	Gate   *DetectionResult
}

// GenerationState 分块循环的运行时状态，仅存在于单次请求内。
type GenerationState struct {
	Results          []*ChunkResult
	TotalWords       int
	ChunkIndex       int
	RefinementCycles int
	Carryover        string
	UsedSimilar      bool
}

// Append 记录已接受的分块并推进接续上下文。
func (s *GenerationState) Append(chunk *ChunkResult) {
	s.Results = append(s.Results, chunk)
	s.TotalWords += chunk.Words
	s.ChunkIndex++
	s.RefinementCycles += chunk.Cycles
	if chunk.Mode == ChunkModePolish {
		s.UsedSimilar = true
	}
	s.Carryover = BuildCarryover(chunk.Text, s.JoinedText())
}

// JoinedText 已接受分块按双换行拼接的全文。
func (s *GenerationState) JoinedText() string {
	parts := make([]string, 0, len(s.Results))
	for _, c := range s.Results {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (s *GenerationState) ChunkCount() int {
	return len(s.Results)
}
