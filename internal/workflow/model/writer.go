package model

// ChunkGenerateInput 生成一个全新内容分块的输入。
// CarryoverContext 为上一分块的接续摘要，首个分块为空。
// SectionRole 描述分块在全文中的定位（开篇、正文或收尾）。
type ChunkGenerateInput struct {
	Prompt string
	Style  string
	Tone   string

	CarryoverContext string
	SectionIndex     int
	SectionRole      string
	TotalWordCount   int
	TargetWordCount  int

	QualityTier string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// ChunkPolishInput 基于检索命中的相似内容改写出新分块的输入。
type ChunkPolishInput struct {
	Prompt string
	Style  string
	Tone   string

	BaseContent     string
	TargetWordCount int

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// ChunkRefineInput 质量整改输入。
// Issues 来自质量门的问题描述；targeted 改写保留合格部分，regenerate 整段重写。
type ChunkRefineInput struct {
	Prompt string
	Style  string
	Tone   string

	CarryoverContext string
	Draft            string
	Issues           []string
	TargetWordCount  int

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}
