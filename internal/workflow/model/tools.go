package model

// CitationSource 待格式化的文献条目
type CitationSource struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
	Source  string   `json:"source"`
	URL     string   `json:"url,omitempty"`
	DOI     string   `json:"doi,omitempty"`
}

// CitationFormatInput 引文格式化输入，style 支持 apa/mla/chicago。
type CitationFormatInput struct {
	Sources []CitationSource
	Style   string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// CitationApplyInput 全文引用补全输入：为整篇文稿插入文内引用并生成参考文献。
type CitationApplyInput struct {
	Text  string
	Style string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// ResearchBriefInput 研究摘要生成输入，Notes 为调用方附带的原始材料。
type ResearchBriefInput struct {
	Topic string
	Focus string

	TargetWordCount int
	Notes           []TextAttachment

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// PromptOptimizeInput 提示词优化输入
type PromptOptimizeInput struct {
	Prompt string
	Goal   string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}
