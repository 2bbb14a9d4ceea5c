package generation

import "context"

// VectorStore 内容向量存储端口，由 infrastructure/persistence/milvus 提供实现。
type VectorStore interface {
	// EnsureContentsCollection 确保内容向量集合与索引已创建并加载。
	EnsureContentsCollection(ctx context.Context) error

	// SearchContents 按查询向量检索历史内容，支持风格与字数过滤。
	SearchContents(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)

	// InsertContents 批量写入内容向量记录。
	InsertContents(ctx context.Context, records []*VectorContentRecord) error

	// DeleteContent 按内容 ID 删除向量记录。
	DeleteContent(ctx context.Context, contentID string) error
}

// VectorSearchParams 向量检索参数。MinWords/MaxWords 为 0 表示不限制。
type VectorSearchParams struct {
	QueryVector []float32
	Style       string
	Tone        string
	MinWords    int64
	MaxWords    int64
	TopK        int
}

// VectorSearchResult 向量检索结果。Score 为 COSINE 距离，越小越相似。
type VectorSearchResult struct {
	ContentID string
	Score     float32
	WordCount int64
}

// VectorContentRecord 待写入的内容向量记录。
type VectorContentRecord struct {
	ContentID string
	Vector    []float32
	UserID    string
	Style     string
	Tone      string
	WordCount int64
	CreatedAt int64
}
