// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	Style       string
	Tone        string
	MinWords    int64
	MaxWords    int64
	TopK        int
}

// SearchResult 检索结果
type SearchResult struct {
	ID        string
	Score     float32
	WordCount int64
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// SearchContents 检索相似内容
// 过滤条件按 style/tone 精确匹配、word_count 落在区间内。
func (r *Repository) SearchContents(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchContents",
		trace.WithAttributes(attribute.Int("top_k", params.TopK)))
	defer span.End()

	collName := r.client.CollectionName(CollectionWriterContents)

	// 构建过滤表达式
	var conds []string
	if s := strings.TrimSpace(params.Style); s != "" {
		conds = append(conds, fmt.Sprintf(`style == "%s"`, s))
	}
	if t := strings.TrimSpace(params.Tone); t != "" {
		conds = append(conds, fmt.Sprintf(`tone == "%s"`, t))
	}
	if params.MinWords > 0 {
		conds = append(conds, fmt.Sprintf(`word_count >= %d`, params.MinWords))
	}
	if params.MaxWords > 0 {
		conds = append(conds, fmt.Sprintf(`word_count <= %d`, params.MaxWords))
	}
	filter := strings.Join(conds, " && ")

	// 搜索参数
	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	// 执行搜索
	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "word_count"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	// 解析结果
	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			// 提取字段值
			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if wcCol, ok := result.Fields.GetColumn("word_count").(*entity.ColumnInt64); ok {
				sr.WordCount = wcCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertContents 插入内容向量
func (r *Repository) InsertContents(ctx context.Context, contents []*ContentVector) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertContents",
		trace.WithAttributes(attribute.Int("count", len(contents))))
	defer span.End()

	if len(contents) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionWriterContents)

	// 准备数据
	ids := make([]string, len(contents))
	vectors := make([][]float32, len(contents))
	userIDs := make([]string, len(contents))
	styles := make([]string, len(contents))
	tones := make([]string, len(contents))
	wordCounts := make([]int64, len(contents))
	createdAts := make([]int64, len(contents))

	for i, c := range contents {
		ids[i] = c.ID
		vectors[i] = c.Vector
		userIDs[i] = c.UserID
		styles[i] = c.Style
		tones[i] = c.Tone
		wordCounts[i] = c.WordCount
		createdAts[i] = c.CreatedAt
	}

	// 构建列
	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, vectors)
	userCol := entity.NewColumnVarChar("user_id", userIDs)
	styleCol := entity.NewColumnVarChar("style", styles)
	toneCol := entity.NewColumnVarChar("tone", tones)
	wcCol := entity.NewColumnInt64("word_count", wordCounts)
	createdCol := entity.NewColumnInt64("created_at", createdAts)

	// 插入
	_, err := r.client.milvus.Insert(ctx, collName, "",
		idCol, vectorCol, userCol, styleCol, toneCol, wcCol, createdCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert contents: %w", err)
	}

	return nil
}

// DeleteContent 删除内容向量
func (r *Repository) DeleteContent(ctx context.Context, id string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "milvus.DeleteContent",
		trace.WithAttributes(attribute.String("content_id", id)))
	defer span.End()

	collName := r.client.CollectionName(CollectionWriterContents)

	filter := fmt.Sprintf(`id == "%s"`, id)
	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// RebuildIndex 重建索引
func (r *Repository) RebuildIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.RebuildIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	// 1. 释放集合
	if err := r.client.milvus.ReleaseCollection(ctx, collName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to release collection: %w", err)
	}

	// 2. 删除旧索引
	if err := r.client.milvus.DropIndex(ctx, collName, "vector"); err != nil {
		// 忽略索引不存在的错误
	}

	// 3. 创建新索引
	if err := r.CreateIndex(ctx, collection); err != nil {
		return err
	}

	// 4. 重新加载集合
	return r.client.milvus.LoadCollection(ctx, collName, false)
}

// EnsureWriterContentsCollection 确保 writer_contents 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureWriterContentsCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionWriterContents)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, WriterContentsSchema()); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionWriterContents)
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionWriterContents)
}
