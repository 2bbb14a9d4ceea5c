package generation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

const (
	// reuseSimilarityThreshold 相似度达到该值才复用历史内容
	reuseSimilarityThreshold = 0.80
	// similarityTopK 向量检索候选数量
	similarityTopK = 5
	// reuseWordTolerance 候选字数允许偏离请求字数的比例
	reuseWordTolerance = 0.5
)

// SimilarityQuery 相似检索查询。
type SimilarityQuery struct {
	Prompt         string
	Style          string
	Tone           string
	RequestedWords int
}

// SimilarityMatch 命中的可复用内容。
type SimilarityMatch struct {
	Content    *entity.GeneratedContent
	Similarity float64
}

// SimilarityService 基于提示指纹向量检索可复用的历史生成内容。
// embedder 或 vector 未配置时服务自动降级，所有查询返回未命中。
type SimilarityService struct {
	embedder embedding.Embedder
	vector   VectorStore
	contents repository.GeneratedContentRepository
}

// NewSimilarityService 创建相似内容检索服务。依赖允许为 nil，此时服务不可用。
func NewSimilarityService(embedder embedding.Embedder, vector VectorStore, contents repository.GeneratedContentRepository) *SimilarityService {
	return &SimilarityService{
		embedder: embedder,
		vector:   vector,
		contents: contents,
	}
}

// Enabled 相似检索是否可用。
func (s *SimilarityService) Enabled() bool {
	return s != nil && s.embedder != nil && s.vector != nil && s.contents != nil
}

// FindSimilar 查找与请求指纹足够相似的历史内容。
// 服务未启用或无命中时返回 (nil, nil)；检索出错时返回错误，由调用方决定是否降级继续。
func (s *SimilarityService) FindSimilar(ctx context.Context, query *SimilarityQuery) (*SimilarityMatch, error) {
	if query == nil || strings.TrimSpace(query.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if !s.Enabled() {
		return nil, nil
	}
	if err := s.vector.EnsureContentsCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure contents collection: %w", err)
	}

	vec, err := s.embedFingerprint(ctx, entity.ContentFingerprint(query.Prompt, query.Style, query.Tone))
	if err != nil {
		return nil, err
	}

	params := &VectorSearchParams{
		QueryVector: vec,
		Style:       strings.TrimSpace(query.Style),
		Tone:        strings.TrimSpace(query.Tone),
		TopK:        similarityTopK,
	}
	if query.RequestedWords > 0 {
		params.MinWords = int64(math.Floor(float64(query.RequestedWords) * (1 - reuseWordTolerance)))
		params.MaxWords = int64(math.Ceil(float64(query.RequestedWords) * (1 + reuseWordTolerance)))
	}

	results, err := s.vector.SearchContents(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search contents: %w", err)
	}

	type candidate struct {
		contentID  string
		similarity float64
	}
	candidates := make([]candidate, 0, len(results))
	for _, r := range results {
		// Milvus 返回 COSINE 距离，转换为相似度
		sim := 1 - float64(r.Score)
		if sim < reuseSimilarityThreshold {
			continue
		}
		candidates = append(candidates, candidate{contentID: r.ContentID, similarity: sim})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.contentID)
	}
	found, err := s.contents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate contents: %w", err)
	}
	byID := make(map[string]*entity.GeneratedContent, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	for _, c := range candidates {
		if content, ok := byID[c.contentID]; ok {
			return &SimilarityMatch{Content: content, Similarity: c.similarity}, nil
		}
	}
	// 向量索引中的候选已在数据库中删除
	return nil, nil
}

// IndexContent 写入内容向量并标记已索引。
// 先删除同 ID 旧向量再插入，重复投递时保持幂等。
func (s *SimilarityService) IndexContent(ctx context.Context, content *entity.GeneratedContent) error {
	if content == nil || strings.TrimSpace(content.ID) == "" {
		return fmt.Errorf("content with id is required")
	}
	if !s.Enabled() {
		return ErrSimilarityDisabled
	}
	if err := s.vector.EnsureContentsCollection(ctx); err != nil {
		return err
	}

	vec, err := s.embedFingerprint(ctx, content.Fingerprint())
	if err != nil {
		return err
	}
	if err := s.vector.DeleteContent(ctx, content.ID); err != nil {
		return err
	}

	record := &VectorContentRecord{
		ContentID: content.ID,
		Vector:    vec,
		UserID:    content.UserID,
		Style:     content.Style,
		Tone:      content.Tone,
		WordCount: int64(content.WordCount),
		CreatedAt: content.CreatedAt.Unix(),
	}
	if err := s.vector.InsertContents(ctx, []*VectorContentRecord{record}); err != nil {
		return err
	}
	return s.contents.MarkIndexed(ctx, content.ID)
}

func (s *SimilarityService) embedFingerprint(ctx context.Context, text string) ([]float32, error) {
	if s == nil || s.embedder == nil {
		return nil, ErrSimilarityDisabled
	}
	vectors, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed fingerprint: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned empty vector")
	}
	out := make([]float32, 0, len(vectors[0]))
	for _, v := range vectors[0] {
		out = append(out, float32(v))
	}
	return out, nil
}
