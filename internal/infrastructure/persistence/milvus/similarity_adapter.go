package milvus

import (
	"context"

	"z-writer-ai-api/internal/application/generation"
)

// SimilarityVectorStore 将 Milvus 仓储适配为 generation.VectorStore 端口。
type SimilarityVectorStore struct {
	repo *Repository
}

func NewSimilarityVectorStore(repo *Repository) *SimilarityVectorStore {
	return &SimilarityVectorStore{repo: repo}
}

var _ generation.VectorStore = (*SimilarityVectorStore)(nil)

func (s *SimilarityVectorStore) EnsureContentsCollection(ctx context.Context) error {
	if s == nil || s.repo == nil {
		return generation.ErrSimilarityDisabled
	}
	return s.repo.EnsureWriterContentsCollection(ctx)
}

func (s *SimilarityVectorStore) SearchContents(ctx context.Context, params *generation.VectorSearchParams) ([]*generation.VectorSearchResult, error) {
	if s == nil || s.repo == nil {
		return nil, generation.ErrSimilarityDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := s.repo.SearchContents(ctx, &SearchParams{
		QueryVector: params.QueryVector,
		Style:       params.Style,
		Tone:        params.Tone,
		MinWords:    params.MinWords,
		MaxWords:    params.MaxWords,
		TopK:        params.TopK,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*generation.VectorSearchResult, 0, len(out))
	for i := range out {
		v := out[i]
		if v == nil {
			continue
		}
		results = append(results, &generation.VectorSearchResult{
			ContentID: v.ID,
			Score:     v.Score,
			WordCount: v.WordCount,
		})
	}
	return results, nil
}

func (s *SimilarityVectorStore) InsertContents(ctx context.Context, records []*generation.VectorContentRecord) error {
	if s == nil || s.repo == nil {
		return generation.ErrSimilarityDisabled
	}
	if len(records) == 0 {
		return nil
	}

	out := make([]*ContentVector, 0, len(records))
	for i := range records {
		r := records[i]
		if r == nil {
			continue
		}
		out = append(out, &ContentVector{
			ID:        r.ContentID,
			Vector:    r.Vector,
			UserID:    r.UserID,
			Style:     r.Style,
			Tone:      r.Tone,
			WordCount: r.WordCount,
			CreatedAt: r.CreatedAt,
		})
	}
	return s.repo.InsertContents(ctx, out)
}

func (s *SimilarityVectorStore) DeleteContent(ctx context.Context, contentID string) error {
	if s == nil || s.repo == nil {
		return generation.ErrSimilarityDisabled
	}
	return s.repo.DeleteContent(ctx, contentID)
}
