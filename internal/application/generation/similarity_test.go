package generation

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
)

type stubEmbedder struct {
	vector []float64
	calls  int
}

func (e *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.calls++
	out := make([][]float64, 0, len(texts))
	for range texts {
		out = append(out, e.vector)
	}
	return out, nil
}

type stubVectorStore struct {
	results     []*VectorSearchResult
	lastParams  *VectorSearchParams
	inserted    []*VectorContentRecord
	deletedIDs  []string
	ensureCalls int
}

func (s *stubVectorStore) EnsureContentsCollection(_ context.Context) error {
	s.ensureCalls++
	return nil
}

func (s *stubVectorStore) SearchContents(_ context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error) {
	s.lastParams = params
	return s.results, nil
}

func (s *stubVectorStore) InsertContents(_ context.Context, records []*VectorContentRecord) error {
	s.inserted = append(s.inserted, records...)
	return nil
}

func (s *stubVectorStore) DeleteContent(_ context.Context, contentID string) error {
	s.deletedIDs = append(s.deletedIDs, contentID)
	return nil
}

func newContentDB(t *testing.T) (*postgres.GeneratedContentRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.GeneratedContent{}))
	return postgres.NewGeneratedContentRepository(postgres.NewClientWithDB(db)), db
}

func TestSimilarityService_DisabledDegradesToNoMatch(t *testing.T) {
	svc := NewSimilarityService(nil, nil, nil)

	assert.False(t, svc.Enabled())

	match, err := svc.FindSimilar(context.Background(), &SimilarityQuery{Prompt: "任意提示"})
	require.NoError(t, err)
	assert.Nil(t, match)

	err = svc.IndexContent(context.Background(), entity.NewGeneratedContent("u", "p", "", "", "c", 1))
	assert.ErrorIs(t, err, ErrSimilarityDisabled)
}

func TestSimilarityService_FindSimilarAboveThreshold(t *testing.T) {
	contents, db := newContentDB(t)
	stored := entity.NewGeneratedContent("user-1", "城市化对经济的影响", "学术", "严肃", "既有内容正文", 500)
	require.NoError(t, db.Create(stored).Error)

	vector := &stubVectorStore{results: []*VectorSearchResult{
		{ContentID: "below-threshold", Score: 0.30, WordCount: 480},
		{ContentID: stored.ID, Score: 0.12, WordCount: 500},
	}}
	svc := NewSimilarityService(&stubEmbedder{vector: []float64{0.1, 0.2}}, vector, contents)

	match, err := svc.FindSimilar(context.Background(), &SimilarityQuery{
		Prompt:         "城市化对经济的影响",
		Style:          "学术",
		Tone:           "严肃",
		RequestedWords: 1000,
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, stored.ID, match.Content.ID)
	assert.InDelta(t, 0.88, match.Similarity, 0.001)

	// 检索参数带上风格过滤与字数区间
	require.NotNil(t, vector.lastParams)
	assert.Equal(t, "学术", vector.lastParams.Style)
	assert.Equal(t, int64(500), vector.lastParams.MinWords)
	assert.Equal(t, int64(1500), vector.lastParams.MaxWords)
}

func TestSimilarityService_NoCandidateAboveThreshold(t *testing.T) {
	contents, _ := newContentDB(t)
	vector := &stubVectorStore{results: []*VectorSearchResult{
		{ContentID: "far-away", Score: 0.45},
	}}
	svc := NewSimilarityService(&stubEmbedder{vector: []float64{0.5}}, vector, contents)

	match, err := svc.FindSimilar(context.Background(), &SimilarityQuery{Prompt: "提示"})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestSimilarityService_StaleVectorRowSkipped(t *testing.T) {
	contents, _ := newContentDB(t)
	vector := &stubVectorStore{results: []*VectorSearchResult{
		{ContentID: "deleted-from-db", Score: 0.05},
	}}
	svc := NewSimilarityService(&stubEmbedder{vector: []float64{0.5}}, vector, contents)

	match, err := svc.FindSimilar(context.Background(), &SimilarityQuery{Prompt: "提示"})
	require.NoError(t, err)
	assert.Nil(t, match, "vector hit without backing row yields no match")
}

func TestSimilarityService_IndexContent(t *testing.T) {
	contents, db := newContentDB(t)
	stored := entity.NewGeneratedContent("user-1", "提示", "博客", "轻松", "正文内容", 320)
	require.NoError(t, db.Create(stored).Error)

	vector := &stubVectorStore{}
	svc := NewSimilarityService(&stubEmbedder{vector: []float64{0.3, 0.4}}, vector, contents)

	require.NoError(t, svc.IndexContent(context.Background(), stored))

	// 先删旧向量再写入，保持重复投递幂等
	assert.Equal(t, []string{stored.ID}, vector.deletedIDs)
	require.Len(t, vector.inserted, 1)
	assert.Equal(t, stored.ID, vector.inserted[0].ContentID)
	assert.Equal(t, []float32{0.3, 0.4}, vector.inserted[0].Vector)
	assert.Equal(t, int64(320), vector.inserted[0].WordCount)

	var reloaded entity.GeneratedContent
	require.NoError(t, db.First(&reloaded, "id = ?", stored.ID).Error)
	assert.True(t, reloaded.Indexed)
}
