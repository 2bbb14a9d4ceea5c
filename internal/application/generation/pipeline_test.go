package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/service"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	apperrors "z-writer-ai-api/pkg/errors"
)

// fakeChatModel 按脚本顺序返回回复，并记录收到的消息以便断言提示词内容。
type fakeChatModel struct {
	mu       sync.Mutex
	replies  []string
	requests [][]*schema.Message
	failWith error
	onReply  func(call int)
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.requests = append(m.requests, input)
	call := len(m.requests)
	if m.failWith != nil {
		m.mu.Unlock()
		return nil, m.failWith
	}
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return nil, errors.New("no scripted reply left")
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	hook := m.onReply
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return &schema.Message{Role: schema.Assistant, Content: next}, nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not scripted")
}

func (m *fakeChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// userPrompt 返回第 i 次调用的 user 消息内容。
func (m *fakeChatModel) userPrompt(t *testing.T, i int) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Less(t, i, len(m.requests))
	for _, msg := range m.requests[i] {
		if msg.Role == schema.User {
			return msg.Content
		}
	}
	t.Fatalf("no user message in request %d", i)
	return ""
}

type fakeModelFactory struct {
	chat model.BaseChatModel
}

func (f *fakeModelFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.chat, nil
}

// sequenceDetector 按队列顺序返回检测报告，队列耗尽后返回兜底报告。
type sequenceDetector struct {
	mu       sync.Mutex
	queue    []*DetectionReport
	fallback *DetectionReport
	err      error
	scans    int
}

func (d *sequenceDetector) Scan(_ context.Context, _ string) (*DetectionReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scans++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.queue) > 0 {
		report := d.queue[0]
		d.queue = d.queue[1:]
		return report, nil
	}
	if d.fallback != nil {
		return d.fallback, nil
	}
	return cleanReport(), nil
}

func cleanReport() *DetectionReport {
	return &DetectionReport{OriginalityScore: 95, AILikelihood: 10, ReadabilityGrade: 8}
}

type recordingPublisher struct {
	mu          sync.Mutex
	indexEvents []service.ContentIndexEvent
	auditEvents []service.AuditEvent
}

func (p *recordingPublisher) PublishContentIndex(_ context.Context, event service.ContentIndexEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexEvents = append(p.indexEvents, event)
	return nil
}

func (p *recordingPublisher) PublishAudit(_ context.Context, event service.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auditEvents = append(p.auditEvents, event)
	return nil
}

type fakeCitationFormatter struct {
	result *CitationPassResult
	err    error
	gotIn  *CitationPassInput
}

func (f *fakeCitationFormatter) Apply(_ context.Context, in *CitationPassInput) (*CitationPassResult, error) {
	f.gotIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type pipelineEnv struct {
	db         *gorm.DB
	chat       *fakeChatModel
	detector   *sequenceDetector
	publisher  *recordingPublisher
	ledger     *credit.Ledger
	reconciler *credit.Reconciler
	runs       *postgres.GenerationRunRepository
	contents   *postgres.GeneratedContentRepository
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entity.Account{},
		&entity.CreditTransaction{},
		&entity.MonthlyUsageRecord{},
		&entity.GenerationRun{},
		&entity.GeneratedContent{},
	))

	client := postgres.NewClientWithDB(db)
	usage := postgres.NewMonthlyUsageRepository(client)
	ledger := credit.NewLedger(
		postgres.NewAccountRepository(client),
		postgres.NewCreditTransactionRepository(client),
		usage,
		credit.NewQuotaChecker(usage),
		postgres.NewTxManager(client),
	)
	publisher := &recordingPublisher{}
	return &pipelineEnv{
		db:         db,
		chat:       &fakeChatModel{},
		detector:   &sequenceDetector{},
		publisher:  publisher,
		ledger:     ledger,
		reconciler: credit.NewReconciler(ledger, publisher),
		runs:       postgres.NewGenerationRunRepository(client),
		contents:   postgres.NewGeneratedContentRepository(client),
	}
}

func (e *pipelineEnv) newPipeline(similarity *SimilarityService, citations CitationFormatter) *Pipeline {
	return NewPipeline(
		e.ledger,
		e.reconciler,
		e.runs,
		e.contents,
		NewChunkGenerator(&fakeModelFactory{chat: e.chat}),
		NewQualityGate(e.detector, nil),
		similarity,
		citations,
		e.publisher,
	)
}

func (e *pipelineEnv) seedAccount(t *testing.T, tier entity.PlanTier) *entity.Account {
	t.Helper()
	account := entity.NewAccount(uuid.NewString(), tier)
	require.NoError(t, e.db.Create(account).Error)
	return account
}

func (e *pipelineEnv) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	var reloaded entity.Account
	require.NoError(t, e.db.First(&reloaded, "id = ?", accountID).Error)
	return reloaded.Balance
}

func (e *pipelineEnv) loadRun(t *testing.T, runID string) *entity.GenerationRun {
	t.Helper()
	var run entity.GenerationRun
	require.NoError(t, e.db.First(&run, "id = ?", runID).Error)
	return &run
}

// cjkText 构造恰好 n 词的中文文本，末尾带句号便于接续摘要取句。
func cjkText(t *testing.T, r string, n int) string {
	t.Helper()
	require.Greater(t, n, 1)
	return strings.Repeat(r, n-1) + "。"
}

func TestPipelineRun_SingleChunkComplete(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{cjkText(t, "春", 300)}

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "春日",
		Style:          "散文",
		Tone:           "抒情",
		RequestedWords: 300,
	})
	require.NoError(t, err)

	// 预估 = ceil(300/30) 输出 + ceil(2/100) 输入 = 11，实际产出与预估一致，无需对账
	assert.Equal(t, int64(11), result.EstimatedCredits)
	assert.Equal(t, int64(11), result.ChargedCredits)
	assert.Equal(t, int64(0), result.UnsettledCredits)
	assert.Equal(t, 300, result.WordCount)
	assert.Equal(t, 1, result.ChunksGenerated)
	assert.Equal(t, 0, result.RefinementCycles)
	assert.False(t, result.UsedSimilarContent)
	assert.False(t, result.Detection.RequiresReview)
	assert.False(t, result.Detection.Degraded)
	assert.InDelta(t, 95, result.Detection.OriginalityScore, 0.01)
	assert.Equal(t, int64(89), env.balance(t, account.ID))

	run := env.loadRun(t, result.RunID)
	assert.Equal(t, entity.RunStatusComplete, run.Status)
	assert.Equal(t, result.ContentID, run.ContentID)
	assert.Equal(t, int64(11), run.ChargedCredits)
	assert.Equal(t, 300, run.ActualWordCount)
	assert.NotEmpty(t, run.ReservationTransactionID)
	assert.NotNil(t, run.CompletedAt)

	var stored entity.GeneratedContent
	require.NoError(t, env.db.First(&stored, "id = ?", result.ContentID).Error)
	assert.Equal(t, account.UserID, stored.UserID)
	assert.Equal(t, 300, stored.WordCount)
	assert.False(t, stored.Indexed)
	assert.InDelta(t, 95, stored.OriginalityScore, 0.01)

	require.Len(t, env.publisher.indexEvents, 1)
	assert.Equal(t, result.ContentID, env.publisher.indexEvents[0].ContentID)
	assert.Equal(t, result.RunID, env.publisher.indexEvents[0].RunID)

	// 首块提示词标注开篇角色且无前文
	firstPrompt := env.chat.userPrompt(t, 0)
	assert.Contains(t, firstPrompt, "开篇")
	assert.Contains(t, firstPrompt, "第 1 部分")
	assert.Contains(t, firstPrompt, "（无，本段为开篇）")
}

func TestPipelineRun_MultiChunkCarryover(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	first := cjkText(t, "夏", 400)
	second := cjkText(t, "秋", 300)
	env.chat.replies = []string{first, second}

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "四季",
		RequestedWords: 700,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ChunksGenerated)
	assert.Equal(t, 700, result.WordCount)
	assert.Equal(t, first+"\n\n"+second, result.Content)

	// 免费档单块上限 400：第二块只要剩余的 300 词
	secondPrompt := env.chat.userPrompt(t, 1)
	assert.Contains(t, secondPrompt, "第 2 部分")
	assert.Contains(t, secondPrompt, "约 300 词")

	// 第二块携带上一块的接续摘要与关键词
	assert.Contains(t, secondPrompt, "前文接续摘要：")
	assert.Contains(t, secondPrompt, first)
	assert.Contains(t, secondPrompt, "关键词：")

	assert.Equal(t, int64(75), env.balance(t, account.ID))
}

func TestPipelineRun_ChunkRolesAcrossRun(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{
		cjkText(t, "一", 400),
		cjkText(t, "二", 400),
		cjkText(t, "三", 200),
	}

	_, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "长文",
		RequestedWords: 1000,
	})
	require.NoError(t, err)

	// 1000 词请求：0 词开篇、400 词正文、800 词已过收尾线
	assert.Contains(t, env.chat.userPrompt(t, 0), "（开篇）")
	assert.Contains(t, env.chat.userPrompt(t, 1), "（正文）")
	assert.Contains(t, env.chat.userPrompt(t, 2), "（收尾）")
}

func TestPipelineRun_RefinementRewriteOnMediumSeverity(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{cjkText(t, "初", 300), cjkText(t, "改", 300)}
	env.detector.queue = []*DetectionReport{
		{OriginalityScore: 60, AILikelihood: 10, ReadabilityGrade: 8},
	}

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "议论文",
		RequestedWords: 300,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.RefinementCycles)
	assert.Equal(t, 2, env.chat.callCount())
	assert.False(t, result.Detection.RequiresReview)

	// 中等严重度走定向改写，提示词携带草稿与质量问题
	rewritePrompt := env.chat.userPrompt(t, 1)
	assert.Contains(t, rewritePrompt, "当前草稿：")
	assert.Contains(t, rewritePrompt, "重复率偏高")
	assert.NotContains(t, rewritePrompt, "上一版草稿")

	run := env.loadRun(t, result.RunID)
	assert.Equal(t, 1, run.RefinementCycles)
	assert.False(t, run.RequiresReview)
}

func TestPipelineRun_RefinementBoundedAtTwoCycles(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{cjkText(t, "甲", 300), cjkText(t, "乙", 300), cjkText(t, "丙", 300)}
	// 每次检测都是高严重度，整改两轮后接受现有内容
	env.detector.fallback = &DetectionReport{OriginalityScore: 40, AILikelihood: 90, ReadabilityGrade: 8}

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "论述",
		RequestedWords: 300,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.RefinementCycles)
	assert.Equal(t, 3, env.chat.callCount())
	assert.True(t, result.Detection.RequiresReview)
	assert.InDelta(t, 40, result.Detection.OriginalityScore, 0.01)

	// 高严重度走整段重写
	assert.Contains(t, env.chat.userPrompt(t, 1), "上一版草稿")
	assert.Contains(t, env.chat.userPrompt(t, 2), "上一版草稿")

	run := env.loadRun(t, result.RunID)
	assert.Equal(t, entity.RunStatusComplete, run.Status)
	assert.True(t, run.RequiresReview)
	assert.Equal(t, 2, run.RefinementCycles)
}

func TestPipelineRun_PolishesSimilarContent(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)

	sentence := strings.Repeat("句", 99) + "。"
	prior := entity.NewGeneratedContent("other-user", "旧提示", "学术", "严肃", strings.Repeat(sentence, 8), 800)
	require.NoError(t, env.db.Create(prior).Error)

	vector := &stubVectorStore{results: []*VectorSearchResult{
		{ContentID: prior.ID, Score: 0.15, WordCount: 800},
	}}
	similarity := NewSimilarityService(&stubEmbedder{vector: []float64{0.1, 0.2}}, vector, env.contents)

	env.chat.replies = []string{cjkText(t, "润", 400)}

	result, err := env.newPipeline(similarity, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "城市化研究",
		Style:          "学术",
		Tone:           "严肃",
		RequestedWords: 400,
	})
	require.NoError(t, err)

	assert.True(t, result.UsedSimilarContent)
	assert.Equal(t, 1, result.ChunksGenerated)
	assert.Equal(t, "学术", vector.lastParams.Style)

	// 命中复用时走底稿改写而非全新生成
	polishPrompt := env.chat.userPrompt(t, 0)
	assert.Contains(t, polishPrompt, "底稿内容：")
	assert.Contains(t, polishPrompt, sentence)

	run := env.loadRun(t, result.RunID)
	assert.True(t, run.UsedSimilarContent)
}

func TestPipelineRun_PolishFailureFallsBackToFresh(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)

	prior := entity.NewGeneratedContent("other-user", "旧提示", "", "", strings.Repeat("稿", 399)+"。", 400)
	require.NoError(t, env.db.Create(prior).Error)
	vector := &stubVectorStore{results: []*VectorSearchResult{
		{ContentID: prior.ID, Score: 0.10, WordCount: 400},
	}}
	similarity := NewSimilarityService(&stubEmbedder{vector: []float64{0.3, 0.4}}, vector, env.contents)

	// 第一次调用（底稿改写）返回空内容而失败，第二次（全新生成）给出正文
	fresh := cjkText(t, "新", 400)
	env.chat.replies = []string{"", fresh}

	result, err := env.newPipeline(similarity, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "回退验证",
		RequestedWords: 400,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, env.chat.callCount())
	assert.False(t, result.UsedSimilarContent)
	assert.Contains(t, env.chat.userPrompt(t, 1), "（开篇）")
	assert.Equal(t, fresh, result.Content)
}

func TestPipelineRun_ExtraChargeWhenOutputExceedsEstimate(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{cjkText(t, "洋", 600)}

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "海洋",
		RequestedWords: 300,
	})
	require.NoError(t, err)

	// 预估 11，实际 600 词成本 21，补扣 10
	assert.Equal(t, int64(11), result.EstimatedCredits)
	assert.Equal(t, int64(21), result.ChargedCredits)
	assert.Equal(t, int64(0), result.UnsettledCredits)
	assert.Equal(t, 600, result.WordCount)
	assert.Equal(t, int64(79), env.balance(t, account.ID))

	var txs []entity.CreditTransaction
	require.NoError(t, env.db.Where("user_id = ?", account.UserID).Order("created_at ASC").Find(&txs).Error)
	require.Len(t, txs, 2)
	assert.Equal(t, entity.TransactionKindDeduction, txs[0].Kind)
	assert.Equal(t, entity.TransactionKindDeduction, txs[1].Kind)
	assert.Equal(t, int64(10), txs[1].Amount)

	// 超出预估的字数计入月度用量
	var usage entity.MonthlyUsageRecord
	require.NoError(t, env.db.First(&usage, "user_id = ?", account.UserID).Error)
	assert.Equal(t, 600, usage.WordsGenerated)
}

func TestPipelineRun_RefundsOverestimateOnPremiumQuality(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{cjkText(t, "冬", 300)}

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "冬夜",
		Quality:        credit.QualityPremium,
		RequestedWords: 300,
	})
	require.NoError(t, err)

	// premium 预估按 1.15 放大：345 词预估 13 积分，实际 11，退 2
	assert.Equal(t, int64(13), result.EstimatedCredits)
	assert.Equal(t, int64(11), result.ChargedCredits)
	assert.Equal(t, int64(89), env.balance(t, account.ID))

	var refund entity.CreditTransaction
	require.NoError(t, env.db.First(&refund, "user_id = ? AND kind = ?", account.UserID, entity.TransactionKindRefund).Error)
	assert.Equal(t, int64(2), refund.Amount)

	var reservation entity.CreditTransaction
	require.NoError(t, env.db.First(&reservation, "id = ?", env.loadRun(t, result.RunID).ReservationTransactionID).Error)
	assert.Equal(t, entity.TransactionStatusRefunded, reservation.Status)
}

func TestPipelineRun_InsufficientFundsFailsBeforeGeneration(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	require.NoError(t, env.db.Model(&entity.Account{}).Where("id = ?", account.ID).Update("balance", 5).Error)

	_, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "余额不足",
		RequestedWords: 300,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientFunds))

	// 预留失败时未发起任何生成调用，余额不变
	assert.Equal(t, 0, env.chat.callCount())
	assert.Equal(t, int64(5), env.balance(t, account.ID))

	var run entity.GenerationRun
	require.NoError(t, env.db.First(&run, "user_id = ?", account.UserID).Error)
	assert.Equal(t, entity.RunStatusFailedRefunded, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)
}

func TestPipelineRun_MonthlyQuotaExceededFailsBeforeGeneration(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)

	_, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "超配额",
		RequestedWords: 1200,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeQuotaExceeded))
	assert.Equal(t, 0, env.chat.callCount())
	assert.Equal(t, int64(100), env.balance(t, account.ID))
}

func TestPipelineRun_LLMFailureRollsBackReservation(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.failWith = errors.New("llm upstream unavailable")

	_, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "故障",
		RequestedWords: 300,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))

	// 预留被整体撤销，余额与月度用量回到初始状态
	assert.Equal(t, int64(100), env.balance(t, account.ID))

	var run entity.GenerationRun
	require.NoError(t, env.db.First(&run, "user_id = ?", account.UserID).Error)
	assert.Equal(t, entity.RunStatusFailedRefunded, run.Status)
	assert.Contains(t, run.ErrorMessage, "chunk generation failed")

	var reservation entity.CreditTransaction
	require.NoError(t, env.db.First(&reservation, "id = ?", run.ReservationTransactionID).Error)
	assert.Equal(t, entity.TransactionStatusRolledBack, reservation.Status)

	var usage entity.MonthlyUsageRecord
	require.NoError(t, env.db.First(&usage, "user_id = ?", account.UserID).Error)
	assert.Equal(t, 0, usage.WordsGenerated)
	assert.Equal(t, int64(0), usage.CreditsUsed)
}

func TestPipelineRun_CancellationBetweenChunksRefunds(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.chat.replies = []string{cjkText(t, "断", 400), cjkText(t, "不", 300)}
	env.chat.onReply = func(call int) {
		if call == 1 {
			cancel()
		}
	}

	_, err := env.newPipeline(nil, nil).Run(ctx, &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "中途取消",
		RequestedWords: 700,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationCancelled))

	// 取消只在分块之间生效：第一块完成后停止，不再发起第二块
	assert.Equal(t, 1, env.chat.callCount())

	// 补偿在已取消的上下文里照常执行
	assert.Equal(t, int64(100), env.balance(t, account.ID))

	var run entity.GenerationRun
	require.NoError(t, env.db.First(&run, "user_id = ?", account.UserID).Error)
	assert.Equal(t, entity.RunStatusFailedRefunded, run.Status)
}

func TestPipelineRun_CitationPassAppliesProcessedText(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	body := cjkText(t, "论", 300)
	env.chat.replies = []string{body}

	formatter := &fakeCitationFormatter{result: &CitationPassResult{
		ProcessedText: body + "（Smith, 2024）",
		Bibliography:  "Smith, J. (2024). Urban Growth. City Press.",
	}}

	result, err := env.newPipeline(nil, formatter).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "引用测试",
		RequestedWords: 300,
		WithCitations:  true,
	})
	require.NoError(t, err)

	require.NotNil(t, formatter.gotIn)
	assert.Equal(t, body, formatter.gotIn.Text)
	assert.Equal(t, "apa", formatter.gotIn.Style)

	assert.Equal(t, body+"（Smith, 2024）", result.Content)
	assert.Equal(t, "Smith, J. (2024). Urban Growth. City Press.", result.Bibliography)
	assert.GreaterOrEqual(t, result.WordCount, 300)
}

func TestPipelineRun_CitationFailureDeliversPlainContent(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	body := cjkText(t, "稳", 300)
	env.chat.replies = []string{body}
	formatter := &fakeCitationFormatter{err: errors.New("citation upstream unavailable")}

	result, err := env.newPipeline(nil, formatter).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "引用降级",
		RequestedWords: 300,
		WithCitations:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, body, result.Content)
	assert.Empty(t, result.Bibliography)
	assert.Equal(t, entity.RunStatusComplete, env.loadRun(t, result.RunID).Status)
}

func TestPipelineRun_DetectionOutageDegradesGracefully(t *testing.T) {
	env := newPipelineEnv(t)
	account := env.seedAccount(t, entity.PlanTierFree)
	env.chat.replies = []string{cjkText(t, "稳", 300)}
	env.detector.err = errors.New("detector unavailable")

	result, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         account.UserID,
		PlanTier:       entity.PlanTierFree,
		Prompt:         "检测降级",
		RequestedWords: 300,
	})
	require.NoError(t, err)

	// 检测不可用不阻断交付：不触发整改，结果带降级标记
	assert.True(t, result.Detection.Degraded)
	assert.False(t, result.Detection.RequiresReview)
	assert.Equal(t, 0, result.RefinementCycles)
	assert.Equal(t, 1, env.chat.callCount())
	assert.Equal(t, entity.RunStatusComplete, env.loadRun(t, result.RunID).Status)
	assert.Equal(t, int64(89), env.balance(t, account.ID))
}

func TestPipelineRun_InvalidRequestRejectedUpfront(t *testing.T) {
	env := newPipelineEnv(t)

	_, err := env.newPipeline(nil, nil).Run(context.Background(), &GenerationRequest{
		UserID:         uuid.NewString(),
		PlanTier:       entity.PlanTierFree,
		Prompt:         "   ",
		RequestedWords: 300,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
	assert.Equal(t, 0, env.chat.callCount())
}
