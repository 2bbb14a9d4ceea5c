package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/infrastructure/detection"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	"z-writer-ai-api/internal/interfaces/http/handler"
	"z-writer-ai-api/internal/interfaces/http/middleware"
	"z-writer-ai-api/internal/interfaces/http/router"
	workflowchain "z-writer-ai-api/internal/workflow/chain"
)

type stubChatModel struct {
	reply string
}

func (m *stubChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.reply == "" {
		return nil, errors.New("no reply configured")
	}
	return &schema.Message{Role: schema.Assistant, Content: m.reply}, nil
}

func (m *stubChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

type stubFactory struct {
	chat model.BaseChatModel
}

func (f *stubFactory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	return f.chat, nil
}

type httpEnv struct {
	db       *gorm.DB
	chat     *stubChatModel
	ledger   *credit.Ledger
	runs     *postgres.GenerationRunRepository
	contents *postgres.GeneratedContentRepository
	engine   *gin.Engine
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.Account{},
		&entity.CreditTransaction{},
		&entity.MonthlyUsageRecord{},
		&entity.GenerationRun{},
		&entity.GeneratedContent{},
	))

	client := postgres.NewClientWithDB(db)
	txManager := postgres.NewTxManager(client)
	userRepo := postgres.NewUserRepository(client)
	accountRepo := postgres.NewAccountRepository(client)
	usage := postgres.NewMonthlyUsageRepository(client)
	ledger := credit.NewLedger(
		accountRepo,
		postgres.NewCreditTransactionRepository(client),
		usage,
		credit.NewQuotaChecker(usage),
		txManager,
	)
	runs := postgres.NewGenerationRunRepository(client)
	contents := postgres.NewGeneratedContentRepository(client)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.JWT.Secret = "handler-test-secret"
	cfg.Security.JWT.Issuer = "z-writer-test"
	cfg.LLM.DefaultProvider = "openai"
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"openai": {Model: "gpt-4o-mini"},
	}

	authCfg := middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   true,
	}

	chat := &stubChatModel{}
	factory := &stubFactory{chat: chat}

	handlers := router.RouterHandlers{
		Auth:    handler.NewAuthHandler(authCfg, userRepo, accountRepo, txManager),
		Account: handler.NewAccountHandler(ledger),
		Writer:  handler.NewWriterHandler(cfg, nil, runs, contents),
		Tools: handler.NewToolsHandler(
			cfg,
			ledger,
			detection.NewHeuristic(),
			workflowchain.NewCitationChain(factory),
			workflowchain.NewResearchChain(factory),
			workflowchain.NewOptimizeChain(factory),
		),
		Health: handler.NewHealthHandler(client, nil, nil),
	}

	r := router.NewWithDeps(cfg, handlers, nil)
	return &httpEnv{
		db:       db,
		chat:     chat,
		ledger:   ledger,
		runs:     runs,
		contents: contents,
		engine:   r.Engine(),
	}
}

func (e *httpEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	var envelope struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

type authData struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		PlanTier string `json:"plan_tier"`
	} `json:"user"`
}

// register 注册新用户并返回身份信息与响应 Cookie
func (e *httpEnv) register(t *testing.T, tier string) (authData, []*http.Cookie) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email":     uuid.NewString() + "@example.com",
		"password":  "secret123",
		"name":      "Test User",
		"plan_tier": tier,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data authData
	decodeData(t, w.Body.Bytes(), &data)
	require.NotEmpty(t, data.AccessToken)
	return data, w.Result().Cookies()
}

func (e *httpEnv) balanceOf(t *testing.T, token string) int64 {
	t.Helper()
	w := e.do(t, http.MethodGet, "/v1/account/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, w.Body.Bytes(), &data)
	return data.Balance
}

func TestRegisterCreatesAccountWithSignupCredits(t *testing.T) {
	env := newHTTPEnv(t)

	data, cookies := env.register(t, "free")
	require.Equal(t, "free", data.User.PlanTier)
	require.Equal(t, 900, data.ExpiresIn)

	var refresh *http.Cookie
	for _, c := range cookies {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	require.NotEmpty(t, refresh.Value)

	// 注册积分随账户发放，余额立即可查
	require.Equal(t, int64(100), env.balanceOf(t, data.AccessToken))
}

func TestRegisterPremiumTierGrantsLargerBalance(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "premium")
	require.Equal(t, "premium", data.User.PlanTier)
	require.Equal(t, int64(3000), env.balanceOf(t, data.AccessToken))
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	env := newHTTPEnv(t)

	email := uuid.NewString() + "@example.com"
	body := gin.H{"email": email, "password": "secret123", "name": "First"}
	w := env.do(t, http.MethodPost, "/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/register", "", body)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestLoginReturnsUsableToken(t *testing.T) {
	env := newHTTPEnv(t)

	email := uuid.NewString() + "@example.com"
	w := env.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email": email, "password": "secret123", "name": "Login User",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data authData
	decodeData(t, w.Body.Bytes(), &data)
	require.Equal(t, int64(100), env.balanceOf(t, data.AccessToken))
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	env := newHTTPEnv(t)

	email := uuid.NewString() + "@example.com"
	w := env.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email": email, "password": "secret123", "name": "User",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": email, "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshTokenIssuesNewAccessToken(t *testing.T) {
	env := newHTTPEnv(t)

	_, cookies := env.register(t, "free")

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, w.Body.Bytes(), &data)
	require.NotEmpty(t, data.AccessToken)
	require.Equal(t, int64(100), env.balanceOf(t, data.AccessToken))
}

func TestRefreshWithoutCookieUnauthorized(t *testing.T) {
	env := newHTTPEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newHTTPEnv(t)

	w := env.do(t, http.MethodGet, "/v1/account/balance", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionsAndUsageReflectLedger(t *testing.T) {
	env := newHTTPEnv(t)
	ctx := context.Background()

	data, _ := env.register(t, "free")
	userID := data.User.ID

	_, err := env.ledger.Deduct(ctx, userID, 10, 300, credit.ToolWriter)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/v1/writer/runs", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/v1/account/transactions", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var txList struct {
		Items []struct {
			Kind      string `json:"kind"`
			Amount    int64  `json:"amount"`
			WordCount int    `json:"word_count"`
			Tool      string `json:"tool"`
		} `json:"items"`
	}
	decodeData(t, w.Body.Bytes(), &txList)
	require.Len(t, txList.Items, 1)
	require.Equal(t, "deduction", txList.Items[0].Kind)
	require.Equal(t, int64(10), txList.Items[0].Amount)
	require.Equal(t, 300, txList.Items[0].WordCount)
	require.Equal(t, "writer", txList.Items[0].Tool)

	w = env.do(t, http.MethodGet, "/v1/account/usage", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var usage struct {
		WordsGenerated int   `json:"words_generated"`
		CreditsUsed    int64 `json:"credits_used"`
		MonthlyWordCap int   `json:"monthly_word_cap"`
		RemainingWords int   `json:"remaining_words"`
	}
	decodeData(t, w.Body.Bytes(), &usage)
	require.Equal(t, 300, usage.WordsGenerated)
	require.Equal(t, int64(10), usage.CreditsUsed)
	require.Equal(t, 1000, usage.MonthlyWordCap)
	require.Equal(t, 700, usage.RemainingWords)
}

func TestUsageUncappedForProTier(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "pro")
	w := env.do(t, http.MethodGet, "/v1/account/usage", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var usage struct {
		MonthlyWordCap int `json:"monthly_word_cap"`
		RemainingWords int `json:"remaining_words"`
	}
	decodeData(t, w.Body.Bytes(), &usage)
	require.Equal(t, 0, usage.MonthlyWordCap)
	require.Equal(t, -1, usage.RemainingWords)
}

func TestDetectorScanChargesByScannedWords(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")

	// 600 词按每 500 词 1 积分向上取整计 2 积分
	text := strings.TrimSpace(strings.Repeat("distinct insight emerges from every fresh observation today ", 100))
	w := env.do(t, http.MethodPost, "/v1/detector/scan", data.AccessToken, gin.H{"text": text})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var scan struct {
		OriginalityScore float64 `json:"originality_score"`
		WordCount        int     `json:"word_count"`
		ChargedCredits   int64   `json:"charged_credits"`
	}
	decodeData(t, w.Body.Bytes(), &scan)
	require.Equal(t, 800, scan.WordCount)
	require.Equal(t, int64(2), scan.ChargedCredits)
	require.Greater(t, scan.OriginalityScore, 0.0)

	require.Equal(t, int64(98), env.balanceOf(t, data.AccessToken))

	// 扫描不产出正文，不占用月度字数配额
	w = env.do(t, http.MethodGet, "/v1/account/usage", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		WordsGenerated int `json:"words_generated"`
	}
	decodeData(t, w.Body.Bytes(), &usage)
	require.Equal(t, 0, usage.WordsGenerated)
}

func TestDetectorScanInsufficientFunds(t *testing.T) {
	env := newHTTPEnv(t)
	ctx := context.Background()

	data, _ := env.register(t, "free")
	_, err := env.ledger.Deduct(ctx, data.User.ID, 99, 0, credit.ToolDetector)
	require.NoError(t, err)

	text := strings.TrimSpace(strings.Repeat("yet another wholly original phrase appears right here now ", 100))
	w := env.do(t, http.MethodPost, "/v1/detector/scan", data.AccessToken, gin.H{"text": text})
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())

	var errResp struct {
		Error struct {
			ErrorCode string `json:"error_code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.Equal(t, "4002", errResp.Error.ErrorCode)

	// 扣减未发生
	require.Equal(t, int64(1), env.balanceOf(t, data.AccessToken))
}

func TestResearchGenerateChargesAndCountsQuota(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")
	env.chat.reply = "A concise research brief on the requested topic, covering key findings and open questions."

	w := env.do(t, http.MethodPost, "/v1/research/generate", data.AccessToken, gin.H{
		"topic":             "quantum error correction",
		"target_word_count": 500,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Brief          string `json:"brief"`
		WordCount      int    `json:"word_count"`
		ChargedCredits int64  `json:"charged_credits"`
	}
	decodeData(t, w.Body.Bytes(), &resp)
	require.Equal(t, env.chat.reply, resp.Brief)
	require.Equal(t, int64(25), resp.ChargedCredits)
	require.Greater(t, resp.WordCount, 0)

	require.Equal(t, int64(75), env.balanceOf(t, data.AccessToken))

	// 简报字数计入月度配额
	w = env.do(t, http.MethodGet, "/v1/account/usage", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		WordsGenerated int `json:"words_generated"`
	}
	decodeData(t, w.Body.Bytes(), &usage)
	require.Equal(t, 500, usage.WordsGenerated)
}

func TestResearchGenerateQuotaExceeded(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")
	w := env.do(t, http.MethodPost, "/v1/research/generate", data.AccessToken, gin.H{
		"topic":             "a very long survey",
		"target_word_count": 1200,
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	require.Equal(t, int64(100), env.balanceOf(t, data.AccessToken))
}

func TestResearchFailureRollsBackCharge(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")
	env.chat.reply = ""

	w := env.do(t, http.MethodPost, "/v1/research/generate", data.AccessToken, gin.H{
		"topic":             "failing topic",
		"target_word_count": 400,
	})
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())

	// 调用失败后整笔撤销，余额与配额复原
	require.Equal(t, int64(100), env.balanceOf(t, data.AccessToken))
	w = env.do(t, http.MethodGet, "/v1/account/usage", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		WordsGenerated int `json:"words_generated"`
	}
	decodeData(t, w.Body.Bytes(), &usage)
	require.Equal(t, 0, usage.WordsGenerated)
}

func TestOptimizePromptParsesStructuredOutput(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")
	env.chat.reply = `{"optimized_prompt":"Write a 500-word explainer on tides for a curious teenager.","notes":["added audience","added length"]}`

	w := env.do(t, http.MethodPost, "/v1/prompts/optimize", data.AccessToken, gin.H{
		"prompt": "write about tides",
		"goal":   "clearer audience",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		OptimizedPrompt string   `json:"optimized_prompt"`
		Notes           []string `json:"notes"`
		ChargedCredits  int64    `json:"charged_credits"`
	}
	decodeData(t, w.Body.Bytes(), &resp)
	require.Contains(t, resp.OptimizedPrompt, "500-word")
	require.Len(t, resp.Notes, 2)
	require.Equal(t, int64(1), resp.ChargedCredits)
	require.Equal(t, int64(99), env.balanceOf(t, data.AccessToken))
}

func TestFormatCitationsReturnsEntries(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")
	env.chat.reply = `{"citations":[{"formatted":"LeCun, Y., Bengio, Y., & Hinton, G. (2015). Deep learning. Nature, 521, 436-444.","in_text":"(LeCun et al., 2015)"}]}`

	w := env.do(t, http.MethodPost, "/v1/citations/format", data.AccessToken, gin.H{
		"style": "apa",
		"sources": []gin.H{
			{
				"title":   "Deep Learning",
				"authors": []string{"Yann LeCun", "Yoshua Bengio", "Geoffrey Hinton"},
				"year":    2015,
				"source":  "Nature",
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Style     string `json:"style"`
		Citations []struct {
			Formatted string `json:"formatted"`
			InText    string `json:"in_text"`
		} `json:"citations"`
		ChargedCredits int64 `json:"charged_credits"`
	}
	decodeData(t, w.Body.Bytes(), &resp)
	require.Equal(t, "apa", resp.Style)
	require.Len(t, resp.Citations, 1)
	require.Contains(t, resp.Citations[0].Formatted, "LeCun")
	require.Equal(t, int64(1), resp.ChargedCredits)
	require.Equal(t, int64(99), env.balanceOf(t, data.AccessToken))
}

func TestWriterGenerateRejectsInvalidBody(t *testing.T) {
	env := newHTTPEnv(t)

	data, _ := env.register(t, "free")
	w := env.do(t, http.MethodPost, "/v1/writer/generate", data.AccessToken, gin.H{
		"word_count": 300,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/writer/generate", data.AccessToken, gin.H{
		"prompt":     "a prompt",
		"word_count": 300,
		"provider":   "no-such-provider",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriterRunVisibleOnlyToOwner(t *testing.T) {
	env := newHTTPEnv(t)
	ctx := context.Background()

	owner, _ := env.register(t, "free")
	other, _ := env.register(t, "free")

	run := entity.NewGenerationRun(owner.User.ID, "test prompt", "", "", "standard", entity.PlanTierFree, 300)
	require.NoError(t, env.runs.Create(ctx, run))

	w := env.do(t, http.MethodGet, "/v1/writer/runs/"+run.ID, owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
	}
	decodeData(t, w.Body.Bytes(), &got)
	require.Equal(t, run.ID, got.ID)

	w = env.do(t, http.MethodGet, "/v1/writer/runs/"+run.ID, other.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriterContentVisibleOnlyToOwner(t *testing.T) {
	env := newHTTPEnv(t)
	ctx := context.Background()

	owner, _ := env.register(t, "free")
	other, _ := env.register(t, "free")

	content := entity.NewGeneratedContent(owner.User.ID, "prompt", "", "", "body text here", 3)
	require.NoError(t, env.contents.Create(ctx, content))

	w := env.do(t, http.MethodGet, "/v1/writer/contents/"+content.ID, owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/v1/writer/contents/"+content.ID, other.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRunsPaged(t *testing.T) {
	env := newHTTPEnv(t)
	ctx := context.Background()

	data, _ := env.register(t, "free")
	for i := 0; i < 3; i++ {
		run := entity.NewGenerationRun(data.User.ID, fmt.Sprintf("prompt %d", i), "", "", "standard", entity.PlanTierFree, 100)
		require.NoError(t, env.runs.Create(ctx, run))
	}

	w := env.do(t, http.MethodGet, "/v1/writer/runs?page=1&page_size=2", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Data struct {
			Items []json.RawMessage `json:"items"`
		} `json:"data"`
		Meta struct {
			Page       int `json:"page"`
			PageSize   int `json:"page_size"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Items, 2)
	require.Equal(t, 3, envelope.Meta.Total)
	require.Equal(t, 2, envelope.Meta.TotalPages)
}
