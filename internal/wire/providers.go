// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/application/usage"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/domain/service"
	"z-writer-ai-api/internal/infrastructure/detection"
	infraembedding "z-writer-ai-api/internal/infrastructure/embedding"
	"z-writer-ai-api/internal/infrastructure/llm"
	"z-writer-ai-api/internal/infrastructure/messaging"
	"z-writer-ai-api/internal/infrastructure/persistence/milvus"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	"z-writer-ai-api/internal/infrastructure/persistence/redis"
	"z-writer-ai-api/internal/interfaces/http/handler"
	"z-writer-ai-api/internal/interfaces/http/middleware"
	"z-writer-ai-api/internal/interfaces/http/router"
	workflowchain "z-writer-ai-api/internal/workflow/chain"
	workflowport "z-writer-ai-api/internal/workflow/port"
	"z-writer-ai-api/pkg/logger"
)

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient    *postgres.Client
	TxManager   *postgres.TxManager
	UserRepo    *postgres.UserRepository
	AccountRepo *postgres.AccountRepository
}

// App API 网关的顶层装配结果。
// UsageRecorder 单独暴露，供 main 在启动时注册 eino 全局回调。
type App struct {
	Router        *router.Router
	UsageRecorder *usage.LLMUsageRecorder
}

// BootstrapSet bootstrap 所需的最小提供者集合
var BootstrapSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	postgres.NewAccountRepository,
)

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	postgres.NewAccountRepository,
	postgres.NewCreditTransactionRepository,
	postgres.NewMonthlyUsageRepository,
	postgres.NewGenerationRunRepository,
	postgres.NewGeneratedContentRepository,
	postgres.NewLLMUsageEventRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
	wire.Bind(new(repository.AccountRepository), new(*postgres.AccountRepository)),
	wire.Bind(new(repository.CreditTransactionRepository), new(*postgres.CreditTransactionRepository)),
	wire.Bind(new(repository.MonthlyUsageRepository), new(*postgres.MonthlyUsageRepository)),
	wire.Bind(new(repository.GenerationRunRepository), new(*postgres.GenerationRunRepository)),
	wire.Bind(new(repository.GeneratedContentRepository), new(*postgres.GeneratedContentRepository)),
	wire.Bind(new(repository.LLMUsageEventRepository), new(*postgres.LLMUsageEventRepository)),
)

// UsageSet LLM 用量流水提供者集合
var UsageSet = wire.NewSet(
	usage.NewLLMUsageRecorder,
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(generation.ScanCache), new(*redis.Cache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	messaging.NewEventPublisher,
	wire.Bind(new(service.EventPublisher), new(*messaging.EventPublisher)),
)

// MilvusAppSet API 网关可选 Milvus（不可达时相似检索降级）
var MilvusAppSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideMilvusRepositoryOptional,
	ProvideSimilarityVectorStoreOptional,
)

// EmbeddingSet 可选 Embedder（不可用时禁用相似检索与索引）
var EmbeddingSet = wire.NewSet(
	ProvideEmbedderOptional,
)

// CreditSet 积分账本提供者集合
var CreditSet = wire.NewSet(
	credit.NewQuotaChecker,
	credit.NewLedger,
	credit.NewReconciler,
)

// GenerationSet 生成管线提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	ProvideDetector,
	generation.NewChunkGenerator,
	generation.NewQualityGate,
	generation.NewSimilarityService,
	generation.NewChainCitationFormatter,
	wire.Bind(new(generation.CitationFormatter), new(*generation.ChainCitationFormatter)),
	generation.NewPipeline,
)

// WorkflowSet 独立工具链提供者集合
var WorkflowSet = wire.NewSet(
	workflowchain.NewCitationChain,
	workflowchain.NewResearchChain,
	workflowchain.NewOptimizeChain,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideAuthConfig,
	handler.NewAuthHandler,
	handler.NewAccountHandler,
	handler.NewWriterHandler,
	handler.NewToolsHandler,
	handler.NewHealthHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, similarity reuse disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideMilvusRepositoryOptional(client *milvus.Client) *milvus.Repository {
	if client == nil {
		return nil
	}
	return milvus.NewRepository(client)
}

func ProvideSimilarityVectorStoreOptional(repo *milvus.Repository) generation.VectorStore {
	if repo == nil {
		return nil
	}
	return milvus.NewSimilarityVectorStore(repo)
}

func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, similarity reuse disabled", "error", err.Error())
		return nil, nil
	}
	return embedder, nil
}

// ProvideDetector 提供内容检测器，未配置远端服务时退化为本地启发式
func ProvideDetector(cfg *config.Config) generation.Detector {
	return detection.NewDetector(&cfg.Clients.Detection)
}

// ProvideAuthConfig 提供认证配置
func ProvideAuthConfig(cfg *config.Config) middleware.AuthConfig {
	return middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   true,
	}
}
