// Package main 内容向量索引执行器入口（index-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/infrastructure/embedding"
	"z-writer-ai-api/internal/infrastructure/messaging"
	"z-writer-ai-api/internal/infrastructure/persistence/milvus"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	"z-writer-ai-api/internal/infrastructure/persistence/redis"
	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// sweepInterval 定期兜底扫描未索引内容的间隔。
// 流消息可能因 Milvus 短暂不可达而进入死信，兜底扫描保证最终一致。
const (
	sweepInterval  = time.Minute
	sweepBatchSize = 100
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "index-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	embedder, err := embedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init embedder", err)
	}

	contentRepo := postgres.NewGeneratedContentRepository(pgClient)
	vectorStore := milvus.NewSimilarityVectorStore(milvus.NewRepository(milvusClient))
	similarity := generation.NewSimilarityService(embedder, vectorStore, contentRepo)

	if err := vectorStore.EnsureContentsCollection(ctx); err != nil {
		logger.Fatal(ctx, "failed to ensure milvus collection", err)
	}

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamContentIndex,
		Group:        messaging.ConsumerGroupIndexWorker,
		ConsumerName: hostnameConsumerName(),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MessageTypeContentIndex, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.ContentIndexMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		content, err := contentRepo.GetByID(msgCtx, payload.ContentID)
		if err != nil {
			return err
		}
		if content == nil {
			// 内容在索引前被删除，直接确认消息
			logger.Warn(msgCtx, "content not found, skipping index", "content_id", payload.ContentID)
			return nil
		}
		if content.Indexed {
			return nil
		}
		return similarity.IndexContent(msgCtx, content)
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	go sweepUnindexed(sweepCtx, contentRepo, similarity)

	log := logger.FromContext(ctx)
	log.Info("index-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("index-worker shutting down")
	cancelSweep()
	consumer.Stop()
}

// sweepUnindexed 周期性回库扫描未索引内容并补齐向量
func sweepUnindexed(ctx context.Context, contents *postgres.GeneratedContentRepository, similarity *generation.SimilarityService) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pending, err := contents.ListUnindexed(ctx, sweepBatchSize)
		if err != nil {
			logger.Error(ctx, "failed to list unindexed contents", err)
			continue
		}
		for _, content := range pending {
			if err := similarity.IndexContent(ctx, content); err != nil {
				logger.Error(ctx, "failed to index content", err, "content_id", content.ID)
				continue
			}
			logger.Debug(ctx, "content indexed by sweep", "content_id", content.ID)
		}
	}
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
