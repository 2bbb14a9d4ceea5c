package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/infrastructure/persistence/milvus"
	"z-writer-ai-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层（仅 PostgreSQL）
	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 建表
	fmt.Println("Running schema migration...")
	err = dataLayer.PgClient.DB().AutoMigrate(
		&entity.User{},
		&entity.Account{},
		&entity.CreditTransaction{},
		&entity.MonthlyUsageRecord{},
		&entity.GenerationRun{},
		&entity.GeneratedContent{},
	)
	if err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	fmt.Println("Schema migration completed.")

	// 4. 创建首个管理员及其积分账户
	adminEmail := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@z-writer.local"
	}
	adminPassword := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123" // 生产环境请务必通过环境变量设置
	}

	userExists, err := dataLayer.UserRepo.ExistsByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("failed to check admin existence: %v", err)
	}

	if !userExists {
		fmt.Printf("Creating admin user: %s...\n", adminEmail)
		admin := entity.NewUser(adminEmail, "System Admin", entity.PlanTierPremium)
		if err := admin.SetPassword(adminPassword); err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}

		err = dataLayer.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := dataLayer.UserRepo.Create(txCtx, admin); err != nil {
				return err
			}
			return dataLayer.AccountRepo.Create(txCtx, entity.NewAccount(admin.ID, admin.PlanTier))
		})
		if err != nil {
			log.Fatalf("failed to create admin user: %v", err)
		}
		fmt.Printf("Admin user created successfully.\n")
	} else {
		fmt.Printf("Admin user %s already exists.\n", adminEmail)
	}

	// 5. 初始化向量集合（Milvus 不可达时跳过，相似检索保持降级）
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		fmt.Printf("Milvus not available, skipping collection setup: %v\n", err)
	} else {
		defer func() { _ = milvusClient.Close() }()
		store := milvus.NewSimilarityVectorStore(milvus.NewRepository(milvusClient))
		if err := store.EnsureContentsCollection(ctx); err != nil {
			log.Fatalf("failed to ensure milvus collection: %v", err)
		}
		fmt.Println("Milvus collection ready.")
	}

	fmt.Println("Bootstrap completed successfully.")
}
