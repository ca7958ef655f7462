package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"secure_chat_service/internal/keys/app"
	"secure_chat_service/internal/keys/repository"
	"secure_chat_service/internal/keys/router"
	"secure_chat_service/pkg/config"
	"secure_chat_service/pkg/database"
	"secure_chat_service/pkg/logger"
	testtool "secure_chat_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.KeyService, config.EnvConfig.KeyServiceLogPath)
	cfg := config.LoadConfig[config.Key](config.EnvConfig.KeyService, config.EnvConfig.KeyServiceYAMLPath)

	testtool.StartPprof()

	// 1. 建立 PostgreSQL 連線 (prekey bundle)
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	db, err := database.NewPGConnection(database.Connection{
		ConnectStr:    dsn,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}

	// 2. 建立 Mongo 連線 (金鑰操作審計)
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// 3. 初始化 Repository
	preKeyRepo := repository.NewPreKeyRepo(db)
	if err := preKeyRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal(fmt.Sprintf("migrate prekey table err : %v", err))
	}
	auditRepo := repository.NewAuditRepo(mongo.Database)

	// 4. 初始化 UseCases
	preKeyUC := app.NewPreKeyUseCase(preKeyRepo, auditRepo)

	// 5. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.KeyServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r, app.NewPreKeyHandler(preKeyUC))

	// Listen
	port := ":" + cfg.Port
	log.Printf("Key Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
