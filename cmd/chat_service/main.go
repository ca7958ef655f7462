package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"secure_chat_service/internal/chat/app"
	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	"secure_chat_service/internal/chat/router"
	"secure_chat_service/pkg/config"
	"secure_chat_service/pkg/database"
	"secure_chat_service/pkg/logger"
	"secure_chat_service/pkg/queue"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	// 1. 建立 PostgreSQL 連線 (存訊息)
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
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
	defer pool.Close()

	// 2. 建立 Redis 連線 (Pub/Sub delivery group)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. 建立 RabbitMQ 連線 (member service correlation rpc)
	amqpURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port)
	rabbitConn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    amqpURL,
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect rabbitmq err : %v", err))
	}
	defer rabbitConn.Close()

	rabbitCh, err := database.GetRabbitMQChannelWithRetry(rabbitConn, cfg.RabbitMQ.RetryCount, time.Second)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("open rabbitmq channel err : %v", err))
	}

	rpcClient, err := queue.NewRPCClient(rabbitCh, cfg.RabbitMQ.RPCQueue, queue.DefaultRPCTimeout)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("create rpc client err : %v", err))
	}

	// 4. 建立 Kafka Writer (離線通知事件)
	kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("create kafka writer err : %v", err))
	}
	defer kafkaWriter.Close()

	// 5. 初始化 Repository
	msgRepo := repository.NewMessageRepository(pool)
	pubsub := repository.NewRedisPubSub(redisClient)
	notificationPub := repository.NewKafkaNotificationPublisher(kafkaWriter)
	directory := repository.NewRPCMemberDirectory(rpcClient)

	// 6. 初始化 UseCases
	// presence transition 廣播給所有在線連線
	registry := app.NewSessionRegistry(func(ev domain.PresenceEvent) {
		resp := domain.WSResponse{
			Action:  domain.ActionPresence,
			Success: true,
			Payload: ev,
		}
		if err := pubsub.Publish(domain.PresenceChannel, resp); err != nil {
			logger.Log.Errorf("publish presence event failed:", err)
		}
	})
	typing := app.NewTypingNotifier(app.TypingIdleTimeout, func(targetID string, ev domain.TypingEvent) {
		resp := domain.WSResponse{
			Action:  domain.ActionTyping,
			Success: true,
			Payload: ev,
		}
		if err := pubsub.Publish(domain.UserChannel(targetID), resp); err != nil {
			logger.Log.Errorf("publish typing event failed:", err)
		}
	})
	notifyUC := app.NewOfflineNotifyUseCase(registry, notificationPub, directory)
	messageUC := app.NewMessageUseCase(msgRepo, pubsub, typing, notifyUC, registry)

	// 7. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(registry, typing, messageUC, pubsub),
		app.NewMessageHandler(messageUC),
	)

	// Listen
	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
