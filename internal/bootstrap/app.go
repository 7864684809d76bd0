package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docrag/internal/ai"
	appsvc "docrag/internal/app"
	"docrag/internal/cache"
	"docrag/internal/config"
	mysqlClient "docrag/internal/platform/mysql"
	rabbitmqClient "docrag/internal/platform/rabbitmq"
	redisClient "docrag/internal/platform/redis"
	"docrag/internal/repository"
	"docrag/internal/storage"
	"docrag/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	// Redis is nil when the in-process ingestion lock is configured.
	Redis  *redis.Client
	MQConn *amqp.Connection

	Auth      *appsvc.AuthService
	Documents *appsvc.DocumentService
	Ingest    *appsvc.IngestService
	Chat      *appsvc.ChatService

	IngestWorker  *worker.IngestWorker
	ChatLogWorker *worker.ChatLogWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("release partially started app failed", "error", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.Options{
		MaxOpenConns: cfg.MySQL.MaxOpenConns,
		MaxIdleConns: cfg.MySQL.MaxIdleConns,
		Quiet:        cfg.App.GinMode == "release",
	})
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := mysqlClient.Migrate(mysqlDB); err != nil {
		return err
	}

	var lock appsvc.Locker
	if cfg.Ingest.UseLocalLock {
		lock = cache.NewLocalLock()
	} else {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Redis = redisCli
		lock = cache.NewIngestLock(redisCli, cfg.IngestLockTTL())
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue, cfg.RabbitMQ.ChatLogQueue)
	if err != nil {
		return err
	}
	a.MQConn = mqConn

	blobs, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(mysqlDB)
	documentRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	chatLogRepo := repository.NewChatLogRepository(mysqlDB)

	a.Auth = appsvc.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.JWTExpiration())
	a.Documents = appsvc.NewDocumentService(
		documentRepo,
		blobs,
		rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue),
		lock,
		cfg.MaxUploadBytes(),
	)
	a.Ingest = appsvc.NewIngestService(documentRepo, chunkRepo, blobs, lock, appsvc.IngestOptions{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		EmbedWorkers: cfg.Ingest.EmbedWorkers,
	})
	a.Chat = appsvc.NewChatService(
		ai.NewOpenAICompatibleClient(),
		appsvc.NewRetriever(chunkRepo, cfg.Retrieval.TopK, cfg.Retrieval.MinSimilarity),
		rabbitmqClient.NewChatLogPublisher(mqConn, cfg.RabbitMQ.ChatLogQueue),
		ai.ChatConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			IdleTimeout: cfg.LLMIdleTimeout(),
		},
		appsvc.Persona{
			Institution:  cfg.Assistant.Institution,
			Campuses:     cfg.Assistant.Campuses,
			Mascot:       cfg.Assistant.Mascot,
			ContactEmail: cfg.Assistant.ContactEmail,
			ContactPhone: cfg.Assistant.ContactPhone,
			Areas:        cfg.Assistant.Areas,
		},
		cfg.LLM.MaxContextMessage,
	)

	a.ChatLogWorker = worker.NewChatLogWorker(mqConn, chatLogRepo, cfg.RabbitMQ.ChatLogQueue)
	if err := a.ChatLogWorker.Start(ctx); err != nil {
		return fmt.Errorf("start chat log worker failed: %w", err)
	}
	a.IngestWorker = worker.NewIngestWorker(mqConn, a.Ingest, cfg.RabbitMQ.IngestQueue, cfg.RabbitMQ.IngestConsumers, cfg.RequeueDelay())
	if err := a.IngestWorker.Start(ctx); err != nil {
		return fmt.Errorf("start ingest worker failed: %w", err)
	}
	return nil
}

// Drain waits for in-flight chat log publishes. Call it after the HTTP
// server has stopped accepting requests and before Close.
func (a *App) Drain(ctx context.Context) error {
	if a.Chat == nil {
		return nil
	}
	return a.Chat.WaitForLogs(ctx)
}

func (a *App) Close() error {
	var errs []error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.ChatLogWorker != nil {
		a.ChatLogWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis failed: %w", err))
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq failed: %w", err))
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close mysql failed: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
