package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/audit"
	"github.com/NeuralTrust/TrustRail/pkg/config"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail"
	handlers "github.com/NeuralTrust/TrustRail/pkg/handlers/http"
	"github.com/NeuralTrust/TrustRail/pkg/infra/bedrock"
	"github.com/NeuralTrust/TrustRail/pkg/infra/database"
	"github.com/NeuralTrust/TrustRail/pkg/infra/httpx"
	"github.com/NeuralTrust/TrustRail/pkg/infra/jwt"
	"github.com/NeuralTrust/TrustRail/pkg/infra/llm"
	infraLogger "github.com/NeuralTrust/TrustRail/pkg/infra/logger"
	"github.com/NeuralTrust/TrustRail/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustRail/pkg/middleware"
	"github.com/NeuralTrust/TrustRail/pkg/patternsafety"
	"github.com/NeuralTrust/TrustRail/pkg/pipeline"
	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
	"github.com/NeuralTrust/TrustRail/pkg/server"
	"github.com/NeuralTrust/TrustRail/pkg/version"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

const defaultAuditFile = "logs/audit.jsonl"

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()
	logger.WithField("version", version.Version).Info("starting trustrail")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config"
	}
	if err := config.Load(configPath); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	prometheus.Initialize(prometheus.MetricsConfig{
		EnableLatency:      cfg.Metrics.EnableLatency,
		EnablePerGuardrail: cfg.Metrics.EnablePerGuardrail,
	})

	// Audit sinks
	var sinks []audit.Sink

	if cfg.Audit.File != "" {
		fileSink, err := audit.NewFileSink(cfg.Audit.File)
		if err != nil {
			logger.Fatalf("Failed to open audit file sink: %v", err)
		}
		sinks = append(sinks, fileSink)
	}

	if cfg.Audit.Database.Enabled {
		db, err := database.NewDB(logger, &database.Config{
			Host:     cfg.Audit.Database.Host,
			Port:     cfg.Audit.Database.Port,
			User:     cfg.Audit.Database.User,
			Password: cfg.Audit.Database.Password,
			DBName:   cfg.Audit.Database.DBName,
			SSLMode:  cfg.Audit.Database.SSLMode,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize audit database: %v", err)
		}
		defer db.Close()

		dbSink, err := audit.NewDatabaseSink(db.DB)
		if err != nil {
			logger.Fatalf("Failed to initialize audit database sink: %v", err)
		}
		sinks = append(sinks, dbSink)
	}

	if cfg.Audit.Kafka.Enabled {
		kafkaSink, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
			Host:  cfg.Audit.Kafka.Host,
			Port:  cfg.Audit.Kafka.Port,
			Topic: cfg.Audit.Kafka.Topic,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize audit kafka sink: %v", err)
		}
		sinks = append(sinks, kafkaSink)
	}

	if len(sinks) == 0 {
		fileSink, err := audit.NewFileSink(defaultAuditFile)
		if err != nil {
			logger.Fatalf("Failed to open audit file sink: %v", err)
		}
		sinks = append(sinks, fileSink)
	}

	auditOpts := []audit.Option{
		audit.WithQueueSize(cfg.Audit.QueueSize),
		audit.WithOverflowPolicy(audit.OverflowPolicy(cfg.Audit.OverflowPolicy)),
		audit.WithDropHook(prometheus.AuditDroppedTotal.Inc),
	}
	if cfg.Audit.Redact {
		auditOpts = append(auditOpts, audit.WithRedactor(audit.NewRedactor(nil)))
	}
	auditLog := audit.NewLog(audit.MultiSink(sinks), logger, auditOpts...)

	// Rate limit store
	var store ratelimit.Store
	var stopStore func()
	switch cfg.RateLimit.Store {
	case config.StoreRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.RateLimit.Redis.Host, cfg.RateLimit.Redis.Port),
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		store = ratelimit.NewRedisStore(redisClient, nil)
		stopStore = func() { _ = redisClient.Close() }
	default:
		memoryStore := ratelimit.NewMemoryStore(logger, nil)
		store = memoryStore
		stopStore = memoryStore.Stop
	}

	// Guardrail dependencies
	bedrockClient, err := bedrock.NewClient(logger)
	if err != nil {
		logger.Fatalf("Failed to initialize bedrock client: %v", err)
	}

	deps := guardrail.Dependencies{
		Logger:    logger,
		Validator: patternsafety.NewValidator(logger, nil),
		HTTP:      httpx.NewFastHTTPClient(),
		Bedrock:   bedrockClient,
		LLM:       llm.NewOpenAIClient(),
	}

	pipe, err := pipeline.New(guardrail.NewDefaultRegistry(), deps, cfg.Guardrails,
		pipeline.WithAuditLog(auditLog),
		pipeline.WithRateLimiter(store),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithTimeout(time.Duration(cfg.Pipeline.Timeout)*time.Second),
		pipeline.WithMetrics(cfg.Metrics.Enabled),
	)
	if err != nil {
		logger.Fatalf("Failed to build guardrail pipeline: %v", err)
	}

	// Conversations created by the HTTP layer inherit the configured limits.
	conversations := handlers.NewConversationCache(logger,
		ratelimit.Limits{PerMinute: cfg.RateLimit.PerMinute, PerHour: cfg.RateLimit.PerHour},
		&handlers.ConversationCacheOpts{TTL: time.Duration(cfg.Conversation.TTL) * time.Second},
	)

	var jwtManager jwt.Manager
	if cfg.Auth.JWTSecret != "" {
		jwtManager = jwt.NewJwtManager(cfg.Auth.JWTSecret)
	}

	middlewareTransport := middleware.Transport{
		PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(logger),
		AuthMiddleware:         middleware.NewAuthMiddleware(logger, cfg.Auth.APIKeys, jwtManager),
		FingerPrintMiddleware:  middleware.NewFingerPrintMiddleware(logger),
	}

	handlerTransport := handlers.HandlerTransport{
		CheckInputHandler:  handlers.NewCheckInputHandler(logger, pipe, conversations),
		CheckOutputHandler: handlers.NewCheckOutputHandler(logger, pipe, conversations),
		VersionHandler:     handlers.NewGetVersionHandler(logger),
	}

	srv := server.NewCheckServer(server.CheckServerDI{
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
		Config:              cfg,
		Logger:              logger,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down server...")
	if err := srv.Shutdown(); err != nil {
		fmt.Println("error shutting down server:", err)
	}

	conversations.Stop()
	stopStore()

	// Drain queued audit records before the process exits.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := auditLog.Close(ctx); err != nil {
		logger.WithError(err).Error("audit log did not drain cleanly")
	}

	fmt.Println("server gracefully stopped")
}
