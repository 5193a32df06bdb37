package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/adapters"
	"github.com/fluxori-systems/fluxori-sub001/internal/config"
	"github.com/fluxori-systems/fluxori-sub001/internal/database"
	"github.com/fluxori-systems/fluxori-sub001/internal/featuregate"
	"github.com/fluxori-systems/fluxori-sub001/internal/kafka"
	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
	"github.com/fluxori-systems/fluxori-sub001/internal/metrics"
	"github.com/fluxori-systems/fluxori-sub001/internal/repository"
	"github.com/fluxori-systems/fluxori-sub001/internal/services"
)

func main() {
	// .env文件不存在时忽略
	_ = godotenv.Load()

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetAppConfig()

	if err := logger.InitLogger(cfg.Server.Env, os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.InitDB()
	if err != nil {
		logger.Fatal("数据库初始化失败", zap.Error(err))
	}

	// Redis不可用时降级：功能开关默认放行，额度缓存失效
	redisClient, err := database.InitRedis()
	if err != nil {
		logger.Warn("Redis初始化失败，功能开关与额度缓存降级", zap.Error(err))
	}

	if cfg.Kafka.Enabled {
		if err := kafka.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("Kafka初始化失败，跳过用量事件发布", zap.Error(err))
		} else {
			defer kafka.GetProducer().Close()
		}
	}

	// 适配器并发初始化，单个供应商失败不影响其他供应商
	dispatcher := adapters.NewAdapterRegistry()
	dispatcher.InitializeAdapters(map[string]adapters.ProviderConfig{
		adapters.VertexProviderName: {
			APIKey:  cfg.AI.VertexAPIKey,
			BaseURL: cfg.AI.VertexBaseURL,
		},
		adapters.OpenAIProviderName: {
			APIKey:  cfg.AI.OpenAIAPIKey,
			BaseURL: cfg.AI.OpenAIBaseURL,
		},
	})

	var gate featuregate.FeatureGate
	var creditService *services.CreditService
	if redisClient != nil {
		gate = featuregate.NewRedisFeatureGate(redisClient)
		creditService = services.NewCreditService(repository.NewCreditRepo(db), redisClient)
	} else {
		creditService = services.NewCreditService(repository.NewCreditRepo(db), nil)
	}

	agentService := services.NewAgentService(
		repository.NewAgentConfigRepo(db),
		repository.NewConversationRepo(db),
		repository.NewModelRegistryRepo(db),
		dispatcher,
		gate,
		creditService,
		cfg.Agent,
	)
	_ = agentService // 由上层传输适配接入（HTTP路由不在本服务内）

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("Agent service started",
			zap.String("port", cfg.Server.Port),
			zap.Strings("providers", dispatcher.Providers()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	_ = server.Close()
	_ = database.CloseRedis()
}
