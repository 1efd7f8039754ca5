package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/database"
	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/kafka"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/logger"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitLogger(); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if _, err := database.InitDB(); err != nil {
		logger.Fatal("failed to init database", zap.Error(err))
	}
	defer database.CloseDB()

	if _, err := database.InitRedis(); err != nil {
		logger.Fatal("failed to init redis", zap.Error(err))
	}
	defer database.CloseRedis()

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		logger.Fatal("failed to register providers", zap.Error(err))
	}

	err := di.Invoke(func(manager *knowledge.Manager, embedder knowledge.Embedder) {
		logger.Info("🚀 Knowledge service started",
			zap.String("vector_store", config.AppConfig.Knowledge.VectorStore.Provider),
			zap.String("embedding_provider", embedder.ProviderName()),
			zap.Bool("vector_store_ready", manager.Ready()),
			zap.Bool("embedder_ready", embedder.Ready()))
	})
	if err != nil {
		logger.Fatal("failed to start knowledge service", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down knowledge service")
	if err := di.Invoke(func(producer *kafka.Producer) {
		if err := producer.Close(); err != nil {
			logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}); err != nil {
		logger.Warn("failed to resolve kafka producer for shutdown", zap.Error(err))
	}
}
