package di

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/database"
	"github.com/aihub/knowledge-go/internal/kafka"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/repository"
	"github.com/aihub/knowledge-go/internal/services"
	"github.com/aihub/knowledge-go/internal/storage"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册数据库
	if err := container.Provide(func() (*gorm.DB, error) {
		if database.DB == nil {
			return nil, fmt.Errorf("database not initialized")
		}
		return database.DB, nil
	}); err != nil {
		return err
	}

	if err := container.Provide(func() *redis.Client {
		return database.RedisClient
	}); err != nil {
		return err
	}

	// 注册元数据仓库
	if err := container.Provide(repository.NewCollectionRepository); err != nil {
		return err
	}
	if err := container.Provide(repository.NewDocumentRepository); err != nil {
		return err
	}

	// 注册分块器
	if err := container.Provide(func(cfg *config.Config) *knowledge.Chunker {
		return knowledge.NewChunker(knowledge.ChunkerOptions{
			ChunkCharacterLimit: cfg.Knowledge.Chunker.ChunkCharacterLimit,
			ChunkOverlap:        cfg.Knowledge.Chunker.ChunkOverlap,
			MaxCodeFenceSize:    cfg.Knowledge.Chunker.MaxCodeFenceSize,
			TruncateCodeFences:  cfg.Knowledge.Chunker.TruncateCodeFences,
		})
	}); err != nil {
		return err
	}

	// 注册嵌入向量生成器
	if err := container.Provide(func(cfg *config.Config) knowledge.Embedder {
		return knowledge.NewOpenAIEmbedder(cfg.Knowledge.Embedding.APIKey, cfg.Knowledge.Embedding.Model)
	}); err != nil {
		return err
	}

	// 注册向量存储（按配置选择后端）
	if err := container.Provide(func(cfg *config.Config) (knowledge.VectorStore, error) {
		return newVectorStore(cfg)
	}); err != nil {
		return err
	}

	// 注册指标与分块缓存
	if err := container.Provide(knowledge.NewMetrics); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, client *redis.Client) *knowledge.ChunkCache {
		return knowledge.NewChunkCache(client, cfg.Knowledge.Cache.Enabled,
			time.Duration(cfg.Knowledge.Cache.TTL)*time.Second)
	}); err != nil {
		return err
	}

	// 注册知识管理器与聚合器
	if err := container.Provide(func(
		cfg *config.Config,
		store knowledge.VectorStore,
		repo repository.CollectionRepository,
		cache *knowledge.ChunkCache,
		metrics *knowledge.Metrics,
	) *knowledge.Manager {
		return knowledge.NewManager(knowledge.ManagerOptions{
			Store:   store,
			Repo:    repo,
			Cache:   cache,
			Metrics: metrics,
			Provider: knowledge.ProviderConfig{
				Provider:          cfg.Knowledge.Embedding.Provider,
				Dimensions:        cfg.Knowledge.Embedding.Dimensions,
				MinRelevanceScore: cfg.Knowledge.Embedding.MinRelevanceScore,
			},
			DefaultLimit: cfg.Knowledge.Search.DefaultLimit,
		})
	}); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, manager *knowledge.Manager) *knowledge.Aggregator {
		return knowledge.NewAggregator(manager, cfg.Knowledge.Search.MaxParallelSearches)
	}); err != nil {
		return err
	}

	// 注册Kafka生产者与对象存储
	if err := container.Provide(func(cfg *config.Config) (*kafka.Producer, error) {
		return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Enabled)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config) (*storage.DocumentStore, error) {
		return storage.NewDocumentStore(storage.DocumentStoreOptions{
			Endpoint:  cfg.Knowledge.Storage.Endpoint,
			AccessKey: cfg.Knowledge.Storage.AccessKey,
			SecretKey: cfg.Knowledge.Storage.SecretKey,
			Bucket:    cfg.Knowledge.Storage.Bucket,
			UseSSL:    cfg.Knowledge.Storage.UseSSL,
		})
	}); err != nil {
		return err
	}

	// 注册服务
	if err := container.Provide(services.NewIngestService); err != nil {
		return err
	}
	if err := container.Provide(services.NewSearchService); err != nil {
		return err
	}

	return nil
}

func newVectorStore(cfg *config.Config) (knowledge.VectorStore, error) {
	vs := cfg.Knowledge.VectorStore
	switch vs.Provider {
	case "milvus":
		return knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:          vs.Milvus.Address,
			Username:         vs.Milvus.Username,
			Password:         vs.Milvus.Password,
			Database:         vs.Milvus.Database,
			CollectionPrefix: vs.Milvus.CollectionPrefix,
			VectorSize:       cfg.Knowledge.Embedding.Dimensions,
			Distance:         vs.Milvus.Distance,
			UseTLS:           vs.Milvus.TLS,
			ReadyTimeout:     time.Duration(vs.Milvus.ReadyTimeout) * time.Second,
		})
	case "elasticsearch":
		return knowledge.NewElasticVectorStore(knowledge.ElasticOptions{
			Addresses:   vs.Elasticsearch.Addresses,
			Username:    vs.Elasticsearch.Username,
			Password:    vs.Elasticsearch.Password,
			APIKey:      vs.Elasticsearch.APIKey,
			IndexPrefix: vs.Elasticsearch.IndexPrefix,
			VectorSize:  cfg.Knowledge.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown vector store provider: %s", vs.Provider)
	}
}
