package knowledge

import (
	"context"
	"time"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/repository"
	"go.uber.org/zap"
)

const defaultSearchLimit = 10

// ManagerOptions 知识管理器配置
type ManagerOptions struct {
	Store        VectorStore
	Repo         repository.CollectionRepository
	Cache        *ChunkCache
	Metrics      *Metrics
	Provider     ProviderConfig
	DefaultLimit int
}

// Manager 知识管理器：分块写入、相似度检索与集合生命周期的统一入口。
// 向量后端可替换（见VectorStore），元数据计数、分块缓存与指标均为
// 尽力而为的旁路，不影响主流程结果。
type Manager struct {
	store        VectorStore
	repo         repository.CollectionRepository
	cache        *ChunkCache
	metrics      *Metrics
	provider     ProviderConfig
	defaultLimit int
}

// NewManager 创建知识管理器。向量维度与默认相关度阈值
// 由注入的嵌入提供方配置决定。
func NewManager(opts ManagerOptions) *Manager {
	if opts.Provider.Dimensions <= 0 {
		opts.Provider.Dimensions = 1536
	}
	if opts.Provider.MinRelevanceScore <= 0 {
		opts.Provider.MinRelevanceScore = 0.75
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultSearchLimit
	}
	return &Manager{
		store:        opts.Store,
		repo:         opts.Repo,
		cache:        opts.Cache,
		metrics:      opts.Metrics,
		provider:     opts.Provider,
		defaultLimit: opts.DefaultLimit,
	}
}

// Provider 返回当前嵌入提供方配置
func (m *Manager) Provider() ProviderConfig {
	return m.provider
}

// MinScore 返回当前嵌入提供方的相关度阈值
func (m *Manager) MinScore() float64 {
	return m.provider.MinRelevanceScore
}

// UpsertChunk 写入一个分块。维度不匹配在触达后端之前拒绝；
// 同一分块键重复写入覆盖旧内容。
func (m *Manager) UpsertChunk(ctx context.Context, collection, key, text string, embedding []float32) error {
	if collection == "" {
		return apperrors.NewInvalidInputError("collection", "must not be empty")
	}
	if key == "" {
		return apperrors.NewInvalidInputError("key", "must not be empty")
	}
	if len(embedding) != m.provider.Dimensions {
		return apperrors.NewDimensionMismatchError(m.provider.Dimensions, len(embedding))
	}

	start := time.Now()
	err := m.store.UpsertChunk(ctx, collection, key, text, embedding)
	m.metrics.ObserveUpsert(collection, time.Since(start), err)
	if err != nil {
		return err
	}

	parsed := ParseChunkKey(key)
	if m.cache != nil {
		m.cache.StoreChunk(ctx, collection, CachedChunk{
			Key:     key,
			Source:  parsed.Source,
			Order:   parsed.Order,
			Content: text,
		})
	}

	if m.repo != nil {
		if err := m.repo.IncrementChunkCount(ctx, collection, 1); err != nil {
			// 元数据计数失败不回滚向量写入
			logger.Warn("failed to increment chunk count",
				zap.String("collection", collection), zap.Error(err))
		}
	}

	return nil
}

// Search 在单个集合内做相似度检索。
// limit<=0取默认条数；minScore<0取提供方默认阈值。
// 后端故障降级为空结果并记录警告，检索永不向调用方报错。
func (m *Manager) Search(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) []SearchResult {
	if limit <= 0 {
		limit = m.defaultLimit
	}
	if minScore < 0 {
		minScore = m.provider.MinRelevanceScore
	}
	if len(embedding) != m.provider.Dimensions {
		logger.Warn("query embedding dimension mismatch",
			zap.String("collection", collection),
			zap.Int("expected", m.provider.Dimensions),
			zap.Int("actual", len(embedding)))
		return []SearchResult{}
	}

	start := time.Now()
	results, err := m.store.Search(ctx, collection, embedding, limit, minScore)
	m.metrics.ObserveSearch(collection, time.Since(start), err)
	if err != nil {
		logger.Warn("knowledge search failed, returning empty results",
			zap.String("collection", collection), zap.Error(err))
		return []SearchResult{}
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results
}

// ListCollections 列出向量后端已知的知识集合
func (m *Manager) ListCollections(ctx context.Context) ([]string, error) {
	return m.store.ListCollections(ctx)
}

// DeleteCollection 删除集合：先清向量后端与缓存，再软删除元数据。
// 后端删除失败记录警告但不阻断元数据清理，后端数据会在重试时清除。
func (m *Manager) DeleteCollection(ctx context.Context, collection string) error {
	if collection == "" {
		return apperrors.NewInvalidInputError("collection", "must not be empty")
	}

	if err := m.store.DeleteCollection(ctx, collection); err != nil {
		logger.Warn("failed to delete collection from vector store",
			zap.String("collection", collection), zap.Error(err))
	}

	if m.cache != nil {
		m.cache.InvalidateCollection(ctx, collection)
	}

	if m.repo != nil {
		if err := m.repo.SoftDelete(ctx, collection); err != nil {
			return err
		}
	}

	return nil
}

// Ready 检查向量后端连通性
func (m *Manager) Ready() bool {
	return m.store != nil && m.store.Ready()
}
