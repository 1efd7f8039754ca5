package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultReadyTimeout  = 30 * time.Second
	readyPollInterval    = 500 * time.Millisecond
	contentFieldMaxChars = "65535"
	keyFieldMaxChars     = "512"
	tagsFieldMaxChars    = "2048"
)

// CollectionManager 管理Milvus集合与索引的生命周期。
// 集合的向量维度与距离度量在创建时由当前嵌入提供方决定；
// 提供方变更后既有集合保持原维度，写入校验会拒绝不匹配的向量。
type CollectionManager struct {
	client       client.Client
	vectorSize   int
	metricType   entity.MetricType
	readyTimeout time.Duration
}

// NewCollectionManager 创建集合管理器
func NewCollectionManager(c client.Client, vectorSize int, distance string, readyTimeout time.Duration) *CollectionManager {
	if vectorSize <= 0 {
		vectorSize = 1536
	}
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	return &CollectionManager{
		client:       c,
		vectorSize:   vectorSize,
		metricType:   formatMilvusDistance(distance),
		readyTimeout: readyTimeout,
	}
}

// formatMilvusDistance 把配置值归一为相似度度量。
// 相关度过滤按"得分不低于阈值"理解得分，距离越小越好的度量（如L2）
// 会反转这一语义，不予支持，回落到COSINE。
func formatMilvusDistance(value string) entity.MetricType {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return entity.IP
	case "", "COSINE":
		return entity.COSINE
	default:
		logger.Warn("unsupported distance metric, falling back to COSINE",
			zap.String("distance", value))
		return entity.COSINE
	}
}

// MetricType 返回集合创建时使用的距离度量
func (m *CollectionManager) MetricType() entity.MetricType {
	return m.metricType
}

// Exists 检查集合是否存在
func (m *CollectionManager) Exists(ctx context.Context, name string) (bool, error) {
	has, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return false, apperrors.NewBackendUnavailableError("milvus", err)
	}
	return has, nil
}

// Create 创建集合及其向量索引
func (m *CollectionManager) Create(ctx context.Context, name string) error {
	schema := &entity.Schema{
		CollectionName: name,
		Description:    fmt.Sprintf("knowledge chunks for collection %s", name),
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "chunk_key",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": keyFieldMaxChars,
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": keyFieldMaxChars,
				},
			},
			{
				Name:     "chunk_order",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "tags",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": tagsFieldMaxChars,
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": contentFieldMaxChars,
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorSize),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	index, err := m.buildIndex()
	if err != nil {
		return err
	}

	if err := m.client.CreateIndex(ctx, name, "vector", index, false); err != nil {
		// 索引创建失败不阻塞写入，检索走暴力扫描
		logger.Warn("failed to create vector index",
			zap.String("collection", name), zap.Error(err))
	}

	return nil
}

// buildIndex 构造向量索引定义，HNSW参数不可用时退回IVF_FLAT
func (m *CollectionManager) buildIndex() (entity.Index, error) {
	index, err := entity.NewIndexHNSW(m.metricType, 8, 64)
	if err == nil {
		return index, nil
	}

	fallback, err := entity.NewIndexIvfFlat(m.metricType, 128)
	if err != nil {
		return nil, fmt.Errorf("failed to build index definition: %w", err)
	}
	return fallback, nil
}

// Delete 删除集合；集合不存在时是无操作成功
func (m *CollectionManager) Delete(ctx context.Context, name string) error {
	exists, err := m.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if err := m.client.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// WaitUntilReady 加载集合并轮询直到后端报告索引可用，超时返回IndexNotReady
func (m *CollectionManager) WaitUntilReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	defer cancel()

	if err := m.client.LoadCollection(ctx, name, true); err != nil {
		return apperrors.NewBackendUnavailableError("milvus", err)
	}

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		state, err := m.client.GetLoadState(ctx, name, nil)
		if err == nil && state == entity.LoadStateLoaded {
			return nil
		}

		select {
		case <-ctx.Done():
			return apperrors.NewIndexNotReadyError(name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// EnsureReady 懒预建：集合不存在时创建并等待可用。
// 首次向新集合写入因此同时是一次结构创建事件。
func (m *CollectionManager) EnsureReady(ctx context.Context, name string) error {
	exists, err := m.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.Create(ctx, name); err != nil {
		return err
	}
	return m.WaitUntilReady(ctx, name)
}
