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

// HNSW检索时的候选队列长度
const milvusSearchEf = 64

// MilvusOptions Milvus后端配置
type MilvusOptions struct {
	Address          string
	Username         string
	Password         string
	Database         string
	CollectionPrefix string
	VectorSize       int
	Distance         string
	UseTLS           bool
	ReadyTimeout     time.Duration
	Timeout          time.Duration
}

// milvusVectorStore 基于Milvus的向量存储。
// 集合生命周期显式管理：首次写入触发懒预建（见CollectionManager）。
// 字符串分块键经FNV-64a映射为int64主键，写入按主键幂等覆盖。
type milvusVectorStore struct {
	milvusClient     client.Client
	manager          *CollectionManager
	collectionPrefix string
	vectorSize       int
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "knowledge"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient:     milvusClient,
		manager:          NewCollectionManager(milvusClient, opts.VectorSize, opts.Distance, opts.ReadyTimeout),
		collectionPrefix: opts.CollectionPrefix,
		vectorSize:       opts.VectorSize,
	}, nil
}

func (s *milvusVectorStore) collectionName(collection string) string {
	return fmt.Sprintf("%s_%s", s.collectionPrefix, collection)
}

func (s *milvusVectorStore) collectionFromName(name string) string {
	return strings.TrimPrefix(name, s.collectionPrefix+"_")
}

func (s *milvusVectorStore) validateDimensions(embedding []float32) error {
	if len(embedding) != s.vectorSize {
		return apperrors.NewDimensionMismatchError(s.vectorSize, len(embedding))
	}
	return nil
}

func (s *milvusVectorStore) UpsertChunk(ctx context.Context, collection, key, text string, embedding []float32) error {
	if err := s.validateDimensions(embedding); err != nil {
		return err
	}

	name := s.collectionName(collection)
	if err := s.manager.EnsureReady(ctx, name); err != nil {
		return err
	}

	parsed := ParseChunkKey(key)

	idColumn := entity.NewColumnInt64("id", []int64{ChunkKeyID(key)})
	keyColumn := entity.NewColumnVarChar("chunk_key", []string{key})
	sourceColumn := entity.NewColumnVarChar("source", []string{parsed.Source})
	orderColumn := entity.NewColumnInt64("chunk_order", []int64{int64(parsed.Order)})
	tagsColumn := entity.NewColumnVarChar("tags", []string{""})
	contentColumn := entity.NewColumnVarChar("content", []string{text})
	vectorColumn := entity.NewColumnFloatVector("vector", s.vectorSize, [][]float32{embedding})

	// Upsert按主键覆盖：同一逻辑键重复写入只保留最新内容
	_, err := s.milvusClient.Upsert(ctx, name, "", idColumn, keyColumn, sourceColumn, orderColumn, tagsColumn, contentColumn, vectorColumn)
	if err != nil {
		return apperrors.NewBackendUnavailableError("milvus", err)
	}

	if err := s.milvusClient.Flush(ctx, name, false); err != nil {
		// 刷新失败不影响写入结果
		logger.Warn("failed to flush collection",
			zap.String("collection", name), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) Search(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]SearchResult, error) {
	if err := s.validateDimensions(embedding); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	name := s.collectionName(collection)

	// 集合不存在视为"尚无知识"，返回空结果
	exists, err := s.manager.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []SearchResult{}, nil
	}

	sp, err := entity.NewIndexHNSWSearchParam(milvusSearchEf)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	queryVector := entity.FloatVector(embedding)
	searchResults, err := s.milvusClient.Search(
		ctx,
		name,
		[]string{},
		"",
		[]string{"chunk_key", "source", "chunk_order", "tags", "content"},
		[]entity.Vector{queryVector},
		"vector",
		s.manager.MetricType(),
		limit,
		sp,
	)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("milvus", err)
	}

	if len(searchResults) == 0 {
		return []SearchResult{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []SearchResult{}, nil
	}

	var sources, tags, contents []string
	var orders []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case "source":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				sources = col.Data()
			}
		case "chunk_order":
			if col, ok := field.(*entity.ColumnInt64); ok {
				orders = col.Data()
			}
		case "tags":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				tags = col.Data()
			}
		case "content":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		}
	}

	matches := make([]SearchResult, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchResult{Collection: collection}
		if i < len(sources) {
			match.Source = sources[i]
		}
		if i < len(orders) {
			match.ChunkOrder = int(orders[i])
		}
		if i < len(tags) {
			match.Tags = tags[i]
		}
		if i < len(contents) {
			match.Content = contents[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		matches = append(matches, match)
	}

	return filterByScore(matches, minScore, limit), nil
}

func (s *milvusVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	collections, err := s.milvusClient.ListCollections(ctx)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("milvus", err)
	}

	names := make([]string, 0, len(collections))
	for _, collection := range collections {
		if !strings.HasPrefix(collection.Name, s.collectionPrefix+"_") {
			continue
		}
		name := s.collectionFromName(collection.Name)
		if name == "" || name == reservedConversationNamespace {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

func (s *milvusVectorStore) DeleteCollection(ctx context.Context, name string) error {
	return s.manager.Delete(ctx, s.collectionName(name))
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
