package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aihub/knowledge-go/internal/logger"
	"go.uber.org/zap"
)

// CachedChunk 缓存的分块数据
type CachedChunk struct {
	Key     string
	Source  string
	Order   int
	Content string
}

// ChunkCache Redis分块缓存：按文档保留分块文本与顺序，
// 支持不经向量后端的按序重建。未启用时所有操作静默跳过。
type ChunkCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewChunkCache 创建分块缓存
func NewChunkCache(client *redis.Client, enabled bool, ttl time.Duration) *ChunkCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ChunkCache{
		client:  client,
		enabled: enabled && client != nil,
		ttl:     ttl,
	}
}

func (c *ChunkCache) chunkKey(collection, key string) string {
	return fmt.Sprintf("knowledge:chunk:%s:%s", collection, key)
}

func (c *ChunkCache) documentKey(collection, source string) string {
	return fmt.Sprintf("knowledge:doc:%s:%s", collection, source)
}

func (c *ChunkCache) collectionKey(collection string) string {
	return fmt.Sprintf("knowledge:collection:%s", collection)
}

// StoreChunk 缓存分块；失败只记录警告，不影响写入主流程
func (c *ChunkCache) StoreChunk(ctx context.Context, collection string, chunk CachedChunk) {
	if !c.enabled {
		return
	}

	key := c.chunkKey(collection, chunk.Key)
	data := map[string]interface{}{
		"chunk_key":   chunk.Key,
		"source":      chunk.Source,
		"chunk_order": chunk.Order,
		"content":     chunk.Content,
	}

	if err := c.client.HSet(ctx, key, data).Err(); err != nil {
		logger.Warn("failed to cache chunk", zap.String("key", chunk.Key), zap.Error(err))
		return
	}
	if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
		logger.Warn("failed to set chunk TTL", zap.String("key", chunk.Key), zap.Error(err))
	}

	docKey := c.documentKey(collection, chunk.Source)
	if err := c.client.SAdd(ctx, docKey, chunk.Key).Err(); err != nil {
		logger.Warn("failed to index chunk in document set", zap.Error(err))
		return
	}
	c.client.Expire(ctx, docKey, c.ttl)

	collKey := c.collectionKey(collection)
	if err := c.client.SAdd(ctx, collKey, chunk.Source).Err(); err != nil {
		logger.Warn("failed to index source in collection set", zap.Error(err))
		return
	}
	c.client.Expire(ctx, collKey, c.ttl)
}

// GetDocumentChunks 取出一个文档的全部缓存分块，按分块顺序排列
func (c *ChunkCache) GetDocumentChunks(ctx context.Context, collection, source string) ([]CachedChunk, error) {
	if !c.enabled {
		return nil, nil
	}

	keys, err := c.client.SMembers(ctx, c.documentKey(collection, source)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read document chunk set: %w", err)
	}

	chunks := make([]CachedChunk, 0, len(keys))
	for _, key := range keys {
		data, err := c.client.HGetAll(ctx, c.chunkKey(collection, key)).Result()
		if err != nil || len(data) == 0 {
			continue // 过期的分块跳过
		}
		order, _ := strconv.Atoi(data["chunk_order"])
		chunks = append(chunks, CachedChunk{
			Key:     data["chunk_key"],
			Source:  data["source"],
			Order:   order,
			Content: data["content"],
		})
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Order < chunks[j].Order
	})

	return chunks, nil
}

// InvalidateCollection 清除集合的全部缓存数据
func (c *ChunkCache) InvalidateCollection(ctx context.Context, collection string) {
	if !c.enabled {
		return
	}

	collKey := c.collectionKey(collection)
	sources, err := c.client.SMembers(ctx, collKey).Result()
	if err != nil {
		logger.Warn("failed to read collection source set", zap.Error(err))
		return
	}

	for _, source := range sources {
		docKey := c.documentKey(collection, source)
		keys, err := c.client.SMembers(ctx, docKey).Result()
		if err == nil {
			for _, key := range keys {
				c.client.Del(ctx, c.chunkKey(collection, key))
			}
		}
		c.client.Del(ctx, docKey)
	}
	c.client.Del(ctx, collKey)
}
