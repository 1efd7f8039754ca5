package knowledge

import (
	"context"
	"sort"
)

// 会话存储保留命名空间，ListCollections始终排除
const reservedConversationNamespace = "conversations"

// SearchResult 相似度检索结果（派生数据，不持久化）
type SearchResult struct {
	Collection string  `json:"collection,omitempty"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	ChunkOrder int     `json:"chunk_order"`
	Tags       string  `json:"tags"`
	Score      float64 `json:"score"`
}

// VectorStore 向量存储策略抽象。
// 两个后端实现语义一致：按键幂等写入、top-k相似度检索、集合枚举与删除。
// 后端特有的查询DSL、连接协议与集合预建全部留在实现内部。
type VectorStore interface {
	// UpsertChunk 按键幂等写入分块。向量维度不符时在任何I/O之前失败。
	// 目标集合不存在时透明创建（后端支持集合生命周期的实现）。
	UpsertChunk(ctx context.Context, collection, key, text string, embedding []float32) error
	// Search 返回按得分降序排列、不低于minScore的至多limit条结果。
	// 集合不存在返回空结果而非错误。
	Search(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]SearchResult, error)
	// ListCollections 枚举业务集合，排除系统集合与会话保留命名空间
	ListCollections(ctx context.Context) ([]string, error)
	// DeleteCollection 幂等删除：集合不存在时是无操作成功
	DeleteCollection(ctx context.Context, name string) error
	Ready() bool
}

// filterByScore 应用相似度阈值并按得分降序排序。
// 两个后端的原生排序不保证一致，统一在此归一。
func filterByScore(results []SearchResult, minScore float64, limit int) []SearchResult {
	filtered := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
