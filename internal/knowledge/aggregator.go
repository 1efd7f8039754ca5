package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/aihub/knowledge-go/internal/logger"
	"go.uber.org/zap"
)

const defaultMaxParallelSearches = 8

// Aggregator 跨集合检索聚合器：并发查询多个集合并合并排序结果。
// 单个集合失败只损失该集合的贡献，不影响整体检索。
type Aggregator struct {
	manager     *Manager
	maxParallel int
}

// NewAggregator 创建聚合器
func NewAggregator(manager *Manager, maxParallel int) *Aggregator {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelSearches
	}
	return &Aggregator{
		manager:     manager,
		maxParallel: maxParallel,
	}
}

// SearchAll 在给定集合（为空则枚举全部集合）上并发检索，
// 合并后按相关度降序返回。limit约束每个集合的取数，
// 合并序列完整返回，调用方按需自行截断。并发度由信号量限制。
func (a *Aggregator) SearchAll(ctx context.Context, collections []string, embedding []float32, limit int, minScore float64) ([]SearchResult, error) {
	if limit <= 0 {
		limit = a.manager.defaultLimit
	}

	if len(collections) == 0 {
		names, err := a.manager.ListCollections(ctx)
		if err != nil {
			logger.Warn("failed to enumerate collections for search", zap.Error(err))
			return []SearchResult{}, nil
		}
		collections = names
	}
	if len(collections) == 0 {
		return []SearchResult{}, nil
	}

	// 每个集合一个结果槽，保持枚举顺序以便排序稳定可复现
	perCollection := make([][]SearchResult, len(collections))

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.maxParallel)

	for i, collection := range collections {
		wg.Add(1)
		go func(slot int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			perCollection[slot] = a.manager.Search(ctx, name, embedding, limit, minScore)
		}(i, collection)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make([]SearchResult, 0, len(collections)*limit)
	for _, results := range perCollection {
		merged = append(merged, results...)
	}

	// 稳定排序：同分结果保持集合枚举顺序
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged, nil
}
