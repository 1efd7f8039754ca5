package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/knowledge-go/internal/knowledge"
)

// SearchService 检索服务：把查询文本向量化后交给聚合器检索
type SearchService struct {
	embedder   knowledge.Embedder
	manager    *knowledge.Manager
	aggregator *knowledge.Aggregator
}

// NewSearchService 创建检索服务
func NewSearchService(embedder knowledge.Embedder, manager *knowledge.Manager, aggregator *knowledge.Aggregator) *SearchService {
	return &SearchService{
		embedder:   embedder,
		manager:    manager,
		aggregator: aggregator,
	}
}

// Search 在单个集合内按查询文本检索相关分块
func (s *SearchService) Search(ctx context.Context, collection, query string, limit int) ([]knowledge.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []knowledge.SearchResult{}, nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return s.manager.Search(ctx, collection, embedding, limit, -1), nil
}

// SearchAll 跨集合检索；collections为空时覆盖全部集合
func (s *SearchService) SearchAll(ctx context.Context, collections []string, query string, limit int) ([]knowledge.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []knowledge.SearchResult{}, nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return s.aggregator.SearchAll(ctx, collections, embedding, limit, -1)
}
