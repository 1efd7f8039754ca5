package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
)

// 候选过采样倍数：原生检索多取候选，补偿客户端阈值过滤造成的损失
const elasticCandidateFactor = 10

// ElasticOptions Elasticsearch后端配置
type ElasticOptions struct {
	Addresses   []string
	Username    string
	Password    string
	APIKey      string
	IndexPrefix string
	VectorSize  int
}

// elasticVectorStore 基于ES dense_vector kNN的向量存储。
// 集合是隐式的：索引在首次写入时自动创建。
type elasticVectorStore struct {
	client      *elasticsearch.Client
	indexPrefix string
	vectorSize  int
	indexCache  map[string]bool
	mu          sync.Mutex
}

// NewElasticVectorStore 创建Elasticsearch向量存储
func NewElasticVectorStore(opts ElasticOptions) (VectorStore, error) {
	if len(opts.Addresses) == 0 {
		opts.Addresses = []string{"http://localhost:9200"}
	}
	if opts.IndexPrefix == "" {
		opts.IndexPrefix = "knowledge"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}

	cfg := elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &elasticVectorStore{
		client:      client,
		indexPrefix: opts.IndexPrefix,
		vectorSize:  opts.VectorSize,
		indexCache:  make(map[string]bool),
	}, nil
}

// ES索引名必须小写，集合名按约定原样小写使用
func (s *elasticVectorStore) indexName(collection string) string {
	return fmt.Sprintf("%s_%s", s.indexPrefix, strings.ToLower(collection))
}

func (s *elasticVectorStore) collectionFromIndex(index string) string {
	return strings.TrimPrefix(index, s.indexPrefix+"_")
}

func (s *elasticVectorStore) validateDimensions(embedding []float32) error {
	if len(embedding) != s.vectorSize {
		return apperrors.NewDimensionMismatchError(s.vectorSize, len(embedding))
	}
	return nil
}

func (s *elasticVectorStore) indexExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	if s.indexCache[name] {
		s.mu.Unlock()
		return true, nil
	}
	s.mu.Unlock()

	req := esapi.IndicesExistsRequest{Index: []string{name}}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return false, apperrors.NewBackendUnavailableError("elasticsearch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return false, nil
	}

	s.mu.Lock()
	s.indexCache[name] = true
	s.mu.Unlock()
	return true, nil
}

func (s *elasticVectorStore) ensureIndex(ctx context.Context, collection string) error {
	name := s.indexName(collection)

	exists, err := s.indexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"chunk_key":   map[string]interface{}{"type": "keyword"},
				"source":      map[string]interface{}{"type": "keyword"},
				"chunk_order": map[string]interface{}{"type": "integer"},
				"tags":        map[string]interface{}{"type": "keyword"},
				"content":     map[string]interface{}{"type": "text"},
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       s.vectorSize,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}

	body, _ := json.Marshal(mapping)
	createReq := esapi.IndicesCreateRequest{
		Index: name,
		Body:  bytes.NewReader(body),
	}
	resp, err := createReq.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewBackendUnavailableError("elasticsearch", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		// 并发写入同一集合时创建可能竞争，已存在视为成功
		if resp.StatusCode == 400 && strings.Contains(resp.String(), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s failed: %s", name, resp.String())
	}

	s.mu.Lock()
	s.indexCache[name] = true
	s.mu.Unlock()
	return nil
}

func (s *elasticVectorStore) UpsertChunk(ctx context.Context, collection, key, text string, embedding []float32) error {
	if err := s.validateDimensions(embedding); err != nil {
		return err
	}
	if err := s.ensureIndex(ctx, collection); err != nil {
		return err
	}

	parsed := ParseChunkKey(key)
	doc := map[string]interface{}{
		"chunk_key":   key,
		"source":      parsed.Source,
		"chunk_order": parsed.Order,
		"tags":        "",
		"content":     text,
		"embedding":   embedding,
	}

	payload, _ := json.Marshal(doc)
	req := esapi.IndexRequest{
		Index:      s.indexName(collection),
		DocumentID: key,
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewBackendUnavailableError("elasticsearch", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("index chunk %s failed: %s", key, resp.String())
	}

	return nil
}

func (s *elasticVectorStore) Search(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]SearchResult, error) {
	if err := s.validateDimensions(embedding); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	// 集合不存在视为"尚无知识"，返回空结果
	exists, err := s.indexExists(ctx, s.indexName(collection))
	if err != nil {
		return nil, err
	}
	if !exists {
		return []SearchResult{}, nil
	}

	candidates := limit * elasticCandidateFactor
	body := map[string]interface{}{
		"size": candidates,
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   embedding,
			"k":              candidates,
			"num_candidates": candidates,
		},
		"_source": []string{"chunk_key", "source", "chunk_order", "tags", "content"},
	}

	payload, _ := json.Marshal(body)
	searchReq := esapi.SearchRequest{
		Index: []string{s.indexName(collection)},
		Body:  bytes.NewReader(payload),
	}

	resp, err := searchReq.Do(ctx, s.client)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("elasticsearch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return []SearchResult{}, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("knn search failed: %s", resp.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					ChunkKey   string `json:"chunk_key"`
					Source     string `json:"source"`
					ChunkOrder int    `json:"chunk_order"`
					Tags       string `json:"tags"`
					Content    string `json:"content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	matches := make([]SearchResult, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		matches = append(matches, SearchResult{
			Collection: collection,
			Content:    hit.Source.Content,
			Source:     hit.Source.Source,
			ChunkOrder: hit.Source.ChunkOrder,
			Tags:       hit.Source.Tags,
			Score:      hit.Score,
		})
	}

	return filterByScore(matches, minScore, limit), nil
}

func (s *elasticVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	req := esapi.IndicesGetRequest{Index: []string{s.indexPrefix + "_*"}}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("elasticsearch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return []string{}, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list indices failed: %s", resp.String())
	}

	var indices map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&indices); err != nil {
		return nil, fmt.Errorf("failed to decode indices response: %w", err)
	}

	collections := make([]string, 0, len(indices))
	for index := range indices {
		if strings.HasPrefix(index, ".") {
			continue
		}
		name := s.collectionFromIndex(index)
		if name == "" || name == reservedConversationNamespace {
			continue
		}
		collections = append(collections, name)
	}

	return collections, nil
}

func (s *elasticVectorStore) DeleteCollection(ctx context.Context, name string) error {
	index := s.indexName(name)

	ignoreUnavailable := true
	req := esapi.IndicesDeleteRequest{
		Index:             []string{index},
		IgnoreUnavailable: &ignoreUnavailable,
	}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewBackendUnavailableError("elasticsearch", err)
	}
	defer resp.Body.Close()

	// 索引不存在是无操作成功
	if resp.IsError() && resp.StatusCode != 404 {
		return fmt.Errorf("delete index %s failed: %s", index, resp.String())
	}

	s.mu.Lock()
	delete(s.indexCache, index)
	s.mu.Unlock()
	return nil
}

func (s *elasticVectorStore) Ready() bool {
	return s.client != nil
}
