package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
)

// perCollectionStore 按集合返回固定结果，指定集合可注入失败
type perCollectionStore struct {
	spyVectorStore
	failing map[string]bool
}

func (s *perCollectionStore) Search(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]SearchResult, error) {
	if s.failing[collection] {
		return nil, apperrors.NewBackendUnavailableError("elasticsearch", errors.New("shard failure"))
	}
	return s.searchResults[collection], nil
}

func newTestAggregator(store VectorStore) *Aggregator {
	manager := NewManager(ManagerOptions{
		Store:        store,
		Provider:     ProviderConfig{Provider: "fake", Dimensions: 4, MinRelevanceScore: 0.75},
		DefaultLimit: 10,
	})
	return NewAggregator(manager, 4)
}

func TestAggregator_MergesAndRanksAcrossCollections(t *testing.T) {
	store := &perCollectionStore{
		spyVectorStore: spyVectorStore{
			searchResults: map[string][]SearchResult{
				"alpha": {
					{Collection: "alpha", Content: "a1", Score: 0.9},
					{Collection: "alpha", Content: "a2", Score: 0.7},
				},
				"beta": {
					{Collection: "beta", Content: "b1", Score: 0.95},
					{Collection: "beta", Content: "b2", Score: 0.8},
				},
			},
		},
	}
	aggregator := newTestAggregator(store)

	results, err := aggregator.SearchAll(context.Background(), []string{"alpha", "beta"}, vec(4), 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 4)

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	assert.Equal(t, []float64{0.95, 0.9, 0.8, 0.7}, scores)
}

func TestAggregator_LimitBoundsCollectionsNotMergedSequence(t *testing.T) {
	store := &perCollectionStore{
		spyVectorStore: spyVectorStore{
			searchResults: map[string][]SearchResult{
				"alpha": {
					{Content: "a1", Score: 0.9},
					{Content: "a2", Score: 0.8},
				},
				"beta": {
					{Content: "b1", Score: 0.95},
					{Content: "b2", Score: 0.7},
				},
			},
		},
	}
	aggregator := newTestAggregator(store)

	// limit约束每个集合的取数，合并序列不被截断
	results, err := aggregator.SearchAll(context.Background(), []string{"alpha", "beta"}, vec(4), 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 4)

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	assert.Equal(t, []float64{0.95, 0.9, 0.8, 0.7}, scores)
}

func TestAggregator_PartialFailureKeepsOtherCollections(t *testing.T) {
	store := &perCollectionStore{
		spyVectorStore: spyVectorStore{
			searchResults: map[string][]SearchResult{
				"healthy": {
					{Collection: "healthy", Content: "ok", Score: 0.9},
				},
			},
		},
		failing: map[string]bool{"broken": true},
	}
	aggregator := newTestAggregator(store)

	// 单个集合失败只损失该集合的贡献
	results, err := aggregator.SearchAll(context.Background(), []string{"healthy", "broken"}, vec(4), 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "healthy", results[0].Collection)
}

func TestAggregator_EnumeratesCollectionsWhenNoneGiven(t *testing.T) {
	store := &perCollectionStore{
		spyVectorStore: spyVectorStore{
			searchResults: map[string][]SearchResult{
				"alpha": {{Collection: "alpha", Content: "a", Score: 0.9}},
				"beta":  {{Collection: "beta", Content: "b", Score: 0.8}},
			},
		},
	}
	aggregator := newTestAggregator(store)

	results, err := aggregator.SearchAll(context.Background(), nil, vec(4), 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestAggregator_EmptyWhenNoCollectionsExist(t *testing.T) {
	store := &perCollectionStore{
		spyVectorStore: spyVectorStore{searchResults: map[string][]SearchResult{}},
	}
	aggregator := newTestAggregator(store)

	results, err := aggregator.SearchAll(context.Background(), nil, vec(4), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAggregator_CancelledContext(t *testing.T) {
	store := &perCollectionStore{
		spyVectorStore: spyVectorStore{
			searchResults: map[string][]SearchResult{
				"alpha": {{Content: "a", Score: 0.9}},
			},
		},
	}
	aggregator := newTestAggregator(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := aggregator.SearchAll(ctx, []string{"alpha"}, vec(4), 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilterByScore(t *testing.T) {
	results := []SearchResult{
		{Content: "low", Score: 0.5},
		{Content: "high", Score: 0.95},
		{Content: "mid", Score: 0.8},
	}

	filtered := filterByScore(results, 0.75, 10)
	require.Len(t, filtered, 2)
	assert.Equal(t, "high", filtered[0].Content)
	assert.Equal(t, "mid", filtered[1].Content)

	assert.Len(t, filterByScore(results, 0.75, 1), 1)
	assert.Empty(t, filterByScore(results, 0.99, 10))
}
