package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/models"
)

// spyVectorStore 记录调用的内存向量存储
type spyVectorStore struct {
	mu            sync.Mutex
	upsertCalls   int
	searchCalls   int
	lastLimit     int
	lastMinScore  float64
	searchResults map[string][]SearchResult
	searchErr     error
	upsertErr     error
	deleteErr     error
	deleted       []string
}

func (s *spyVectorStore) UpsertChunk(ctx context.Context, collection, key, text string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	return s.upsertErr
}

func (s *spyVectorStore) Search(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	s.lastLimit = limit
	s.lastMinScore = minScore
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResults[collection], nil
}

func (s *spyVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.searchResults))
	for name := range s.searchResults {
		names = append(names, name)
	}
	return names, nil
}

func (s *spyVectorStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	return s.deleteErr
}

func (s *spyVectorStore) Ready() bool { return true }

// fakeCollectionRepo 内存集合元数据仓库
type fakeCollectionRepo struct {
	mu          sync.Mutex
	chunkCounts map[string]int64
	docCounts   map[string]int64
	softDeleted []string
	err         error
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{
		chunkCounts: make(map[string]int64),
		docCounts:   make(map[string]int64),
	}
}

func (r *fakeCollectionRepo) EnsureActive(ctx context.Context, name string) (*models.KnowledgeCollection, error) {
	return &models.KnowledgeCollection{CollectionID: 1, Name: name, Status: models.CollectionStatusActive}, r.err
}

func (r *fakeCollectionRepo) GetByName(ctx context.Context, name string) (*models.KnowledgeCollection, error) {
	return &models.KnowledgeCollection{CollectionID: 1, Name: name}, r.err
}

func (r *fakeCollectionRepo) IncrementChunkCount(ctx context.Context, name string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkCounts[name] += delta
	return r.err
}

func (r *fakeCollectionRepo) IncrementDocumentCount(ctx context.Context, name string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docCounts[name] += delta
	return r.err
}

func (r *fakeCollectionRepo) SoftDelete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.softDeleted = append(r.softDeleted, name)
	return r.err
}

func newTestManager(store VectorStore, repo *fakeCollectionRepo) *Manager {
	return NewManager(ManagerOptions{
		Store: store,
		Repo:  repo,
		Provider: ProviderConfig{
			Provider:          "fake",
			Dimensions:        4,
			MinRelevanceScore: 0.75,
		},
		DefaultLimit: 10,
	})
}

func vec(dims int) []float32 {
	return make([]float32, dims)
}

func TestManager_ProviderConfigDefaults(t *testing.T) {
	// 未注入提供方配置时使用默认维度与阈值
	manager := NewManager(ManagerOptions{Store: &spyVectorStore{}})
	assert.Equal(t, 1536, manager.Provider().Dimensions)
	assert.Equal(t, 0.75, manager.MinScore())

	// 注入的提供方配置原样生效
	manager = NewManager(ManagerOptions{
		Store:    &spyVectorStore{},
		Provider: ProviderConfig{Provider: "openai", Dimensions: 3072, MinRelevanceScore: 0.6},
	})
	assert.Equal(t, "openai", manager.Provider().Provider)
	assert.Equal(t, 3072, manager.Provider().Dimensions)
	assert.Equal(t, 0.6, manager.MinScore())
}

func TestManager_UpsertChunk(t *testing.T) {
	store := &spyVectorStore{}
	repo := newFakeCollectionRepo()
	manager := newTestManager(store, repo)

	err := manager.UpsertChunk(context.Background(), "docs", "report-p0000", "hello", vec(4))
	require.NoError(t, err)
	assert.Equal(t, 1, store.upsertCalls)
	assert.Equal(t, int64(1), repo.chunkCounts["docs"])
}

func TestManager_UpsertChunkRejectsDimensionMismatchBeforeBackend(t *testing.T) {
	store := &spyVectorStore{}
	manager := newTestManager(store, newFakeCollectionRepo())

	err := manager.UpsertChunk(context.Background(), "docs", "report-p0000", "hello", vec(3))
	require.Error(t, err)
	assert.True(t, apperrors.IsDimensionMismatch(err))
	// 维度校验在任何后端I/O之前完成
	assert.Equal(t, 0, store.upsertCalls)
}

func TestManager_UpsertChunkValidatesInput(t *testing.T) {
	store := &spyVectorStore{}
	manager := newTestManager(store, newFakeCollectionRepo())

	assert.Error(t, manager.UpsertChunk(context.Background(), "", "key", "x", vec(4)))
	assert.Error(t, manager.UpsertChunk(context.Background(), "docs", "", "x", vec(4)))
	assert.Equal(t, 0, store.upsertCalls)
}

func TestManager_UpsertChunkSurfacesBackendError(t *testing.T) {
	store := &spyVectorStore{upsertErr: apperrors.NewBackendUnavailableError("elasticsearch", errors.New("boom"))}
	repo := newFakeCollectionRepo()
	manager := newTestManager(store, repo)

	err := manager.UpsertChunk(context.Background(), "docs", "report-p0000", "hello", vec(4))
	require.Error(t, err)
	assert.True(t, apperrors.IsBackendUnavailable(err))
	// 写入失败不增加计数
	assert.Equal(t, int64(0), repo.chunkCounts["docs"])
}

func TestManager_SearchAppliesDefaults(t *testing.T) {
	store := &spyVectorStore{searchResults: map[string][]SearchResult{}}
	manager := newTestManager(store, newFakeCollectionRepo())

	manager.Search(context.Background(), "docs", vec(4), 0, -1)
	assert.Equal(t, 10, store.lastLimit)
	assert.Equal(t, 0.75, store.lastMinScore)

	manager.Search(context.Background(), "docs", vec(4), 5, 0.9)
	assert.Equal(t, 5, store.lastLimit)
	assert.Equal(t, 0.9, store.lastMinScore)
}

func TestManager_SearchDegradesToEmptyOnBackendFailure(t *testing.T) {
	store := &spyVectorStore{searchErr: apperrors.NewBackendUnavailableError("milvus", errors.New("down"))}
	manager := newTestManager(store, newFakeCollectionRepo())

	results := manager.Search(context.Background(), "docs", vec(4), 5, -1)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestManager_SearchRejectsDimensionMismatch(t *testing.T) {
	store := &spyVectorStore{}
	manager := newTestManager(store, newFakeCollectionRepo())

	results := manager.Search(context.Background(), "docs", vec(7), 5, -1)
	assert.Empty(t, results)
	assert.Equal(t, 0, store.searchCalls)
}

func TestManager_DeleteCollectionCascades(t *testing.T) {
	store := &spyVectorStore{}
	repo := newFakeCollectionRepo()
	manager := newTestManager(store, repo)

	require.NoError(t, manager.DeleteCollection(context.Background(), "docs"))
	assert.Equal(t, []string{"docs"}, store.deleted)
	assert.Equal(t, []string{"docs"}, repo.softDeleted)
}

func TestManager_DeleteCollectionToleratesBackendFailure(t *testing.T) {
	store := &spyVectorStore{deleteErr: apperrors.NewBackendUnavailableError("milvus", errors.New("down"))}
	repo := newFakeCollectionRepo()
	manager := newTestManager(store, repo)

	// 后端删除失败不阻断元数据软删除
	require.NoError(t, manager.DeleteCollection(context.Background(), "docs"))
	assert.Equal(t, []string{"docs"}, repo.softDeleted)
}
