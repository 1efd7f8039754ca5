package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/knowledge-go/internal/kafka"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/models"
	"github.com/aihub/knowledge-go/internal/repository"
	"github.com/aihub/knowledge-go/internal/storage"
	"go.uber.org/zap"
)

// IngestRequest 文档摄取请求
type IngestRequest struct {
	Collection  string
	FileName    string
	FileType    string
	ContentType string
	Raw         []byte
	Document    knowledge.ParsedDocument
}

// IngestResult 摄取结果
type IngestResult struct {
	DocumentID uint
	ChunkCount int
}

// IngestService 文档摄取流水线：登记元数据、留存原件、
// 分块、向量化并逐块写入向量后端。
type IngestService struct {
	chunker     *knowledge.Chunker
	embedder    knowledge.Embedder
	manager     *knowledge.Manager
	collections repository.CollectionRepository
	documents   repository.DocumentRepository
	blobStore   *storage.DocumentStore
	producer    *kafka.Producer
}

// NewIngestService 创建摄取服务
func NewIngestService(
	chunker *knowledge.Chunker,
	embedder knowledge.Embedder,
	manager *knowledge.Manager,
	collections repository.CollectionRepository,
	documents repository.DocumentRepository,
	blobStore *storage.DocumentStore,
	producer *kafka.Producer,
) *IngestService {
	return &IngestService{
		chunker:     chunker,
		embedder:    embedder,
		manager:     manager,
		collections: collections,
		documents:   documents,
		blobStore:   blobStore,
		producer:    producer,
	}
}

// Ingest 处理一份文档。失败的文档标记为failed，已写入的分块保留，
// 重新摄取同一文档会按分块键覆盖。
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.Collection == "" || req.FileName == "" {
		return nil, fmt.Errorf("collection and file name are required")
	}
	if !s.embedder.Ready() {
		return nil, fmt.Errorf("embedding provider not ready")
	}

	coll, err := s.collections.EnsureActive(ctx, req.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	doc := &models.KnowledgeDocument{
		CollectionID: coll.CollectionID,
		FileName:     req.FileName,
		FileSize:     int64(len(req.Raw)),
		FileType:     req.FileType,
		Status:       models.DocumentStatusPending,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	if len(req.Raw) > 0 && s.blobStore != nil && s.blobStore.Enabled() {
		if err := s.blobStore.Upload(ctx, req.Collection, req.FileName, req.Raw, req.ContentType); err != nil {
			// 原件留存失败不阻断摄取
			logger.Warn("failed to archive original document",
				zap.String("file", req.FileName), zap.Error(err))
		}
	}

	chunks := s.chunker.Chunk(req.Document)
	if len(chunks) == 0 {
		s.markStatus(ctx, doc.DocumentID, models.DocumentStatusCompleted, 0)
		s.publishEvent(req.Collection, doc.DocumentID, req.FileName, models.DocumentStatusCompleted, 0)
		return &IngestResult{DocumentID: doc.DocumentID, ChunkCount: 0}, nil
	}

	for _, chunk := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			s.markStatus(ctx, doc.DocumentID, models.DocumentStatusFailed, chunk.Order)
			s.publishEvent(req.Collection, doc.DocumentID, req.FileName, models.DocumentStatusFailed, chunk.Order)
			return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", chunk.Order, req.FileName, err)
		}

		key := knowledge.FormatChunkKey(req.FileName, chunk.Order)
		if err := s.manager.UpsertChunk(ctx, req.Collection, key, chunk.Text, embedding); err != nil {
			s.markStatus(ctx, doc.DocumentID, models.DocumentStatusFailed, chunk.Order)
			s.publishEvent(req.Collection, doc.DocumentID, req.FileName, models.DocumentStatusFailed, chunk.Order)
			return nil, fmt.Errorf("failed to upsert chunk %s: %w", key, err)
		}
	}

	s.markStatus(ctx, doc.DocumentID, models.DocumentStatusCompleted, len(chunks))
	if err := s.collections.IncrementDocumentCount(ctx, req.Collection, 1); err != nil {
		logger.Warn("failed to increment document count",
			zap.String("collection", req.Collection), zap.Error(err))
	}
	s.publishEvent(req.Collection, doc.DocumentID, req.FileName, models.DocumentStatusCompleted, len(chunks))

	logger.Info("document ingested",
		zap.String("collection", req.Collection),
		zap.String("file", req.FileName),
		zap.Int("chunks", len(chunks)))

	return &IngestResult{DocumentID: doc.DocumentID, ChunkCount: len(chunks)}, nil
}

func (s *IngestService) markStatus(ctx context.Context, documentID uint, status string, chunkCount int) {
	if err := s.documents.UpdateStatus(ctx, documentID, status, chunkCount); err != nil {
		logger.Warn("failed to update document status",
			zap.Uint("document_id", documentID), zap.Error(err))
	}
}

func (s *IngestService) publishEvent(collection string, documentID uint, fileName, status string, chunkCount int) {
	if s.producer == nil {
		return
	}
	event := kafka.DocumentEvent{
		Collection: collection,
		DocumentID: documentID,
		FileName:   fileName,
		Status:     status,
		ChunkCount: chunkCount,
		Timestamp:  time.Now(),
	}
	if err := s.producer.PublishDocumentEvent(event); err != nil {
		logger.Warn("failed to publish document event",
			zap.String("file", fileName), zap.Error(err))
	}
}
