package repository

import (
	"context"

	"github.com/aihub/knowledge-go/internal/models"
)

// CollectionRepository 知识集合元数据仓库
type CollectionRepository interface {
	// EnsureActive 按名称获取集合记录，不存在则创建，已软删除则重新激活
	EnsureActive(ctx context.Context, name string) (*models.KnowledgeCollection, error)
	GetByName(ctx context.Context, name string) (*models.KnowledgeCollection, error)
	IncrementChunkCount(ctx context.Context, name string, delta int64) error
	IncrementDocumentCount(ctx context.Context, name string, delta int64) error
	// SoftDelete 标记集合为deleted状态，删除不存在的集合不报错
	SoftDelete(ctx context.Context, name string) error
}

// DocumentRepository 文档元数据仓库
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.KnowledgeDocument) error
	GetByID(ctx context.Context, documentID uint) (*models.KnowledgeDocument, error)
	// UpdateStatus 更新处理状态与分块数，文档完成后不再变更
	UpdateStatus(ctx context.Context, documentID uint, status string, chunkCount int) error
}
