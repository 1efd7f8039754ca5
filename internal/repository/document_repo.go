package repository

import (
	"context"

	"github.com/aihub/knowledge-go/internal/models"
	"gorm.io/gorm"
)

// documentRepository 文档元数据仓库实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档元数据仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 创建文档记录
func (r *documentRepository) Create(ctx context.Context, doc *models.KnowledgeDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID 根据ID获取文档
func (r *documentRepository) GetByID(ctx context.Context, documentID uint) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateStatus 更新处理状态与分块数
func (r *documentRepository) UpdateStatus(ctx context.Context, documentID uint, status string, chunkCount int) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeDocument{}).
		Where("document_id = ?", documentID).
		Updates(map[string]interface{}{
			"status":      status,
			"chunk_count": chunkCount,
		}).Error
}
