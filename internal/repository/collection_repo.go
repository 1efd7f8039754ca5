package repository

import (
	"context"
	"errors"

	"github.com/aihub/knowledge-go/internal/models"
	"gorm.io/gorm"
)

// collectionRepository 集合元数据仓库实现
type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository 创建集合元数据仓库
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

// EnsureActive 按名称获取集合记录，不存在则创建，已软删除则重新激活
func (r *collectionRepository) EnsureActive(ctx context.Context, name string) (*models.KnowledgeCollection, error) {
	var collection models.KnowledgeCollection
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&collection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		collection = models.KnowledgeCollection{
			Name:   name,
			Status: models.CollectionStatusActive,
		}
		if err := r.db.WithContext(ctx).Create(&collection).Error; err != nil {
			return nil, err
		}
		return &collection, nil
	}
	if err != nil {
		return nil, err
	}

	if collection.Status != models.CollectionStatusActive {
		if err := r.db.WithContext(ctx).Model(&collection).
			Update("status", models.CollectionStatusActive).Error; err != nil {
			return nil, err
		}
		collection.Status = models.CollectionStatusActive
	}

	return &collection, nil
}

// GetByName 按名称获取集合记录
func (r *collectionRepository) GetByName(ctx context.Context, name string) (*models.KnowledgeCollection, error) {
	var collection models.KnowledgeCollection
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&collection).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

// IncrementChunkCount 原子增加分块计数
func (r *collectionRepository) IncrementChunkCount(ctx context.Context, name string, delta int64) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeCollection{}).
		Where("name = ?", name).
		Update("chunk_count", gorm.Expr("chunk_count + ?", delta)).Error
}

// IncrementDocumentCount 原子增加文档计数
func (r *collectionRepository) IncrementDocumentCount(ctx context.Context, name string, delta int64) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeCollection{}).
		Where("name = ?", name).
		Update("document_count", gorm.Expr("document_count + ?", delta)).Error
}

// SoftDelete 标记集合为deleted状态；不存在的集合是无操作成功
func (r *collectionRepository) SoftDelete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeCollection{}).
		Where("name = ?", name).
		Update("status", models.CollectionStatusDeleted).Error
}
