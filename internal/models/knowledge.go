package models

import "time"

// 集合生命周期状态
const (
	CollectionStatusActive  = "active"
	CollectionStatusDeleted = "deleted"
)

// 文档处理状态
const (
	DocumentStatusPending   = "pending"
	DocumentStatusCompleted = "completed"
	DocumentStatusFailed    = "failed"
)

// KnowledgeCollection 知识集合（元数据记录，向量数据在后端存储中）
type KnowledgeCollection struct {
	CollectionID  uint      `gorm:"primaryKey;column:collection_id" json:"collection_id"`
	Name          string    `gorm:"size:200;not null;uniqueIndex" json:"name"`
	DocumentCount int64     `gorm:"column:document_count;default:0" json:"document_count"`
	ChunkCount    int64     `gorm:"column:chunk_count;default:0" json:"chunk_count"`
	Status        string    `gorm:"size:20;default:active" json:"status"`
	CreateTime    time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime    time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`

	// 关系
	Documents []KnowledgeDocument `gorm:"foreignKey:CollectionID"`
}

func (KnowledgeCollection) TableName() string {
	return "knowledge_collections"
}

// KnowledgeDocument 知识集合中的文档
type KnowledgeDocument struct {
	DocumentID   uint      `gorm:"primaryKey;column:document_id" json:"document_id"`
	CollectionID uint      `gorm:"column:collection_id;not null;index" json:"collection_id"`
	FileName     string    `gorm:"size:500;not null" json:"file_name"`
	FileSize     int64     `gorm:"column:file_size;default:0" json:"file_size"`
	FileType     string    `gorm:"size:50" json:"file_type"`
	ChunkCount   int       `gorm:"column:chunk_count;default:0" json:"chunk_count"`
	Status       string    `gorm:"size:20;default:pending" json:"status"`
	UploadTime   time.Time `gorm:"column:upload_time;autoCreateTime" json:"upload_time"`
	UpdateTime   time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}
