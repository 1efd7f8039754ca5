package database

import (
	"fmt"
	"log"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() (*gorm.DB, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层的sql.DB设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := autoMigrate(db); err != nil {
		log.Printf("database migration warning: %v", err)
	}

	DB = db
	return db, nil
}

// autoMigrate 迁移元数据表（集合在前，文档表有外键依赖）
func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.KnowledgeCollection{}); err != nil {
		return fmt.Errorf("failed to migrate knowledge_collections: %w", err)
	}
	if err := db.AutoMigrate(&models.KnowledgeDocument{}); err != nil {
		return fmt.Errorf("failed to migrate knowledge_documents: %w", err)
	}
	return nil
}

func CloseDB() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
