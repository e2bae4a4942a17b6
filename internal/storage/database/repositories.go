package database

import (
	"context"

	"report-gateway/internal/platform/config"
	"report-gateway/internal/platform/logger"
	"report-gateway/internal/storage/database/report"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Repositories 倉儲集合.
type Repositories struct {
	Report     *report.ReportStore
	Attachment *report.AttachmentStore
}

// NewRepositories 創建倉儲集合.
func NewRepositories(cfg *config.Config) *Repositories {
	// 從 driver 包獲取 MongoDB 連接
	db := mongoDB
	if db == nil {
		return nil
	}

	// 創建索引以優化查詢性能
	ctx := context.Background()
	if err := report.CreateIndexes(ctx, db); err != nil {
		// 記錄錯誤但不中斷服務啟動
		logger.Warning(ctx, "創建索引失敗: "+err.Error())
	}

	return &Repositories{
		Report:     report.NewReportStore(db),
		Attachment: report.NewAttachmentStore(db),
	}
}

// 全局變數，用於存儲 MongoDB 連接
var mongoDB *mongo.Database

// SetMongoDB 設置 MongoDB 連接.
func SetMongoDB(db *mongo.Database) {
	mongoDB = db
}
