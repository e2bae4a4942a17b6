package report

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateIndexes 創建數據庫索引以優化查詢性能
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	// 通報集合索引
	reportsCollection := db.Collection("reports")

	// 1. 創建時間索引（列表按新到舊排序）
	createdAtIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("created_at_idx"),
	}

	// 2. 加密會話 ID 索引（按會話定位 bundle）
	sessionIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
		},
		Options: options.Index().SetName("session_idx"),
	}

	// 3. 狀態 + 創建時間複合索引
	statusTimeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("status_time_idx"),
	}

	reportIndexes := []mongo.IndexModel{
		createdAtIndex,
		sessionIndex,
		statusTimeIndex,
	}

	if _, err := reportsCollection.Indexes().CreateMany(ctx, reportIndexes); err != nil {
		return err
	}

	// 附件集合索引
	attachmentsCollection := db.Collection("report_attachments")

	// 1. 所屬通報索引
	reportIDIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "report_id", Value: 1},
		},
		Options: options.Index().SetName("report_idx"),
	}

	// 2. 加密會話 ID 索引
	attachmentSessionIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
		},
		Options: options.Index().SetName("session_idx"),
	}

	attachmentIndexes := []mongo.IndexModel{
		reportIDIndex,
		attachmentSessionIndex,
	}

	if _, err := attachmentsCollection.Indexes().CreateMany(ctx, attachmentIndexes); err != nil {
		return err
	}

	return nil
}
