package report

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ReportStore 通報存儲實作.
type ReportStore struct {
	collection *mongo.Collection
}

// NewReportStore 創建新的通報存儲.
func NewReportStore(db *mongo.Database) *ReportStore {
	return &ReportStore{
		collection: db.Collection("reports"),
	}
}

// Create 保存一筆通報（bundle 視為不透明文檔）.
func (s *ReportStore) Create(ctx context.Context, r *Report) error {
	r.SessionID = r.Bundle.SessionID
	r.Status = StatusNew
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()

	result, err := s.collection.InsertOne(ctx, r)
	if err != nil {
		return err
	}

	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		r.ID = oid
	}
	return nil
}

// GetByID 根據 ID 獲取通報.
func (s *ReportStore) GetByID(ctx context.Context, id string) (*Report, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var r Report
	err = s.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&r)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// List 列出通報（新的在前）.
func (s *ReportStore) List(ctx context.Context, filter map[string]interface{}, limit, offset int64) ([]*Report, error) {
	opts := options.Find()
	opts.SetLimit(limit)
	opts.SetSkip(offset)
	opts.SetSort(bson.D{{Key: "created_at", Value: -1}})

	if filter == nil {
		filter = map[string]interface{}{}
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []*Report
	for cursor.Next(ctx) {
		var r Report
		if err := cursor.Decode(&r); err != nil {
			return nil, err
		}
		reports = append(reports, &r)
	}

	return reports, nil
}

// Count 統計通報數量.
func (s *ReportStore) Count(ctx context.Context, filter map[string]interface{}) (int64, error) {
	if filter == nil {
		filter = map[string]interface{}{}
	}
	return s.collection.CountDocuments(ctx, filter)
}

// UpdateStatus 更新通報狀態.
func (s *ReportStore) UpdateStatus(ctx context.Context, id, status string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}}
	_, err = s.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	return err
}

// Delete 刪除通報.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = s.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
