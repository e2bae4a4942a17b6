package report

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// AttachmentStore 加密附件存儲實作.
type AttachmentStore struct {
	collection *mongo.Collection
}

// NewAttachmentStore 創建新的附件存儲.
func NewAttachmentStore(db *mongo.Database) *AttachmentStore {
	return &AttachmentStore{
		collection: db.Collection("report_attachments"),
	}
}

// Create 保存一個加密附件.
func (s *AttachmentStore) Create(ctx context.Context, a *Attachment) error {
	a.SessionID = a.Bundle.SessionID
	a.CreatedAt = time.Now()

	result, err := s.collection.InsertOne(ctx, a)
	if err != nil {
		return err
	}

	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		a.ID = oid
	}
	return nil
}

// GetByID 根據 ID 獲取附件.
func (s *AttachmentStore) GetByID(ctx context.Context, id string) (*Attachment, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var a Attachment
	err = s.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&a)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// ListByReport 列出某通報的全部附件.
func (s *AttachmentStore) ListByReport(ctx context.Context, reportID string) ([]*Attachment, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"report_id": reportID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attachments []*Attachment
	for cursor.Next(ctx) {
		var a Attachment
		if err := cursor.Decode(&a); err != nil {
			return nil, err
		}
		attachments = append(attachments, &a)
	}

	return attachments, nil
}

// Delete 刪除附件.
func (s *AttachmentStore) Delete(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = s.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
