package report

import (
	"time"

	"report-gateway/internal/security/filecrypto"
	"report-gateway/internal/security/reportcrypto"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Report 通報記錄
// bundle 對儲存層完全不透明：伺服器只保存密文包，不觸碰內容。
type Report struct {
	ID        bson.ObjectID             `bson:"_id,omitempty" json:"id"`
	Bundle    reportcrypto.CipherBundle `bson:"bundle" json:"bundle"`
	SessionID string                    `bson:"session_id" json:"session_id"` // 冗餘索引欄位，等於 bundle.sessionId
	Status    string                    `bson:"status" json:"status"`
	CreatedAt time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time                 `bson:"updated_at" json:"updated_at"`
}

// Attachment 加密附件記錄
type Attachment struct {
	ID        bson.ObjectID               `bson:"_id,omitempty" json:"id"`
	ReportID  string                      `bson:"report_id,omitempty" json:"report_id,omitempty"`
	Bundle    filecrypto.FileCipherBundle `bson:"bundle" json:"bundle"`
	SessionID string                      `bson:"session_id" json:"session_id"`
	CreatedAt time.Time                   `bson:"created_at" json:"created_at"`
}

// 通報狀態常數.
const (
	StatusNew      = "new"
	StatusReviewed = "reviewed"
	StatusArchived = "archived"
)

// IsValidStatus 檢查狀態是否有效.
func IsValidStatus(status string) bool {
	switch status {
	case StatusNew, StatusReviewed, StatusArchived:
		return true
	}
	return false
}
