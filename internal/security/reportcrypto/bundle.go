package reportcrypto

import (
	"strconv"
	"strings"
)

// CipherBundle 通報密文包
// 線上格式，欄位名稱不可變動：既存的 bundle 會被持久化，
// 之後可能由另一個行程解密。
type CipherBundle struct {
	EncryptedMessage       string              `json:"encryptedMessage" bson:"encryptedMessage"`
	EncryptedCategory      string              `json:"encryptedCategory" bson:"encryptedCategory"`
	EncryptedPhotoURL      string              `json:"encryptedPhotoUrl,omitempty" bson:"encryptedPhotoUrl,omitempty"`
	EncryptedVideoURL      string              `json:"encryptedVideoUrl,omitempty" bson:"encryptedVideoUrl,omitempty"`
	EncryptedVideoMetadata string              `json:"encryptedVideoMetadata,omitempty" bson:"encryptedVideoMetadata,omitempty"`
	IV                     string              `json:"iv" bson:"iv"`     // hex，16 bytes
	Salt                   string              `json:"salt" bson:"salt"` // hex，32 bytes
	Timestamp              int64               `json:"timestamp" bson:"timestamp"`
	KeyDerivationParams    KeyDerivationParams `json:"keyDerivationParams" bson:"keyDerivationParams"`
	HMAC                   string              `json:"hmac" bson:"hmac"`
	Version                string              `json:"version" bson:"version"`
	SessionID              string              `json:"sessionId" bson:"sessionId"`
}

// KeyDerivationParams 密鑰派生參數（向前相容用）
type KeyDerivationParams struct {
	Iterations int    `json:"iterations" bson:"iterations"`
	Algorithm  string `json:"algorithm" bson:"algorithm"`
}

// ReportFields 通報明文欄位
// PhotoURL / VideoURL / VideoMetadata 為可選；缺席的欄位在
// bundle 中整個省略，不會加密空字串。
type ReportFields struct {
	Message       string
	Category      string
	PhotoURL      string
	VideoURL      string
	VideoMetadata map[string]interface{}
}

// canonicalSerialization HMAC 的正規序列化
// 順序固定：所有密文欄位（按固定順序，缺席者以空字串佔位）、
// iv、salt、timestamp、sessionId。加解密兩側都以同一順序重建，
// 任何欄位變動都會讓 HMAC 失效。
func canonicalSerialization(b *CipherBundle) string {
	var sb strings.Builder
	sb.WriteString("encryptedMessage=")
	sb.WriteString(b.EncryptedMessage)
	sb.WriteString("&encryptedCategory=")
	sb.WriteString(b.EncryptedCategory)
	sb.WriteString("&encryptedPhotoUrl=")
	sb.WriteString(b.EncryptedPhotoURL)
	sb.WriteString("&encryptedVideoUrl=")
	sb.WriteString(b.EncryptedVideoURL)
	sb.WriteString("&encryptedVideoMetadata=")
	sb.WriteString(b.EncryptedVideoMetadata)
	sb.WriteString("&iv=")
	sb.WriteString(b.IV)
	sb.WriteString("&salt=")
	sb.WriteString(b.Salt)
	sb.WriteString("&timestamp=")
	sb.WriteString(strconv.FormatInt(b.Timestamp, 10))
	sb.WriteString("&sessionId=")
	sb.WriteString(b.SessionID)
	return sb.String()
}
