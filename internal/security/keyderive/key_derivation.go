package keyderive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"report-gateway/internal/constants"

	"golang.org/x/crypto/pbkdf2"
)

// KeyMaterial 一組會話密鑰
// 加密密鑰與 HMAC 密鑰以不同的 salt/標籤派生，兩者必定不同。
// 編解碼器只能按值取得副本，不得在呼叫之外保留。
type KeyMaterial struct {
	EncryptionKey string    // 256-bit，hex 編碼
	HmacKey       string    // 256-bit，hex 編碼
	SessionID     string    // SHA256(entropy) 前 16 個十六進制字元
	DerivedAt     time.Time // 派生時間
}

// Clone 回傳密鑰的防禦性副本
func (k *KeyMaterial) Clone() KeyMaterial {
	return KeyMaterial{
		EncryptionKey: k.EncryptionKey,
		HmacKey:       k.HmacKey,
		SessionID:     k.SessionID,
		DerivedAt:     k.DerivedAt,
	}
}

// Zero 清除密鑰內容
// 字串無法原地覆寫，這裡改寫欄位使舊值脫離引用，等待 GC 回收。
func (k *KeyMaterial) Zero() {
	k.EncryptionKey = ""
	k.HmacKey = ""
	k.SessionID = ""
	k.DerivedAt = time.Time{}
}

// EncryptionKeyBytes 解碼加密密鑰
func (k *KeyMaterial) EncryptionKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(k.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key encoding: %w", err)
	}
	if len(key) != constants.SessionKeyLength {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", constants.SessionKeyLength, len(key))
	}
	return key, nil
}

// HmacKeyBytes 解碼 HMAC 密鑰
func (k *KeyMaterial) HmacKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(k.HmacKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hmac key encoding: %w", err)
	}
	if len(key) != constants.SessionKeyLength {
		return nil, fmt.Errorf("hmac key must be %d bytes, got %d", constants.SessionKeyLength, len(key))
	}
	return key, nil
}

// 管理員派生使用的固定公開 salt
// 管理員憑證派生不重建會話原始熵，而是一條獨立的確定性派生路徑，
// 安全性依賴管理員憑證本身的保密，詳見 DESIGN.md 的開放問題記錄。
var (
	adminEncryptionSalt = []byte("report-admin-enc-salt-v1")
	adminHmacSalt       = []byte("report-admin-mac-salt-v1")
)

// DeriveSessionKeys 派生一組全新的會話密鑰
// 熵來源：256-bit 安全隨機數 ∥ 環境指紋 ∥ 納秒時間戳。
// 環境指紋只作為額外熵，不用於任何追蹤。
func DeriveSessionKeys() (*KeyMaterial, error) {
	random := make([]byte, constants.SessionKeyLength)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return nil, fmt.Errorf("failed to gather entropy: %w", err)
	}

	entropy := hex.EncodeToString(random) + environmentFingerprint() + fmt.Sprintf("%d", time.Now().UnixNano())

	// sessionId = SHA256(entropy) 前 16 個十六進制字元
	digest := sha256.Sum256([]byte(entropy))
	sessionID := hex.EncodeToString(digest[:])[:constants.SessionIDHexLength]

	encSalt := make([]byte, constants.SessionSaltLength)
	if _, err := io.ReadFull(rand.Reader, encSalt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	macSalt := make([]byte, constants.SessionSaltLength)
	if _, err := io.ReadFull(rand.Reader, macSalt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	encryptionKey := pbkdf2.Key([]byte(entropy), encSalt, constants.PBKDF2Iterations, constants.SessionKeyLength, sha256.New)
	hmacKey := pbkdf2.Key([]byte(entropy+"_hmac"), macSalt, constants.PBKDF2Iterations, constants.SessionKeyLength, sha256.New)

	return &KeyMaterial{
		EncryptionKey: hex.EncodeToString(encryptionKey),
		HmacKey:       hex.EncodeToString(hmacKey),
		SessionID:     sessionID,
		DerivedAt:     time.Now(),
	}, nil
}

// DeriveAdminKeys 從管理員憑證確定性派生解密密鑰
// credentialEntropy = username ∥ password ∥ sessionId，固定公開 salt。
// 錯誤的憑證會安靜地產生錯誤的密鑰，由後續的 HMAC 驗證攔截，
// 這裡不做任何認證判斷。
func DeriveAdminKeys(username, password, sessionID string) *KeyMaterial {
	credentialEntropy := username + password + sessionID

	encryptionKey := pbkdf2.Key([]byte(credentialEntropy), adminEncryptionSalt, constants.PBKDF2Iterations, constants.SessionKeyLength, sha256.New)
	hmacKey := pbkdf2.Key([]byte(credentialEntropy+"_hmac"), adminHmacSalt, constants.PBKDF2Iterations, constants.SessionKeyLength, sha256.New)

	return &KeyMaterial{
		EncryptionKey: hex.EncodeToString(encryptionKey),
		HmacKey:       hex.EncodeToString(hmacKey),
		SessionID:     sessionID,
		DerivedAt:     time.Now(),
	}
}

// environmentFingerprint 收集本地環境信號作為額外熵
func environmentFingerprint() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	zone, offset := time.Now().Zone()

	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		hostname,
		runtime.GOOS,
		runtime.GOARCH,
		zone,
		offset,
		os.Getpid(),
	)
}
