package reportcrypto

import "fmt"

// IntegrityError HMAC 驗證失敗
// 表示 bundle 被篡改，或使用了錯誤的密鑰。一律中止解密，
// 絕不回傳任何部分解密的內容，也不自動重試。
type IntegrityError struct {
	SessionID string // bundle 攜帶的 sessionId，僅用於日誌定位
	Context   string // 發生位置（report bundle、file bundle 等）
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s (session %s): possibly tampered or wrong key", e.Context, e.SessionID)
}

// DecryptionError HMAC 通過但欄位明文未通過合理性檢查
// 用於區分「驗證失敗」與「解出來但是是亂碼」兩種情況。
// 錯誤訊息只含欄位名與原因，絕不含密鑰或明文。
type DecryptionError struct {
	Field  string // 欄位名（message、category...）
	Reason string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed for field %q: %s", e.Field, e.Reason)
}
