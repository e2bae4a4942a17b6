package httputil

// API 錯誤代碼常數.
const (
	// 1000-1999: 認證相關錯誤 (401 Unauthorized).
	ErrorCodeMissingAuthHeader = 1001
	ErrorCodeInvalidAuthFormat = 1002
	ErrorCodeInvalidCredential = 1003

	// 2000-2999: 參數相關錯誤 (400 Bad Request).
	ErrorCodeInvalidParameter = 2001

	// 3000-3999: 加密相關錯誤.
	ErrorCodeIntegrityFailed  = 3001 // HMAC 驗證失敗 (400).
	ErrorCodeDecryptionFailed = 3002 // 解密失敗 (400).
	ErrorCodeFileTooLarge     = 3003 // 檔案超過加密上限 (413).
	ErrorCodeSessionExpired   = 3004 // 加密會話已過期 (410).

	// 4000-4999: 資源相關錯誤 (404 Not Found).
	ErrorCodeRecordNotFound = 4001

	// 5000-5999: 處理相關錯誤 (500 Internal Server Error).
	ErrorCodeProcessingFailed = 5001
)
