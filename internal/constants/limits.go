package constants

// HTTP 請求相關常數
const (
	// 默認值（可被配置覆蓋）
	DefaultMaxRequestBodySize = 10 << 20 // 10MB
	DefaultMaxMultipartMemory = 32 << 20 // 32MB（附件上傳需要較大的緩衝）
	DefaultRequestTimeout     = 30       // 秒
)

// 分頁相關常數
const (
	DefaultPageSize    = 20
	DefaultMaxPageSize = 100
	MinPageSize        = 1
)

// 通報內容相關常數
const (
	DefaultMaxMessageLength  = 10000
	DefaultMaxCategoryLength = 100
	DefaultMaxURLLength      = 2048
)

// Rate Limiting 默認值
const (
	DefaultRateLimitPerMinute   = 100
	DefaultReportRateLimit      = 10
	DefaultDecryptRateLimit     = 30
	DefaultSSERateLimit         = 5
	RateLimitCleanupIntervalMin = 10 // 分鐘
)

// SSE 連接相關常數
const (
	DefaultSSEMaxConnectionsPerIP   = 3
	DefaultSSEMaxTotalConnections   = 1000
	DefaultSSEMinConnectionInterval = 10 // 秒
	DefaultSSEHeartbeatInterval     = 15 // 秒
	SSEConnectionCleanupIntervalMin = 10 // 分鐘
	NotifyChannelBuffer             = 10
)

// 加密核心相關常數
const (
	SessionKeyLength    = 32     // 256 bits
	SessionIVLength     = 16     // 128 bits
	SessionSaltLength   = 16     // PBKDF2 鹽長度
	BundleSaltLength    = 32     // 每個密文包的隨機鹽（256 bits）
	SessionIDHexLength  = 16     // sessionId 為 SHA256 前 16 個十六進制字元
	PBKDF2Iterations    = 100000 // PBKDF2 迭代次數
	CipherBundleVersion = "1.0"
	KeyDerivationAlgo   = "PBKDF2-SHA256"
)

// 會話生命週期相關常數
const (
	DefaultInactivityTimeoutMin = 30 // 無活動逾時（分鐘）
	DefaultMaxSessionHours      = 2  // 會話最長存活時間（小時）
	DefaultRotationCheckMin     = 5  // 輪換檢查間隔（分鐘）
	DefaultMaxKeyAgeMin         = 15 // 密鑰最大使用時間（分鐘）
)

// 檔案加密相關常數
const (
	DefaultMaxFileSize    = 100 << 20 // 100 MiB
	FileChunkSize         = 1 << 20   // 每塊 1 MiB 的 base64 文字
	FileChunkDelimiter    = "|"       // base64 字母表中不會出現的分隔符
	ProgressReportBuckets = 10        // 粗粒度進度回報的分段數
)

// MongoDB 查詢相關常數
const (
	DefaultMongoQueryLimit = 20
	MaxMongoQueryLimit     = 100
)
