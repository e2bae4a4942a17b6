package server

import (
	"time"

	"report-gateway/internal/notify"
	"report-gateway/internal/platform/config"
	"report-gateway/internal/platform/health"
	"report-gateway/internal/platform/metrics"
	"report-gateway/internal/platform/middleware"
	"report-gateway/internal/report"
	"report-gateway/internal/security/audit"
	"report-gateway/internal/security/session"
	"report-gateway/internal/storage/database"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由所需的服務集合.
type Dependencies struct {
	Repos    *database.Repositories
	Sessions *session.Manager
	Metrics  *metrics.Registry
	Audit    *audit.AuditService
	Hub      *notify.Hub
}

// securityHeadersMiddleware 添加安全標頭
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止點擊劫持
		c.Header("X-Frame-Options", "DENY")

		// 防止 MIME 類型嗅探
		c.Header("X-Content-Type-Options", "nosniff")

		// 啟用 XSS 保護
		c.Header("X-XSS-Protection", "1; mode=block")

		// 內容安全策略
		c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self'; connect-src 'self'; frame-ancestors 'none';")

		// 推薦政策
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// 權限政策
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		c.Next()
	}
}

// Router 設定路由.
func Router(deps *Dependencies) *gin.Engine {
	r := gin.Default()

	// 添加安全的 CORS 中間件
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// 只允許特定的來源（生產環境應該從配置文件讀取）
		allowedOrigins := map[string]bool{
			"http://localhost:3000":  true, // 開發環境前端
			"http://localhost:8080":  true, // 本地測試
			"http://127.0.0.1:5500":  true, // Live Server
			"http://127.0.0.1:8080":  true, // 本地測試 (127.0.0.1)
			"http://localhost:5500":  true, // Live Server (localhost)
			"https://yourdomain.com": true, // 生產環境（請修改為實際域名）
		}

		if allowedOrigins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Admin-Username, X-Admin-Password")
		c.Header("Access-Control-Max-Age", "86400") // 預檢請求緩存 24 小時

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 添加請求 ID 中間件（最優先）
	r.Use(middleware.RequestIDMiddleware())

	// 添加安全標頭中間件
	r.Use(securityHeadersMiddleware())

	// 添加請求元數據中間件（提取 IP、User-Agent）
	r.Use(middleware.RequestMetadataMiddleware())

	// 從配置讀取限制參數
	cfg := config.Get()

	// 添加請求大小限制（防止大文件攻擊）
	maxMemory := int64(10 << 20) // 默認 10MB
	if cfg != nil && cfg.Limits.Request.MaxMultipartMemory > 0 {
		maxMemory = cfg.Limits.Request.MaxMultipartMemory
	}
	r.MaxMultipartMemory = maxMemory

	// 創建 Rate Limiter
	defaultLimit := 100
	if cfg != nil && cfg.Limits.RateLimiting.DefaultPerMinute > 0 {
		defaultLimit = cfg.Limits.RateLimiting.DefaultPerMinute
	}
	rateLimiter := middleware.NewPerEndpointRateLimiter(defaultLimit, time.Minute, deps.Audit)

	// 為不同端點設置不同的速率限制
	if cfg != nil && cfg.Limits.RateLimiting.Enabled {
		if cfg.Limits.RateLimiting.ReportsPerMin > 0 {
			rateLimiter.SetLimit("/api/v1/reports", cfg.Limits.RateLimiting.ReportsPerMin, time.Minute)
		}
		if cfg.Limits.RateLimiting.DecryptPerMin > 0 {
			rateLimiter.SetLimit("/api/v1/reports/:id/decrypt", cfg.Limits.RateLimiting.DecryptPerMin, time.Minute)
		}
		if cfg.Limits.RateLimiting.SSEPerMin > 0 {
			rateLimiter.SetLimit("/api/v1/reports/stream", cfg.Limits.RateLimiting.SSEPerMin, time.Minute)
		}
	}

	// 應用 Rate Limiting 中間件
	r.Use(rateLimiter.Middleware())

	// 創建 SSE 連接限制器
	sseMaxPerIP := 3
	sseInterval := 10
	sseMaxTotal := 1000
	if cfg != nil {
		if cfg.Limits.SSE.MaxConnectionsPerIP > 0 {
			sseMaxPerIP = cfg.Limits.SSE.MaxConnectionsPerIP
		}
		if cfg.Limits.SSE.MinConnectionInterval > 0 {
			sseInterval = cfg.Limits.SSE.MinConnectionInterval
		}
		if cfg.Limits.SSE.MaxTotalConnections > 0 {
			sseMaxTotal = cfg.Limits.SSE.MaxTotalConnections
		}
	}
	sseLimiter := middleware.NewSSEConnectionLimiter(sseMaxPerIP, time.Duration(sseInterval)*time.Second, sseMaxTotal)

	// 創建處理器
	healthHandler := health.NewHealthHandler()
	reportHandler := report.NewHandler(deps.Repos, deps.Sessions, deps.Metrics, deps.Audit, deps.Hub)
	adminAuth := middleware.NewAdminAuthMiddleware(deps.Audit)

	// health check
	r.GET("/health", healthHandler.HealthCheck)

	// prometheus 指標
	r.GET("/metrics", deps.Metrics.Handler())

	// 匿名提交端點
	r.POST("/api/v1/reports", reportHandler.SubmitReport)
	r.POST("/api/v1/attachments", reportHandler.UploadAttachment)

	// 管理端點（靜態憑證驗證）
	admin := r.Group("/api/v1", adminAuth.GinMiddleware())
	{
		admin.GET("/reports", reportHandler.ListReports)
		admin.GET("/reports/:id", reportHandler.GetReport)
		admin.POST("/reports/:id/decrypt", reportHandler.DecryptReport)
		admin.PUT("/reports/:id/status", reportHandler.UpdateReportStatus)
		admin.POST("/attachments/:id/decrypt", reportHandler.DecryptAttachment)
		admin.GET("/session/stats", reportHandler.SessionStats)
	}

	// SSE endpoint - 應用額外的連接限制
	r.GET("/api/v1/reports/stream", sseLimiter.Middleware(), streamEvents(deps.Hub))

	return r
}
