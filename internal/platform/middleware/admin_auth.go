package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"report-gateway/internal/platform/config"
	"report-gateway/internal/security/audit"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 管理員驗證中間件
// 解密端點只允許持有管理員憑證的請求。憑證比對使用常數時間比較，
// 避免透過響應時間差推測帳號或密碼。
type AdminAuthMiddleware struct {
	username string
	password string
	enabled  bool
	audit    *audit.AuditService
}

// NewAdminAuthMiddleware 創建管理員驗證中間件
func NewAdminAuthMiddleware(auditSvc *audit.AuditService) *AdminAuthMiddleware {
	cfg := config.Get()
	m := &AdminAuthMiddleware{audit: auditSvc}
	if cfg != nil {
		m.username = cfg.Security.Admin.Username
		m.password = cfg.Security.Admin.Password
		m.enabled = m.username != "" && m.password != ""
	}
	return m
}

// GinMiddleware Gin HTTP 中間件
// 使用方式：adminGroup.Use(adminAuth.GinMiddleware())
func (m *AdminAuthMiddleware) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 未設定管理員憑證時拒絕所有請求，而非放行
		if !m.enabled {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "管理員憑證未設定"})
			c.Abort()
			return
		}

		username, password, ok := extractCredentials(c)
		if !ok {
			m.logFailure(c, "missing credentials")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "未提供管理員憑證"})
			c.Abort()
			return
		}

		if !m.verify(username, password) {
			m.logFailure(c, "invalid credentials")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "管理員憑證錯誤"})
			c.Abort()
			return
		}

		c.Set("admin_user", username)
		c.Next()
	}
}

// verify 常數時間比對憑證
func (m *AdminAuthMiddleware) verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	return userOK && passOK
}

// logFailure 記錄驗證失敗到審計
func (m *AdminAuthMiddleware) logFailure(c *gin.Context, reason string) {
	if m.audit == nil {
		return
	}
	m.audit.LogAuthenticationFailure(c.Request.Context(), c.ClientIP(), reason)
}

// extractCredentials 從請求取出憑證
// 支援兩種方式：HTTP Basic Auth，或 X-Admin-Username / X-Admin-Password 頭部。
func extractCredentials(c *gin.Context) (string, string, bool) {
	if username, password, ok := c.Request.BasicAuth(); ok {
		return username, password, true
	}

	username := strings.TrimSpace(c.GetHeader("X-Admin-Username"))
	password := c.GetHeader("X-Admin-Password")
	if username != "" && password != "" {
		return username, password, true
	}

	return "", "", false
}
