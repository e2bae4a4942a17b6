package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"report-gateway/internal/constants"
	"report-gateway/internal/platform/config"

	"github.com/gin-gonic/gin"
)

// ValidationError 驗證錯誤
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateReportMessage 驗證通報內容
func ValidateReportMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("通報內容不能為空")
	}

	cfg := config.Get()
	maxLength := constants.DefaultMaxMessageLength
	if cfg != nil && cfg.Limits.Report.MaxMessageLength > 0 {
		maxLength = cfg.Limits.Report.MaxMessageLength
	}

	if len(message) > maxLength {
		return fmt.Errorf("通報內容超過最大長度限制 (%d 字符)", maxLength)
	}

	// 防止 NULL 字符注入
	if strings.Contains(message, "\x00") {
		return fmt.Errorf("通報內容包含非法字符")
	}

	return nil
}

// ValidateReportCategory 驗證通報分類
func ValidateReportCategory(category string) error {
	trimmed := strings.TrimSpace(category)

	if trimmed == "" {
		return fmt.Errorf("通報分類不能為空")
	}

	cfg := config.Get()
	maxLength := constants.DefaultMaxCategoryLength
	if cfg != nil && cfg.Limits.Report.MaxCategoryLength > 0 {
		maxLength = cfg.Limits.Report.MaxCategoryLength
	}

	if len(category) > maxLength {
		return fmt.Errorf("通報分類超過最大長度限制 (%d 字符)", maxLength)
	}

	// 防止 NULL 字符注入
	if strings.Contains(category, "\x00") {
		return fmt.Errorf("通報分類包含非法字符")
	}

	return nil
}

// ValidateAttachmentURL 驗證附件 URL（相片、影片）
// 空字串合法，表示該通報沒有附件。
func ValidateAttachmentURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	cfg := config.Get()
	maxLength := constants.DefaultMaxURLLength
	if cfg != nil && cfg.Limits.Report.MaxURLLength > 0 {
		maxLength = cfg.Limits.Report.MaxURLLength
	}

	if len(rawURL) > maxLength {
		return fmt.Errorf("附件 URL 超過最大長度限制 (%d 字符)", maxLength)
	}

	if strings.Contains(rawURL, "\x00") {
		return fmt.Errorf("附件 URL 包含非法字符")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("附件 URL 格式錯誤")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" && parsed.Scheme != "" {
		return fmt.Errorf("附件 URL 協議不支援")
	}

	return nil
}

// ValidateReportID 驗證通報 ID 格式（MongoDB ObjectID）
func ValidateReportID(reportID string) error {
	if strings.TrimSpace(reportID) == "" {
		return fmt.Errorf("通報 ID 不能為空")
	}

	// MongoDB ObjectID 長度為 24 個十六進制字符
	if len(reportID) != 24 {
		return fmt.Errorf("通報 ID 格式錯誤")
	}

	// 只允許十六進制字符
	for _, c := range reportID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return fmt.Errorf("通報 ID 格式錯誤")
		}
	}

	return nil
}

// ValidateSessionID 驗證加密會話 ID 格式（16 個十六進制字符）
func ValidateSessionID(sessionID string) error {
	if len(sessionID) != constants.SessionIDHexLength {
		return fmt.Errorf("會話 ID 格式錯誤")
	}

	for _, c := range sessionID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return fmt.Errorf("會話 ID 格式錯誤")
		}
	}

	return nil
}

// SanitizeInput 消毒輸入（移除危險字符）
func SanitizeInput(input string) string {
	// 移除 NULL 字符
	input = strings.ReplaceAll(input, "\x00", "")

	// 移除控制字符（除了換行和 Tab）
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// RequestSizeLimiter 限制請求體大小的中間件
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("請求體過大，最大允許 %d 字節", maxSize),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
