package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// AuditService 審計服務
// 記錄通報加解密與會話生命週期的安全事件。事件內容絕不包含
// 密鑰材料或任何明文欄位，sessionId 與通報 ID 可安全記錄。
type AuditService struct {
	enabled bool
	logger  *log.Logger
}

// NewAuditService 創建審計服務
func NewAuditService(enabled bool) *AuditService {
	return &AuditService{
		enabled: enabled,
		logger:  log.Default(),
	}
}

// AuditEvent 審計事件
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	ReportID  string                 `json:"report_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Action    string                 `json:"action"`
	Result    string                 `json:"result"` // success, failure
	Details   map[string]interface{} `json:"details,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
}

// LogReportSubmitted 記錄通報提交（已加密後）
func (a *AuditService) LogReportSubmitted(ctx context.Context, reportID, sessionID, category string) {
	if !a.enabled {
		return
	}

	// category 在儲存側已是密文，這裡只記錄其長度
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "report_submitted",
		ReportID:  reportID,
		SessionID: sessionID,
		Action:    "submit_report",
		Result:    "success",
		Details: map[string]interface{}{
			"encrypted_category_len": len(category),
		},
	}

	a.log(event)
}

// LogAttachmentEncrypted 記錄附件加密
func (a *AuditService) LogAttachmentEncrypted(ctx context.Context, attachmentID, sessionID string, originalSize int64, chunkCount int) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "attachment_encrypted",
		ReportID:  attachmentID,
		SessionID: sessionID,
		Action:    "encrypt_attachment",
		Result:    "success",
		Details: map[string]interface{}{
			"original_size": originalSize,
			"chunk_count":   chunkCount,
		},
	}

	a.log(event)
}

// LogOversizeRejected 記錄超大檔案被拒
func (a *AuditService) LogOversizeRejected(ctx context.Context, ipAddress string, actualSize, maxSize int64) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "oversize_rejected",
		Action:    "encrypt_attachment",
		Result:    "rejected",
		IPAddress: ipAddress,
		Details: map[string]interface{}{
			"actual_size": actualSize,
			"max_size":    maxSize,
		},
	}

	a.log(event)
}

// LogDecryptAttempt 記錄解密嘗試
// result 為 success / integrity_failure / decryption_failure。
// 失敗原因只記分類，不記任何密文或明文內容。
func (a *AuditService) LogDecryptAttempt(ctx context.Context, reportID, sessionID, result string) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "decrypt_attempt",
		ReportID:  reportID,
		SessionID: sessionID,
		Action:    "decrypt_report",
		Result:    result,
	}

	a.log(event)
}

// LogSessionRotated 記錄密鑰輪換
func (a *AuditService) LogSessionRotated(ctx context.Context, oldSessionID, newSessionID string) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "session_rotated",
		SessionID: newSessionID,
		Action:    "rotate_keys",
		Result:    "success",
		Details: map[string]interface{}{
			"previous_session_id": oldSessionID,
		},
	}

	a.log(event)
}

// LogSessionCleared 記錄會話銷毀
func (a *AuditService) LogSessionCleared(ctx context.Context, sessionID, reason string, duration time.Duration) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "session_cleared",
		SessionID: sessionID,
		Action:    "clear_session",
		Result:    "success",
		Details: map[string]interface{}{
			"reason":           reason,
			"duration_seconds": duration.Seconds(),
		},
	}

	a.log(event)
}

// LogAuthenticationFailure 記錄管理員認證失敗
func (a *AuditService) LogAuthenticationFailure(ctx context.Context, ipAddress, reason string) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "authentication",
		Action:    "authenticate_admin",
		Result:    "failure",
		IPAddress: ipAddress,
		Details: map[string]interface{}{
			"reason": reason,
		},
	}

	a.log(event)
}

// LogRateLimitExceeded 記錄速率限制超過
func (a *AuditService) LogRateLimitExceeded(ctx context.Context, ipAddress, endpoint string) {
	if !a.enabled {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "rate_limit",
		Action:    "api_request",
		Result:    "blocked",
		IPAddress: ipAddress,
		Details: map[string]interface{}{
			"endpoint": endpoint,
			"reason":   "rate_limit_exceeded",
		},
	}

	a.log(event)
}

// log 記錄審計事件
func (a *AuditService) log(event AuditEvent) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		a.logger.Printf("[AUDIT-ERROR] Failed to marshal event: %v", err)
		return
	}

	a.logger.Printf("[AUDIT] %s", string(jsonData))
}

// IsEnabled 檢查審計是否啟用
func (a *AuditService) IsEnabled() bool {
	return a.enabled
}
