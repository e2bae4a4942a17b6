package report

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"report-gateway/internal/httputil"
	"report-gateway/internal/notify"
	"report-gateway/internal/platform/config"
	"report-gateway/internal/platform/logger"
	"report-gateway/internal/platform/metrics"
	"report-gateway/internal/platform/middleware"
	"report-gateway/internal/security/audit"
	"report-gateway/internal/security/filecrypto"
	"report-gateway/internal/security/keyderive"
	"report-gateway/internal/security/reportcrypto"
	"report-gateway/internal/security/session"
	"report-gateway/internal/storage/database"
	storereport "report-gateway/internal/storage/database/report"

	"github.com/gin-gonic/gin"
)

// 解密失敗時回傳的佔位內容，絕不回傳部分明文.
const decryptErrorPlaceholder = "[DECRYPTION ERROR]"

// Handler 通報處理器.
type Handler struct {
	repos    *database.Repositories
	sessions *session.Manager
	metrics  *metrics.Registry
	audit    *audit.AuditService
	hub      *notify.Hub
}

// NewHandler 創建通報處理器.
func NewHandler(repos *database.Repositories, sessions *session.Manager, reg *metrics.Registry, auditSvc *audit.AuditService, hub *notify.Hub) *Handler {
	return &Handler{
		repos:    repos,
		sessions: sessions,
		metrics:  reg,
		audit:    auditSvc,
		hub:      hub,
	}
}

// workingKeys 取得提交端工作密鑰
// 會話管理器只負責生命週期與 sessionId；bundle 的加密密鑰
// 由管理員憑證加上該 sessionId 確定性推導，後台才能重新推導解密。
func (h *Handler) workingKeys(sessionID string) *keyderive.KeyMaterial {
	cfg := config.Get()
	return keyderive.DeriveAdminKeys(cfg.Security.Admin.Username, cfg.Security.Admin.Password, sessionID)
}

// SubmitReport 提交匿名通報：驗證、消毒、加密後存儲.
func (h *Handler) SubmitReport(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "無效的請求格式")
		return
	}

	if err := middleware.ValidateReportMessage(req.Message); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := middleware.ValidateReportCategory(req.Category); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := middleware.ValidateAttachmentURL(req.PhotoURL); err != nil {
		httputil.ValidationError(c, "photo_url", err.Error())
		return
	}
	if err := middleware.ValidateAttachmentURL(req.VideoURL); err != nil {
		httputil.ValidationError(c, "video_url", err.Error())
		return
	}

	// 取得（或建立）加密會話，提交視為一次活動
	sessionKeys, err := h.sessions.EnsureSession()
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}
	defer sessionKeys.Zero()
	h.sessions.Touch()

	keys := h.workingKeys(sessionKeys.SessionID)
	defer keys.Zero()

	fields := reportcrypto.ReportFields{
		Message:       middleware.SanitizeInput(req.Message),
		Category:      middleware.SanitizeInput(req.Category),
		PhotoURL:      req.PhotoURL,
		VideoURL:      req.VideoURL,
		VideoMetadata: req.VideoMetadata,
	}

	start := time.Now()
	bundle, err := reportcrypto.EncryptReport(fields, *keys)
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}
	h.metrics.Report.ReportEncrypted(time.Since(start))

	doc := &storereport.Report{Bundle: *bundle}
	if err := h.repos.Report.Create(c.Request.Context(), doc); err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	reportID := doc.ID.Hex()

	ctx := c.Request.Context()
	h.audit.LogReportSubmitted(ctx, reportID, bundle.SessionID, bundle.EncryptedCategory)
	logger.Info(ctx, "通報已加密存儲",
		logger.WithReportID(reportID),
		logger.WithSessionID(bundle.SessionID),
		logger.WithAction("submit_report"))

	// 推送僅含 ID 與時間的不透明事件
	h.hub.Publish(notify.EventReportSubmitted, reportID)

	c.JSON(http.StatusCreated, httputil.NewSuccessResponse(httputil.ReportSubmittedSuccess, gin.H{
		"id":         reportID,
		"session_id": bundle.SessionID,
		"timestamp":  bundle.Timestamp,
	}))
}

// ListReports 列出通報摘要（管理端）.
func (h *Handler) ListReports(c *gin.Context) {
	limit := database.ValidateLimit(parseIntQuery(c, "limit", 0))
	skip := database.ValidateSkip(parseIntQuery(c, "skip", 0))

	filter := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		if !storereport.IsValidStatus(status) {
			httputil.BadRequest(c, "無效的狀態")
			return
		}
		filter["status"] = status
	}

	ctx := c.Request.Context()
	reports, err := h.repos.Report.List(ctx, filter, int64(limit), int64(skip))
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	total, err := h.repos.Report.Count(ctx, filter)
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	summaries := make([]ReportSummary, len(reports))
	for i, r := range reports {
		summaries[i] = ReportSummary{
			ID:        r.ID.Hex(),
			Status:    r.Status,
			SessionID: r.SessionID,
			Timestamp: r.Bundle.Timestamp,
			CreatedAt: r.CreatedAt.Unix(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": httputil.DataRetrieved,
		"data":    summaries,
		"total":   total,
	})
}

// GetReport 取得單筆通報的不透明 bundle（管理端）.
func (h *Handler) GetReport(c *gin.Context) {
	reportID := c.Param("id")
	if err := middleware.ValidateReportID(reportID); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	r, err := h.repos.Report.GetByID(c.Request.Context(), reportID)
	if err != nil {
		httputil.NotFoundError(c, httputil.RecordNotFound)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataRetrieved, gin.H{
		"id":         r.ID.Hex(),
		"status":     r.Status,
		"bundle":     r.Bundle,
		"created_at": r.CreatedAt.Unix(),
	}))
}

// DecryptReport 重新推導密鑰並解密通報（管理端）.
func (h *Handler) DecryptReport(c *gin.Context) {
	reportID := c.Param("id")
	if err := middleware.ValidateReportID(reportID); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	r, err := h.repos.Report.GetByID(ctx, reportID)
	if err != nil {
		httputil.NotFoundError(c, httputil.RecordNotFound)
		return
	}

	// 以 bundle 所記錄的 sessionId 重新推導當時的工作密鑰
	keys := h.workingKeys(r.Bundle.SessionID)
	defer keys.Zero()

	fields, err := reportcrypto.DecryptReport(&r.Bundle, *keys)
	if err != nil {
		h.handleDecryptError(c, err, reportID, r.Bundle.SessionID)
		return
	}

	h.audit.LogDecryptAttempt(ctx, reportID, r.Bundle.SessionID, "success")
	h.metrics.Report.DecryptAttempt("success")

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataDecrypted, DecryptedReport{
		ID:            r.ID.Hex(),
		Message:       fields.Message,
		Category:      fields.Category,
		PhotoURL:      fields.PhotoURL,
		VideoURL:      fields.VideoURL,
		VideoMetadata: fields.VideoMetadata,
		SessionID:     r.Bundle.SessionID,
		Timestamp:     r.Bundle.Timestamp,
	}))
}

// UpdateReportStatus 更新通報處理狀態（管理端）.
func (h *Handler) UpdateReportStatus(c *gin.Context) {
	reportID := c.Param("id")
	if err := middleware.ValidateReportID(reportID); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "無效的請求格式")
		return
	}
	if !storereport.IsValidStatus(req.Status) {
		httputil.BadRequest(c, "無效的狀態")
		return
	}

	if err := h.repos.Report.UpdateStatus(c.Request.Context(), reportID, req.Status); err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.Success("Status updated successfully"))
}

// UploadAttachment 上傳附件：大小政策先於任何加密工作.
func (h *Handler) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputil.BadRequest(c, "缺少 file 欄位")
		return
	}

	reportID := c.PostForm("report_id")
	if reportID != "" {
		if err := middleware.ValidateReportID(reportID); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	meta := middleware.GetRequestMetadataFromGin(c)

	// 先用宣告大小檢查，超限時完全不讀取內容
	if rejection := filecrypto.CheckSize(fileHeader.Size); rejection != nil {
		h.metrics.Report.OversizeRejected()
		h.audit.LogOversizeRejected(ctx, meta.IPAddress, rejection.ActualSize, rejection.MaxSize)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     httputil.FileTooLarge,
			"code":      httputil.ErrorCodeFileTooLarge,
			"rejection": rejection,
		})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	sessionKeys, err := h.sessions.EnsureSession()
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}
	defer sessionKeys.Zero()
	h.sessions.Touch()

	keys := h.workingKeys(sessionKeys.SessionID)
	defer keys.Zero()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	bundle, rejection, err := filecrypto.EncryptFile(fileBytes, mimeType, fileHeader.Filename, *keys, func(done, total int) {
		logger.Debug(ctx, "附件加密進度",
			logger.WithSessionID(keys.SessionID),
			logger.WithDetails(map[string]interface{}{"done": done, "total": total}))
	})
	if rejection != nil {
		h.metrics.Report.OversizeRejected()
		h.audit.LogOversizeRejected(ctx, meta.IPAddress, rejection.ActualSize, rejection.MaxSize)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     httputil.FileTooLarge,
			"code":      httputil.ErrorCodeFileTooLarge,
			"rejection": rejection,
		})
		return
	}
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	doc := &storereport.Attachment{
		ReportID: reportID,
		Bundle:   *bundle,
	}
	if err := h.repos.Attachment.Create(ctx, doc); err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	attachmentID := doc.ID.Hex()
	h.metrics.Report.AttachmentStored()
	h.audit.LogAttachmentEncrypted(ctx, attachmentID, bundle.SessionID, bundle.Metadata.OriginalSize, bundle.Metadata.ChunkCount)
	h.hub.Publish(notify.EventAttachmentStored, attachmentID)

	c.JSON(http.StatusCreated, httputil.NewSuccessResponse(httputil.AttachmentStoredSuccess, gin.H{
		"id":          attachmentID,
		"session_id":  bundle.SessionID,
		"chunk_count": bundle.Metadata.ChunkCount,
	}))
}

// DecryptAttachment 解密附件並回傳 base64 內容（管理端）.
func (h *Handler) DecryptAttachment(c *gin.Context) {
	attachmentID := c.Param("id")
	if err := middleware.ValidateReportID(attachmentID); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	a, err := h.repos.Attachment.GetByID(ctx, attachmentID)
	if err != nil {
		httputil.NotFoundError(c, httputil.RecordNotFound)
		return
	}

	keys := h.workingKeys(a.Bundle.SessionID)
	defer keys.Zero()

	content, err := filecrypto.DecryptFile(&a.Bundle, *keys)
	if err != nil {
		h.handleDecryptError(c, err, attachmentID, a.Bundle.SessionID)
		return
	}

	h.audit.LogDecryptAttempt(ctx, attachmentID, a.Bundle.SessionID, "success")
	h.metrics.Report.DecryptAttempt("success")

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataDecrypted, gin.H{
		"content":  content, // base64 編碼的原始檔案內容
		"metadata": a.Bundle.Metadata,
	}))
}

// SessionStats 會話指標快照（管理端）.
func (h *Handler) SessionStats(c *gin.Context) {
	snapshot := h.sessions.Metrics()

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataRetrieved, gin.H{
		"active":             h.sessions.HasActiveSession(),
		"current_session_id": h.sessions.CurrentSessionID(),
		"metrics":            snapshot,
	}))
}

// handleDecryptError 將解密錯誤映射為統一的 422 回應.
// 任何失敗都只回傳佔位內容，不洩漏部分明文或密鑰相關細節。
func (h *Handler) handleDecryptError(c *gin.Context, err error, recordID, sessionID string) {
	ctx := c.Request.Context()

	var integrityErr *reportcrypto.IntegrityError
	var decryptionErr *reportcrypto.DecryptionError

	switch {
	case errors.As(err, &integrityErr):
		h.audit.LogDecryptAttempt(ctx, recordID, sessionID, "integrity_failure")
		h.metrics.Report.DecryptAttempt("integrity_failure")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   decryptErrorPlaceholder,
			"code":    httputil.ErrorCodeIntegrityFailed,
			"message": integrityErr.Error(),
		})
	case errors.As(err, &decryptionErr):
		h.audit.LogDecryptAttempt(ctx, recordID, sessionID, "decryption_failure")
		h.metrics.Report.DecryptAttempt("decryption_failure")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   decryptErrorPlaceholder,
			"code":    httputil.ErrorCodeDecryptionFailed,
			"message": decryptionErr.Error(),
		})
	default:
		httputil.InternalServerError(c, err)
	}
}

// parseIntQuery 解析整數查詢參數.
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
