package report

// SubmitReportRequest 提交通報請求.
type SubmitReportRequest struct {
	Message       string                 `json:"message"`
	Category      string                 `json:"category"`
	PhotoURL      string                 `json:"photo_url,omitempty"`
	VideoURL      string                 `json:"video_url,omitempty"`
	VideoMetadata map[string]interface{} `json:"video_metadata,omitempty"`
}

// ReportSummary 通報列表項（不含密文內容）.
type ReportSummary struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
	CreatedAt int64  `json:"created_at"`
}

// DecryptedReport 解密後的通報內容，僅透過解密端點回傳.
type DecryptedReport struct {
	ID            string                 `json:"id"`
	Message       string                 `json:"message"`
	Category      string                 `json:"category"`
	PhotoURL      string                 `json:"photo_url,omitempty"`
	VideoURL      string                 `json:"video_url,omitempty"`
	VideoMetadata map[string]interface{} `json:"video_metadata,omitempty"`
	SessionID     string                 `json:"session_id"`
	Timestamp     int64                  `json:"timestamp"`
}

// UpdateStatusRequest 更新通報狀態請求.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}
