package server

import (
	"time"

	"report-gateway/internal/notify"
	"report-gateway/internal/platform/config"

	"github.com/gin-gonic/gin"
)

// streamEvents 使用 SSE 推送通報事件通知
// 事件只含不透明的 ID 與時間，內容一律透過解密端點取得。
func streamEvents(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		setupSSEHeaders(c)

		events, cancel := hub.Subscribe()
		defer cancel()

		handleSSELoop(c, events)
	}
}

// setupSSEHeaders 設置 SSE headers
func setupSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"status": "ok"})
	c.Writer.Flush()
}

// handleSSELoop 處理 SSE 循環
func handleSSELoop(c *gin.Context, events <-chan notify.Event) {
	cfg := config.Get()
	heartbeatInterval := 15
	if cfg != nil && cfg.Limits.SSE.HeartbeatInterval > 0 {
		heartbeatInterval = cfg.Limits.SSE.HeartbeatInterval
	}

	ticker := time.NewTicker(time.Duration(heartbeatInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": time.Now().Unix()})
			c.Writer.Flush()

		case event, ok := <-events:
			if !ok {
				// Hub 已關閉
				return
			}
			c.SSEvent("event", gin.H{
				"type":      event.Type,
				"id":        event.ID,
				"timestamp": event.Timestamp,
			})
			c.Writer.Flush()
		}
	}
}
