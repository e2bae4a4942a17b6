package notify

import (
	"sync"
	"time"

	"report-gateway/internal/constants"
)

// 事件類型常數.
const (
	EventReportSubmitted  = "report_submitted"
	EventAttachmentStored = "attachment_stored"
)

// Event 推送給管理後台的通知事件
// 只攜帶不透明的識別資訊，絕不包含任何通報內容（密文也不帶）。
type Event struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Hub 行程內的 SSE 扇出中心
// Publish 對慢速訂閱者直接丟棄事件而不阻塞，SSE 是輕量通知通道，
// 錯過的事件由列表輪詢補齊。
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
	closed      bool
}

// NewHub 創建通知中心
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = constants.NotifyChannelBuffer
	}
	return &Hub{
		subscribers: make(map[int]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe 訂閱事件
// 回傳事件通道與取消函數；取消後通道會被關閉。
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++

	ch := make(chan Event, h.bufferSize)
	h.subscribers[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish 發布事件給所有訂閱者
func (h *Hub) Publish(eventType, id string) {
	event := Event{
		Type:      eventType,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// 訂閱者跟不上就丟棄，不阻塞發布側
		}
	}
}

// SubscriberCount 當前訂閱者數量
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close 關閉中心並斷開所有訂閱者
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
