package session

import (
	"fmt"
	"sync"
	"time"

	"report-gateway/internal/constants"
	"report-gateway/internal/security/keyderive"

	"github.com/jonboulle/clockwork"
)

// Manager 會話生命週期管理器
// 持有唯一一份活躍的 KeyMaterial，負責它的建立、輪換與銷毀。
// 編解碼器只能透過 EnsureSession 取得副本，絕不直接持有原件。
// 所有計時都走注入的 clockwork.Clock，測試可用假時鐘驅動。
type Manager struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	current    *keyderive.KeyMaterial
	startedAt  time.Time
	generation uint64 // 防止過期計時器誤殺新會話

	inactivityTimeout time.Duration // 無活動逾時（預設 30 分鐘）
	maxDuration       time.Duration // 會話最長壽命（預設 2 小時）
	rotationInterval  time.Duration // 輪換檢查間隔（預設 5 分鐘）
	maxKeyAge         time.Duration // 密鑰最大年齡（預設 15 分鐘）

	inactivityTimer  clockwork.Timer
	hiddenTimer      clockwork.Timer
	maxDurationTimer clockwork.Timer

	stopChan chan struct{}
	running  bool

	observer Observer

	// 指標（行程存續期間累積，只在重啟時歸零）
	sessionsCreated int64
	sessionsCleared int64
	totalDuration   time.Duration
	lastKeyRotation time.Time
}

// Observer 生命週期事件觀察者
// 供指標與稽核掛載，回調內不得再呼叫 Manager 的方法。
type Observer interface {
	SessionCreated(sessionID string)
	SessionCleared(sessionID, reason string, duration time.Duration)
	SessionRotated(oldSessionID, newSessionID string)
}

// Options 管理器配置
type Options struct {
	InactivityTimeout time.Duration
	MaxDuration       time.Duration
	RotationInterval  time.Duration
	MaxKeyAge         time.Duration
	Clock             clockwork.Clock
	Observer          Observer
}

// Metrics 會話指標快照
type Metrics struct {
	SessionsCreated        int64         `json:"sessions_created"`
	SessionsCleared        int64         `json:"sessions_cleared"`
	AverageSessionDuration time.Duration `json:"average_session_duration"`
	LastKeyRotation        time.Time     `json:"last_key_rotation"`
}

// NewManager 創建會話生命週期管理器
func NewManager(opts Options) *Manager {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = constants.DefaultInactivityTimeoutMin * time.Minute
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = constants.DefaultMaxSessionHours * time.Hour
	}
	if opts.RotationInterval <= 0 {
		opts.RotationInterval = constants.DefaultRotationCheckMin * time.Minute
	}
	if opts.MaxKeyAge <= 0 {
		opts.MaxKeyAge = constants.DefaultMaxKeyAgeMin * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Manager{
		clock:             opts.Clock,
		inactivityTimeout: opts.InactivityTimeout,
		maxDuration:       opts.MaxDuration,
		rotationInterval:  opts.RotationInterval,
		maxKeyAge:         opts.MaxKeyAge,
		observer:          opts.Observer,
		stopChan:          make(chan struct{}),
	}
}

// Start 啟動週期性輪換檢查
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.rotationLoop()
}

// Stop 停止後台輪換並清除會話
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.ClearSessionImmediate("manager stopped")
}

// rotationLoop 每 rotationInterval 檢查一次密鑰年齡
func (m *Manager) rotationLoop() {
	ticker := m.clock.NewTicker(m.rotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			m.rotateIfStale()
		case <-m.stopChan:
			return
		}
	}
}

// StartSession 開啟一個新會話
// 既有會話先行銷毀（原因：new session starting），再派生全新密鑰，
// 並重新武裝最長壽命與無活動計時器。
func (m *Manager) StartSession() (keyderive.KeyMaterial, error) {
	m.ClearSessionImmediate("new session starting")

	keys, err := keyderive.DeriveSessionKeys()
	if err != nil {
		return keyderive.KeyMaterial{}, fmt.Errorf("failed to derive session keys: %w", err)
	}
	// 派生時間以注入時鐘為準，輪換年齡檢查才可測
	keys.DerivedAt = m.clock.Now()

	m.mu.Lock()
	m.current = keys
	m.startedAt = m.clock.Now()
	m.generation++
	gen := m.generation
	m.sessionsCreated++

	m.maxDurationTimer = m.clock.AfterFunc(m.maxDuration, func() {
		m.clearGeneration(gen, "max session duration reached")
	})
	m.inactivityTimer = m.clock.AfterFunc(m.inactivityTimeout, func() {
		m.clearGeneration(gen, "inactivity timeout")
	})

	snapshot := m.current.Clone()
	sessionID := snapshot.SessionID
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer.SessionCreated(sessionID)
	}

	return snapshot, nil
}

// EnsureSession 回傳活躍會話的密鑰副本，沒有就開一個新會話
func (m *Manager) EnsureSession() (keyderive.KeyMaterial, error) {
	m.mu.RLock()
	if m.current != nil {
		snapshot := m.current.Clone()
		m.mu.RUnlock()
		return snapshot, nil
	}
	m.mu.RUnlock()

	return m.StartSession()
}

// ClearSessionImmediate 立即銷毀會話
// 清零密鑰欄位、取消所有計時器、記錄指標。冪等：沒有活躍會話時
// 是 no-op。
func (m *Manager) ClearSessionImmediate(reason string) {
	m.mu.Lock()

	if m.current == nil {
		m.mu.Unlock()
		return
	}

	sessionID := m.current.SessionID
	duration := m.clock.Since(m.startedAt)

	m.current.Zero()
	m.current = nil
	m.generation++

	m.cancelTimersLocked()

	m.sessionsCleared++
	m.totalDuration += duration

	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer.SessionCleared(sessionID, reason, duration)
	}
}

// clearGeneration 只在世代相符時銷毀（過期計時器走到這裡會被忽略）
func (m *Manager) clearGeneration(gen uint64, reason string) {
	m.mu.RLock()
	stale := m.generation != gen
	m.mu.RUnlock()

	if stale {
		return
	}
	m.ClearSessionImmediate(reason)
}

// Touch 使用者活動：重新武裝無活動計時器
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	if m.inactivityTimer != nil {
		m.inactivityTimer.Stop()
	}
	gen := m.generation
	m.inactivityTimer = m.clock.AfterFunc(m.inactivityTimeout, func() {
		m.clearGeneration(gen, "inactivity timeout")
	})
}

// PageHidden 頁面隱藏：排程銷毀，可被 PageVisible 取消
func (m *Manager) PageHidden() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	if m.hiddenTimer != nil {
		m.hiddenTimer.Stop()
	}
	gen := m.generation
	m.hiddenTimer = m.clock.AfterFunc(m.inactivityTimeout, func() {
		m.clearGeneration(gen, "page hidden timeout")
	})
}

// PageVisible 頁面重新可見：取消排程中的銷毀
func (m *Manager) PageVisible() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hiddenTimer != nil {
		m.hiddenTimer.Stop()
		m.hiddenTimer = nil
	}
}

// PageUnload 頁面卸載：立即無條件銷毀
func (m *Manager) PageUnload() {
	m.ClearSessionImmediate("page unload")
}

// rotateIfStale 密鑰年齡超過 maxKeyAge 就換一組全新的
// 舊密鑰不保留也不可恢復；用舊 sessionId 加密的 bundle 由管理員
// 憑證按 bundle 自帶的 sessionId 重新派生解密，與活會話無關。
// 輪換只替換密鑰材料，不結束會話：世代號不變，無活動與最長壽命
// 計時器照常有效。
func (m *Manager) rotateIfStale() {
	m.mu.Lock()

	if m.current == nil {
		m.mu.Unlock()
		return
	}
	if m.clock.Since(m.current.DerivedAt) <= m.maxKeyAge {
		m.mu.Unlock()
		return
	}

	oldSessionID := m.current.SessionID

	keys, err := keyderive.DeriveSessionKeys()
	if err != nil {
		// 派生失敗時保留舊密鑰，下個 tick 再試
		m.mu.Unlock()
		return
	}
	keys.DerivedAt = m.clock.Now()

	m.current.Zero()
	m.current = keys
	m.lastKeyRotation = m.clock.Now()

	newSessionID := keys.SessionID
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer.SessionRotated(oldSessionID, newSessionID)
	}
}

// cancelTimersLocked 取消所有計時器（呼叫方必須持有鎖）
func (m *Manager) cancelTimersLocked() {
	if m.inactivityTimer != nil {
		m.inactivityTimer.Stop()
		m.inactivityTimer = nil
	}
	if m.hiddenTimer != nil {
		m.hiddenTimer.Stop()
		m.hiddenTimer = nil
	}
	if m.maxDurationTimer != nil {
		m.maxDurationTimer.Stop()
		m.maxDurationTimer = nil
	}
}

// HasActiveSession 是否有活躍會話
func (m *Manager) HasActiveSession() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// CurrentSessionID 活躍會話的 sessionId，沒有會話時回傳空字串
func (m *Manager) CurrentSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ""
	}
	return m.current.SessionID
}

// Metrics 回傳指標快照
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Metrics{
		SessionsCreated: m.sessionsCreated,
		SessionsCleared: m.sessionsCleared,
		LastKeyRotation: m.lastKeyRotation,
	}
	if m.sessionsCleared > 0 {
		snapshot.AverageSessionDuration = m.totalDuration / time.Duration(m.sessionsCleared)
	}
	return snapshot
}
