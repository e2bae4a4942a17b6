package session

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// recordingObserver 測試用觀察者
type recordingObserver struct {
	mu       sync.Mutex
	created  []string
	cleared  []string
	reasons  []string
	rotated  [][2]string
}

func (o *recordingObserver) SessionCreated(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, sessionID)
}

func (o *recordingObserver) SessionCleared(sessionID, reason string, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared = append(o.cleared, sessionID)
	o.reasons = append(o.reasons, reason)
}

func (o *recordingObserver) SessionRotated(oldID, newID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotated = append(o.rotated, [2]string{oldID, newID})
}

func (o *recordingObserver) rotationCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.rotated)
}

func newTestManager(fc clockwork.Clock, obs Observer) *Manager {
	return NewManager(Options{
		InactivityTimeout: 30 * time.Minute,
		MaxDuration:       2 * time.Hour,
		RotationInterval:  5 * time.Minute,
		MaxKeyAge:         15 * time.Minute,
		Clock:             fc,
		Observer:          obs,
	})
}

// waitFor 輪詢等待條件成立（後台 goroutine 處理 tick 需要一點真實時間）
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestStartSession(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	keys, err := m.StartSession()
	if err != nil {
		t.Fatal(err)
	}

	if keys.SessionID == "" {
		t.Error("session should carry a sessionId")
	}
	if !m.HasActiveSession() {
		t.Error("manager should report an active session")
	}
	if m.CurrentSessionID() != keys.SessionID {
		t.Error("CurrentSessionID should match the returned key material")
	}
}

func TestStartSession_ReplacesExisting(t *testing.T) {
	fc := clockwork.NewFakeClock()
	obs := &recordingObserver{}
	m := newTestManager(fc, obs)

	first, err := m.StartSession()
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.StartSession()
	if err != nil {
		t.Fatal(err)
	}

	if first.SessionID == second.SessionID {
		t.Error("new session should have a different sessionId")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.reasons) != 1 || obs.reasons[0] != "new session starting" {
		t.Errorf("expected one clear with reason 'new session starting', got %v", obs.reasons)
	}
}

func TestClearSessionImmediate_Idempotent(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	m.ClearSessionImmediate("test")
	if m.HasActiveSession() {
		t.Error("session should be cleared")
	}

	// 重複呼叫是 no-op
	m.ClearSessionImmediate("test again")

	metrics := m.Metrics()
	if metrics.SessionsCleared != 1 {
		t.Errorf("SessionsCleared = %d, want 1 (idempotent clear)", metrics.SessionsCleared)
	}
}

func TestLifecycleDestruction_FreshDerivation(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	first, err := m.StartSession()
	if err != nil {
		t.Fatal(err)
	}

	m.ClearSessionImmediate("done")

	// 銷毀後的下一次 EnsureSession 必須派生全新密鑰
	second, err := m.EnsureSession()
	if err != nil {
		t.Fatal(err)
	}
	if second.SessionID == first.SessionID {
		t.Error("post-destruction session must have a fresh sessionId")
	}
	if second.EncryptionKey == first.EncryptionKey {
		t.Error("post-destruction session must have fresh keys")
	}
}

func TestEnsureSession_ReusesActive(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	first, err := m.EnsureSession()
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.EnsureSession()
	if err != nil {
		t.Fatal(err)
	}

	if first.SessionID != second.SessionID {
		t.Error("EnsureSession should reuse the live session")
	}

	if m.Metrics().SessionsCreated != 1 {
		t.Error("only one session should have been created")
	}
}

func TestInactivityTimeout(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	// 29 分鐘後仍活躍
	fc.Advance(29 * time.Minute)
	if !m.HasActiveSession() {
		t.Fatal("session should survive 29 minutes")
	}

	// 第 30 分鐘觸發無活動銷毀
	fc.Advance(2 * time.Minute)
	if !waitFor(t, func() bool { return !m.HasActiveSession() }) {
		t.Error("session should be cleared after inactivity timeout")
	}
}

func TestTouch_RearmsInactivityTimer(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	// 29 分鐘時有使用者活動
	fc.Advance(29 * time.Minute)
	m.Touch()

	// 再過 29 分鐘（距活動 29 分鐘）仍應活躍
	fc.Advance(29 * time.Minute)
	if !m.HasActiveSession() {
		t.Fatal("Touch should re-arm the inactivity timer")
	}

	// 距活動超過 30 分鐘後銷毀
	fc.Advance(2 * time.Minute)
	if !waitFor(t, func() bool { return !m.HasActiveSession() }) {
		t.Error("session should be cleared 30 minutes after last activity")
	}
}

func TestPageHidden_CancelableByVisible(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	m.PageHidden()
	fc.Advance(10 * time.Minute)
	m.PageVisible() // 取消排程中的銷毀
	m.Touch()       // 回到前景視為活動

	fc.Advance(25 * time.Minute)
	if !m.HasActiveSession() {
		t.Error("PageVisible should cancel the scheduled destruction")
	}
}

func TestPageHidden_FiresAfterWindow(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	m.PageHidden()
	fc.Advance(31 * time.Minute)

	if !waitFor(t, func() bool { return !m.HasActiveSession() }) {
		t.Error("hidden page should be cleared after the timeout window")
	}
}

func TestPageUnload_Immediate(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	m.PageUnload()
	if m.HasActiveSession() {
		t.Error("unload should clear the session immediately")
	}
}

func TestMaxDuration(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := NewManager(Options{
		InactivityTimeout: 3 * time.Hour, // 拉長，單獨驗證最長壽命
		MaxDuration:       2 * time.Hour,
		RotationInterval:  5 * time.Minute,
		MaxKeyAge:         3 * time.Hour, // 不輪換
		Clock:             fc,
	})

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	fc.Advance(time.Hour + 59*time.Minute)
	if !m.HasActiveSession() {
		t.Fatal("session should survive just under 2 hours")
	}

	fc.Advance(2 * time.Minute)
	if !waitFor(t, func() bool { return !m.HasActiveSession() }) {
		t.Error("session should be cleared at max duration")
	}
}

func TestRotationCadence(t *testing.T) {
	fc := clockwork.NewFakeClock()
	obs := &recordingObserver{}
	m := NewManager(Options{
		InactivityTimeout: 5 * time.Hour, // 不干擾輪換測試
		MaxDuration:       5 * time.Hour,
		RotationInterval:  5 * time.Minute,
		MaxKeyAge:         15 * time.Minute,
		Clock:             fc,
		Observer:          obs,
	})
	m.Start()
	defer m.Stop()

	first, err := m.StartSession()
	if err != nil {
		t.Fatal(err)
	}

	// 密鑰年齡未超過 15 分鐘：5、10、15 分鐘的檢查都不輪換
	for i := 0; i < 3; i++ {
		fc.Advance(5 * time.Minute)
		time.Sleep(20 * time.Millisecond)
	}
	if obs.rotationCount() != 0 {
		t.Fatalf("no rotation expected while key age <= 15 min, got %d", obs.rotationCount())
	}
	if m.CurrentSessionID() != first.SessionID {
		t.Fatal("sessionId should be unchanged before rotation")
	}

	// 第 20 分鐘的檢查點：年齡 20 分鐘 > 15 分鐘，輪換
	fc.Advance(5 * time.Minute)
	if !waitFor(t, func() bool { return obs.rotationCount() == 1 }) {
		t.Fatal("stale key should rotate at the next check tick")
	}
	if m.CurrentSessionID() == first.SessionID {
		t.Error("rotation should produce a new sessionId")
	}

	metrics := m.Metrics()
	if metrics.LastKeyRotation.IsZero() {
		t.Error("LastKeyRotation should be recorded")
	}
}

func TestRotation_NoSessionNoop(t *testing.T) {
	fc := clockwork.NewFakeClock()
	obs := &recordingObserver{}
	m := newTestManager(fc, obs)
	m.Start()
	defer m.Stop()

	fc.Advance(30 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	if obs.rotationCount() != 0 {
		t.Error("rotation check with no session should be a no-op")
	}
}

func TestRotation_PreservesInactivityTimeout(t *testing.T) {
	fc := clockwork.NewFakeClock()
	obs := &recordingObserver{}
	m := newTestManager(fc, obs)
	m.Start()
	defer m.Stop()

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	// 第 20 分鐘的檢查點輪換一次
	for i := 0; i < 4; i++ {
		fc.Advance(5 * time.Minute)
		time.Sleep(20 * time.Millisecond)
	}
	if !waitFor(t, func() bool { return obs.rotationCount() == 1 }) {
		t.Fatal("expected one rotation at the 20 minute check")
	}
	if !m.HasActiveSession() {
		t.Fatal("rotation should not end the session")
	}

	// 無活動滿 30 分鐘：輪換過的會話照樣被銷毀
	fc.Advance(11 * time.Minute)
	if !waitFor(t, func() bool { return !m.HasActiveSession() }) {
		t.Fatal("session should be cleared by the inactivity timer after a rotation")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.reasons) != 1 || obs.reasons[0] != "inactivity timeout" {
		t.Errorf("expected clear reason 'inactivity timeout', got %v", obs.reasons)
	}
}

func TestRotation_PreservesMaxDuration(t *testing.T) {
	fc := clockwork.NewFakeClock()
	obs := &recordingObserver{}
	m := newTestManager(fc, obs)
	m.Start()
	defer m.Stop()

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}

	// 每 20 分鐘 Touch 一次避開無活動逾時，期間照常輪換
	for i := 1; i <= 23; i++ {
		fc.Advance(5 * time.Minute)
		time.Sleep(20 * time.Millisecond)
		if i%4 == 0 {
			m.Touch()
		}
	}
	if obs.rotationCount() == 0 {
		t.Fatal("expected rotations during a long-lived session")
	}
	if !m.HasActiveSession() {
		t.Fatal("session should still be alive just under 2 hours")
	}

	fc.Advance(5 * time.Minute)
	if !waitFor(t, func() bool { return !m.HasActiveSession() }) {
		t.Fatal("session should be cleared at max duration despite rotations")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.reasons) == 0 || obs.reasons[len(obs.reasons)-1] != "max session duration reached" {
		t.Errorf("expected final clear reason 'max session duration reached', got %v", obs.reasons)
	}
}

func TestMetrics_AverageDuration(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := newTestManager(fc, nil)

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}
	fc.Advance(10 * time.Minute)
	m.ClearSessionImmediate("first")

	if _, err := m.StartSession(); err != nil {
		t.Fatal(err)
	}
	fc.Advance(20 * time.Minute)
	m.ClearSessionImmediate("second")

	metrics := m.Metrics()
	if metrics.SessionsCreated != 2 {
		t.Errorf("SessionsCreated = %d, want 2", metrics.SessionsCreated)
	}
	if metrics.SessionsCleared != 2 {
		t.Errorf("SessionsCleared = %d, want 2", metrics.SessionsCleared)
	}
	if metrics.AverageSessionDuration != 15*time.Minute {
		t.Errorf("AverageSessionDuration = %v, want 15m", metrics.AverageSessionDuration)
	}
}
