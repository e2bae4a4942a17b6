package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionCollectors 會話生命週期的 Prometheus 指標
// 實現 session.Observer，由生命週期管理器在事件發生時回調。
type SessionCollectors struct {
	sessionsCreated prometheus.Counter
	sessionsCleared *prometheus.CounterVec
	sessionRotated  prometheus.Counter
	sessionDuration prometheus.Histogram
	lastRotation    prometheus.Gauge
}

// NewSessionCollectors 創建並註冊會話指標
func NewSessionCollectors(reg prometheus.Registerer) *SessionCollectors {
	c := &SessionCollectors{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Total number of encryption sessions created.",
		}),
		sessionsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "session",
			Name:      "cleared_total",
			Help:      "Total number of encryption sessions cleared, by reason.",
		}, []string{"reason"}),
		sessionRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "session",
			Name:      "rotated_total",
			Help:      "Total number of key rotations.",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "report_gateway",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Observed session lifetimes in seconds.",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200},
		}),
		lastRotation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "report_gateway",
			Subsystem: "session",
			Name:      "last_rotation_timestamp_seconds",
			Help:      "Unix timestamp of the last key rotation.",
		}),
	}

	reg.MustRegister(c.sessionsCreated, c.sessionsCleared, c.sessionRotated, c.sessionDuration, c.lastRotation)
	return c
}

// SessionCreated 實現 session.Observer
func (c *SessionCollectors) SessionCreated(sessionID string) {
	c.sessionsCreated.Inc()
}

// SessionCleared 實現 session.Observer
func (c *SessionCollectors) SessionCleared(sessionID, reason string, duration time.Duration) {
	c.sessionsCleared.WithLabelValues(reason).Inc()
	c.sessionDuration.Observe(duration.Seconds())
}

// SessionRotated 實現 session.Observer
func (c *SessionCollectors) SessionRotated(oldSessionID, newSessionID string) {
	c.sessionRotated.Inc()
	c.lastRotation.SetToCurrentTime()
}

// ReportCollectors 通報處理指標
type ReportCollectors struct {
	reportsEncrypted   prometheus.Counter
	attachmentsStored  prometheus.Counter
	oversizeRejections prometheus.Counter
	decryptAttempts    *prometheus.CounterVec
	encryptDuration    prometheus.Histogram
}

// NewReportCollectors 創建並註冊通報指標
func NewReportCollectors(reg prometheus.Registerer) *ReportCollectors {
	c := &ReportCollectors{
		reportsEncrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "report",
			Name:      "encrypted_total",
			Help:      "Total number of reports encrypted and stored.",
		}),
		attachmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "report",
			Name:      "attachments_total",
			Help:      "Total number of encrypted attachments stored.",
		}),
		oversizeRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "report",
			Name:      "oversize_rejections_total",
			Help:      "Total number of attachments rejected by the size policy.",
		}),
		decryptAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "report_gateway",
			Subsystem: "report",
			Name:      "decrypt_attempts_total",
			Help:      "Total number of admin decrypt attempts, by result.",
		}, []string{"result"}),
		encryptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "report_gateway",
			Subsystem: "report",
			Name:      "encrypt_duration_seconds",
			Help:      "Time spent encrypting a report bundle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.reportsEncrypted, c.attachmentsStored, c.oversizeRejections, c.decryptAttempts, c.encryptDuration)
	return c
}

// ReportEncrypted 通報加密完成
func (c *ReportCollectors) ReportEncrypted(duration time.Duration) {
	c.reportsEncrypted.Inc()
	c.encryptDuration.Observe(duration.Seconds())
}

// AttachmentStored 附件加密並存儲
func (c *ReportCollectors) AttachmentStored() {
	c.attachmentsStored.Inc()
}

// OversizeRejected 附件被大小策略拒絕
func (c *ReportCollectors) OversizeRejected() {
	c.oversizeRejections.Inc()
}

// DecryptAttempt 解密嘗試（result: success / integrity_failure / decryption_failure）
func (c *ReportCollectors) DecryptAttempt(result string) {
	c.decryptAttempts.WithLabelValues(result).Inc()
}

// Registry 應用專用的 Prometheus registry
// 不用全局 DefaultRegisterer，測試之間不會互相污染。
type Registry struct {
	reg     *prometheus.Registry
	Session *SessionCollectors
	Report  *ReportCollectors
}

// NewRegistry 創建 registry 並註冊全部收集器
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return &Registry{
		reg:     reg,
		Session: NewSessionCollectors(reg),
		Report:  NewReportCollectors(reg),
	}
}

// Handler /metrics 的 gin handler
func (r *Registry) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
