package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report-gateway/internal/notify"
	"report-gateway/internal/platform/config"
	"report-gateway/internal/platform/driver"
	"report-gateway/internal/platform/logger"
	"report-gateway/internal/platform/metrics"
	"report-gateway/internal/platform/server"
	"report-gateway/internal/security/audit"
	"report-gateway/internal/security/session"
	"report-gateway/internal/storage/database"
)

func main() {
	if err := mainNoExit(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// sessionObserver 將會話事件同時送往指標與審計.
type sessionObserver struct {
	collectors *metrics.SessionCollectors
	audit      *audit.AuditService
}

func (o *sessionObserver) SessionCreated(sessionID string) {
	o.collectors.SessionCreated(sessionID)
}

func (o *sessionObserver) SessionCleared(sessionID, reason string, duration time.Duration) {
	o.collectors.SessionCleared(sessionID, reason, duration)
	o.audit.LogSessionCleared(context.Background(), sessionID, reason, duration)
}

func (o *sessionObserver) SessionRotated(oldSessionID, newSessionID string) {
	o.collectors.SessionRotated(oldSessionID, newSessionID)
	o.audit.LogSessionRotated(context.Background(), oldSessionID, newSessionID)
}

// mainNoExit 分離主要邏輯以避免 exitAfterDefer 問題，確保 defer 函數正常執行.
func mainNoExit() error {
	// 初始化日誌.
	if err := logger.InitLogger(); err != nil {
		return err
	}
	defer logger.CloseLogger()

	ctx := context.Background()

	// 載入配置.
	if err := config.Load(); err != nil {
		return err
	}
	cfg := config.Get()
	logger.LogInfof("設定載入成功，環境: %s", config.GetEnv())

	// 連接資料庫.
	if err := driver.ConnectMongo(); err != nil {
		return err
	}
	defer func() {
		if err := driver.CloseMongo(); err != nil {
			logger.Errorf(ctx, "關閉 MongoDB 連接失敗: %v", err)
		}
	}()

	// 設置 MongoDB 連接到 database 包
	database.SetMongoDB(driver.GetMongoDatabase())

	// 初始化 Repository.
	repos := database.NewRepositories(cfg)
	if repos == nil {
		return fmt.Errorf("database initialization failed")
	}

	// 初始化指標與審計
	metricsReg := metrics.NewRegistry()
	auditSvc := audit.NewAuditService(cfg.Security.Audit.Enabled)

	// 初始化加密會話管理器
	sessionCfg := cfg.Security.Session
	sessions := session.NewManager(session.Options{
		InactivityTimeout: time.Duration(sessionCfg.InactivityTimeoutMinutes) * time.Minute,
		MaxDuration:       time.Duration(sessionCfg.MaxDurationHours) * time.Hour,
		RotationInterval:  time.Duration(sessionCfg.RotationCheckMinutes) * time.Minute,
		MaxKeyAge:         time.Duration(sessionCfg.MaxKeyAgeMinutes) * time.Minute,
		Observer: &sessionObserver{
			collectors: metricsReg.Session,
			audit:      auditSvc,
		},
	})
	sessions.Start()
	defer sessions.Stop()

	// 初始化通知中心
	hub := notify.NewHub(cfg.Limits.SSE.NotifyChannelBuffer)
	defer hub.Close()

	// 啟動 HTTP 服務器
	httpServer := server.New(&server.Dependencies{
		Repos:    repos,
		Sessions: sessions,
		Metrics:  metricsReg,
		Audit:    auditSvc,
		Hub:      hub,
	})
	go func() {
		if err := server.Start(httpServer); err != nil {
			logger.Errorf(ctx, "HTTP 服務器啟動失敗: %v", err)
		}
	}()

	logger.Info(ctx, "[System] 服務器啟動完成")

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "正在關閉服務器...", logger.WithAction("shutdown"))

	// 關閉前銷毀在用密鑰
	sessions.ClearSessionImmediate("server shutdown")

	return server.Shutdown(httpServer)
}
