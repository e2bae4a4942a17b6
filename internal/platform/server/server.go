package server

import (
	"context"
	"net/http"
	"time"

	"report-gateway/internal/platform/config"
	"report-gateway/internal/platform/logger"
)

// New 建立 HTTP 伺服器.
func New(deps *Dependencies) *http.Server {
	cfg := config.Get()

	router := Router(deps)

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: 0, // SSE 需要長連接，設為 0 表示不超時
		IdleTimeout:  120 * time.Second,
	}
}

// Start 啟動伺服器並阻塞至其退出.
func Start(server *http.Server) error {
	cfg := config.Get()
	logger.LogInfof("伺服器正在監聽埠口: %s", cfg.Server.Port)

	var err error
	if cfg.Security.TLS.Enabled {
		tlsConfig, tlsErr := LoadTLSConfig(TLSConfig{
			Enabled:  true,
			CertFile: cfg.Security.TLS.CertFile,
			KeyFile:  cfg.Security.TLS.KeyFile,
			CAFile:   cfg.Security.TLS.CAFile,
		})
		if tlsErr != nil {
			return tlsErr
		}
		server.TLSConfig = tlsConfig
		err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 優雅關閉伺服器.
func Shutdown(server *http.Server) error {
	logger.LogInfof("收到關閉信號，正在優雅關閉伺服器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogErrorf("伺服器關閉失敗: %v", err)
		return err
	}

	logger.LogInfof("伺服器已優雅關閉")
	return nil
}
