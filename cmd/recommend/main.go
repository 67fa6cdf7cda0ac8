package main

import (
	"time"

	"github.com/Aliuddin002/recommendation/internal/catalog"
	"github.com/Aliuddin002/recommendation/internal/history"
	"github.com/Aliuddin002/recommendation/internal/logger"
	"github.com/Aliuddin002/recommendation/internal/recommend"
	"github.com/Aliuddin002/recommendation/internal/server"
	"github.com/Aliuddin002/recommendation/internal/task"
	"github.com/Aliuddin002/recommendation/internal/user"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := InitServerConfig()

	logger.SetDebug(cfg.Server.Debug)
	if cfg.Log.File != "" {
		logger.SetFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	}
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. 加载曲库。这是启动前置条件，文件缺失或非法直接退出，不提供降级模式
	store, err := catalog.NewStoreFromCSV(cfg.Paths.Catalog)
	if err != nil {
		logger.Fatal("Failed to load catalog: %v", err)
	}
	logger.Info("Catalog loaded: %d tracks", store.Len())

	// 2. 初始化 User Provider
	userProvider, err := user.NewStaticProvider(cfg.Paths.Users)
	if err != nil {
		logger.Fatal("Failed to init user provider: %v", err)
	}

	// 3. 初始化 History Store
	historyStore, err := history.NewFileStore(cfg.Paths.History)
	if err != nil {
		logger.Fatal("Failed to init history store: %v", err)
	}

	// 4. 定期清理过期的下发记录
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := historyStore.Cleanup(cfg.History.RetainDays); err != nil {
				logger.Error("History cleanup failed: %v", err)
			}
		}
	}()

	// 5. 初始化打分核心
	rec := recommend.NewRecommender(store, cfg.Recommend.DiversitySeed)

	// 6. 启动 HTTP Server
	srv := server.NewServer(userProvider, rec, historyStore, task.NewManager(), server.Config{
		DefaultTopK:  cfg.Recommend.TopK,
		LookbackDays: cfg.History.LookbackDays,
	})
	logger.Info("Starting HTTP server on port %s...", cfg.Server.Port)
	if err := srv.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Server failed: %v", err)
	}
}
