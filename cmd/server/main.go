package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitalog/internal/config"
	"github.com/vitalog/internal/db"
	"github.com/vitalog/internal/handler"
	"github.com/vitalog/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	if err := db.EnsureUser(cfg.BootstrapUserName, cfg.BootstrapUserEmail, cfg.BootstrapPassword); err != nil {
		log.Fatalf("failed to ensure bootstrap user: %v", err)
	}

	api := handler.NewAPI(db.DB)

	// 内置定时扫描是可选的；生产环境通常由外部调度器调用 /api/engine/sweep
	if cfg.SweepIntervalMinutes > 0 {
		go runSweepLoop(api, time.Duration(cfg.SweepIntervalMinutes)*time.Minute)
	}

	r := router.SetupRouter(api)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

func runSweepLoop(api *handler.API, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		results, err := api.Engine().ProcessScheduledPrompts()
		if err != nil {
			log.Printf("[Sweep] scheduled sweep failed: %v", err)
			continue
		}

		total := 0
		for _, fired := range results {
			total += len(fired)
		}
		log.Printf("[Sweep] evaluated %d users with deliveries, fired %d prompts", len(results), total)
	}
}
