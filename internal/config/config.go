package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr           string
	Port                 string
	DatabasePath         string
	GinMode              string
	SweepIntervalMinutes int
	BootstrapUserName    string
	BootstrapUserEmail   string
	BootstrapPassword    string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "vitalog.db"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	// 0 表示关闭内置定时扫描，由外部调度器调用 /api/engine/sweep
	sweepInterval := 0
	if raw := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL_MINUTES")); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val >= 0 {
			sweepInterval = val
		}
	}

	return AppConfig{
		ListenAddr:           listenAddr,
		Port:                 port,
		DatabasePath:         databasePath,
		GinMode:              ginMode,
		SweepIntervalMinutes: sweepInterval,
		BootstrapUserName:    strings.TrimSpace(os.Getenv("BOOTSTRAP_USER_NAME")),
		BootstrapUserEmail:   strings.TrimSpace(os.Getenv("BOOTSTRAP_USER_EMAIL")),
		BootstrapPassword:    strings.TrimSpace(os.Getenv("BOOTSTRAP_USER_PASSWORD")),
	}
}
