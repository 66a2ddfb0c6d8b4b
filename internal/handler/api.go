package handler

import (
	"github.com/vitalog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	engine   *service.PromptEngineService
	prompts  *service.PromptService
	logs     *service.LogService
	contexts *service.UserContextService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB) *API {
	return &API{
		db:       db,
		engine:   service.NewPromptEngineService(db),
		prompts:  service.NewPromptService(db),
		logs:     service.NewLogService(db),
		contexts: service.NewUserContextService(db),
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Engine 暴露引擎实例，供外部定时器驱动批量扫描
func (a *API) Engine() *service.PromptEngineService {
	return a.engine
}
