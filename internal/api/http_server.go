package api

import (
	"time"

	"codeverse/internal/auth"
	"codeverse/internal/config"
	"codeverse/internal/ledger"
	"codeverse/internal/model"
	"codeverse/internal/service"
	"codeverse/internal/syncer"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg         config.Config
	repo        model.Repository
	authManager *auth.Manager
	usageLedger *ledger.Ledger

	// 服务层
	generationService *service.GenerationService
	syncCoordinator   *syncer.Coordinator
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, usageLedger *ledger.Ledger, generationSvc *service.GenerationService, coordinator *syncer.Coordinator) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		authManager:       authManager,
		usageLedger:       usageLedger,
		generationService: generationSvc,
		syncCoordinator:   coordinator,
	}, nil
}
