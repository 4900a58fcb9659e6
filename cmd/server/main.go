package main

import (
	"fmt"
	"net/http"
	"time"

	"codeverse/internal/api"
	"codeverse/internal/config"
	"codeverse/internal/ledger"
	"codeverse/internal/llm"
	"codeverse/internal/model"
	"codeverse/internal/quota"
	"codeverse/internal/service"
	"codeverse/internal/syncer"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// 本地开发时从 .env 读配置，文件不存在则忽略
	_ = godotenv.Load()

	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	poet, err := llm.NewService(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise poem provider")
		return
	}

	usageLedger := ledger.New(repo)
	policy := quota.Policy{
		FreeDailyLimit:     cfg.FreeDailyLimit,
		GuestLifetimeLimit: cfg.GuestLifetimeLimit,
	}
	generationSvc := service.NewGenerationService(
		repo,
		usageLedger,
		policy,
		poet,
		cfg.MaxCodeChars,
		time.Duration(cfg.GenerationTimeoutSeconds)*time.Second,
	)

	remoteStore, err := syncer.NewRemoteStore(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise remote store")
		return
	}
	var probe syncer.ConnectivityProbe
	if remoteStore != nil {
		probe = syncer.NewTCPProbe(cfg.SyncProbeAddr, time.Duration(cfg.SyncProbeTimeoutSeconds)*time.Second, remoteStore)
	}
	coordinator := syncer.NewCoordinator(repo, remoteStore, probe)

	httpHandler, err := api.NewHTTPHandler(cfg, repo, usageLedger, generationSvc, coordinator)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/guest", httpHandler.GuestLogin)
	authGroup.POST("/register", httpHandler.Register)
	authGroup.POST("/login", httpHandler.Login)
	authGroup.GET("/me", httpHandler.AuthMiddleware(), httpHandler.Me)

	protected := apiGroup.Group("")
	protected.Use(httpHandler.AuthMiddleware())
	protected.POST("/poems", httpHandler.GeneratePoem)
	protected.GET("/poems", httpHandler.ListPoemRecords)
	protected.GET("/poems/:id", httpHandler.GetPoemRecord)
	protected.DELETE("/poems/:id", httpHandler.DeletePoemRecord)
	protected.PUT("/poems/:id/favorite", httpHandler.SetPoemFavorite)
	protected.GET("/usage", httpHandler.GetUsage)
	protected.POST("/sync", httpHandler.Sync)

	userAdmin := protected.Group("/users")
	userAdmin.Use(httpHandler.RequireAdmin())
	userAdmin.GET("", httpHandler.ListUsers)
	userAdmin.PATCH(":id", httpHandler.UpdateUser)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  600 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("服务器启动失败")
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
