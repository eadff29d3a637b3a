package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"magpie/internal/capture"
	"magpie/internal/config"
	"magpie/internal/extract"
	"magpie/internal/handler"
	"magpie/internal/pkg/archive"
	"magpie/internal/pkg/kv"
	"magpie/internal/server/middleware"
	"magpie/internal/store"
)

// Server HTTP 服务器
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	kvStore    kv.Store
	controller *capture.Controller
}

// New 创建服务器实例
// 依赖在这里一次性构建并显式注入：kv 后端 -> 会话存储 -> 提取器 -> 控制器
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 选定 kv 后端（启动时探测一次，之后不再切换）
	kvStore, err := kv.Open(context.Background(), &cfg.KV)
	if err != nil {
		return nil, err
	}

	convStore := store.New(kvStore, cfg.KV.Budget)
	extractor := extract.New(cfg.Extract)
	controller := capture.New(cfg.Capture, extractor, convStore)

	// 归档后端（可选）
	arc, err := archive.New(&cfg.Archive)
	if err != nil {
		log.Warn().Err(err).Msg("failed to init archive, continuing without it")
		arc = nil
	}

	srv := &Server{
		cfg:        cfg,
		engine:     engine,
		kvStore:    kvStore,
		controller: controller,
	}

	// 设置路由
	srv.setupRoutes(convStore, arc)

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(convStore *store.ConversationStore, arc archive.Archive) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.kvStore)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	captureHandler := handler.NewCaptureHandler(s.controller)
	snapshotHandler := handler.NewSnapshotHandler(s.controller)
	wsHandler := handler.NewWSHandler(s.controller)
	convHandler := handler.NewConversationHandler(convStore, arc)

	// API v1
	v1 := s.engine.Group("/api/v1")

	// 配置了密钥时控制接口才鉴权
	if s.cfg.Auth.JWTSecret != "" {
		v1.Use(middleware.Auth(s.cfg.Auth.JWTSecret))
	} else {
		log.Warn().Msg("JWT secret not configured, control API is unauthenticated")
	}

	{
		// 快照与变更通知
		v1.POST("/snapshots", snapshotHandler.Ingest)
		v1.GET("/ws", wsHandler.Feed)

		// 捕获控制
		v1.POST("/capture/toggle", captureHandler.Toggle)
		v1.GET("/capture/status", captureHandler.Status)

		// 会话管理
		v1.GET("/conversations", convHandler.List)
		v1.GET("/conversations/usage", convHandler.Usage)
		v1.GET("/conversations/export", convHandler.Export)
		v1.POST("/conversations/import", convHandler.Import)
		v1.GET("/conversations/:id", convHandler.Get)
		v1.DELETE("/conversations/:id", convHandler.Delete)
		v1.DELETE("/conversations", convHandler.ClearAll)
	}
}

// Run 启动服务器与捕获控制器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 捕获控制器主循环
	controllerCtx, stopController := context.WithCancel(context.Background())
	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		s.controller.Run(controllerCtx)
	}()

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 先停控制器：取消后续提取，未保存的批次在退出前冲刷
		stopController()
		<-controllerDone

		// 再排空在途 HTTP 请求，kv 最后关闭，避免 handler 访问已关闭的存储
		err := srv.Shutdown(context.Background())

		if cerr := s.kvStore.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close kv store")
		}

		return err
	case err := <-errCh:
		stopController()
		<-controllerDone

		if cerr := s.kvStore.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close kv store")
		}

		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
