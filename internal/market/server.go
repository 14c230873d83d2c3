package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/market/internal/config"
	"github.com/nao1215/market/internal/metrics"
	"github.com/nao1215/market/internal/notification"
	"github.com/nao1215/market/internal/order"
	"github.com/nao1215/market/internal/thread"
	"github.com/nao1215/market/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server はmarket APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はListenとShutdownを担う。
	httpServer *http.Server
	// cfg はサーバー設定。
	cfg config.Server
	// auth は /api/v1 に適用する認証ミドルウェア。
	auth gin.HandlerFunc
	// orders は注文ストア。
	orders *order.Store
	// thread はメッセージスレッド。
	thread *thread.Thread
	// notifications は未読通知の集約。
	notifications *notification.Aggregator
	// metrics はサーバーのメトリクス。
	metrics *metrics.Metrics
	// gatherer は /metrics で公開するレジストリ。
	gatherer prometheus.Gatherer
	// logger はサーバーのロガー。
	logger *zap.Logger
}

// NewServer は新しいmarketサーバーを生成する。
func NewServer(
	cfg *config.Config,
	orders *order.Store,
	th *thread.Thread,
	agg *notification.Aggregator,
	m *metrics.Metrics,
	reg *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	s := &Server{
		router:        router,
		cfg:           cfg.Server,
		auth:          middleware.JWTAuth(cfg.Server.JWTSecret),
		orders:        orders,
		thread:        th,
		notifications: agg,
		metrics:       m,
		gatherer:      reg,
		logger:        logger,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start はリッスンを開始し、サーバーが停止するまでブロックする。
// Stopによる正常停止ではnilを返す。
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("リッスンに失敗: %w", err)
	}
	s.logger.Info("market server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop は処理中のリクエストの完了を待ってサーバーを停止する。
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	if s.cfg.DevTokens {
		s.router.POST("/auth/dev-token", s.handleDevToken())
	}

	api := s.router.Group("/api/v1")
	api.Use(s.auth)
	{
		// 通知
		api.GET("/notifications/unread", s.handleUnread())
		api.POST("/notifications/ack", s.handleAck())
		api.POST("/notifications/ack-all", s.handleAckAll())

		// 注文
		api.GET("/orders", s.handleListOrders())
		api.GET("/orders/:id", s.handleGetOrder())
		api.PUT("/orders/:id/status", s.handleUpdateStatus())

		// メッセージ
		api.GET("/orders/:id/messages", s.handleListMessages())
		api.POST("/orders/:id/messages", s.handlePostMessage())

		// チェックアウト連携
		api.POST("/internal/orders", s.handleCreateOrder())
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "market"})
	})
}
