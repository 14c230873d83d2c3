package market

import (
	"context"
	"database/sql"

	"github.com/nao1215/market/internal/config"
	"github.com/nao1215/market/internal/metrics"
	"github.com/nao1215/market/internal/notification"
	"github.com/nao1215/market/internal/order"
	"github.com/nao1215/market/internal/seen"
	"github.com/nao1215/market/internal/storage"
	"github.com/nao1215/market/internal/thread"
	"github.com/nao1215/market/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params はfxモジュールに渡す起動パラメータ。
type Params struct {
	// ConfigPath は設定ファイルのパス。存在しない場合はデフォルト値を使う。
	ConfigPath string
}

// Module はmarketサーバーのfxモジュールを返す。
func Module(p Params) fx.Option {
	return fx.Module("market",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDB,
			provideRegistry,
			metrics.New,
			provideOrderStore,
			provideThread,
			provideSeenStore,
			provideAggregator,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	return config.Load(p.ConfigPath)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New("market", cfg.Log.Level, cfg.Log.Path)
}

func provideDB(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	return storage.Open(cfg.Server.DatabasePath, logger)
}

// provideRegistry はGoランタイムとプロセスのコレクタを登録したレジストリを返す。
// fxには *prometheus.Registry と prometheus.Registerer の両方で提供する。
func provideRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}

func provideOrderStore(db *sql.DB) *order.Store {
	return order.NewStore(db)
}

func provideThread(db *sql.DB, orders *order.Store) *thread.Thread {
	return thread.New(db, orders)
}

func provideSeenStore(db *sql.DB) *seen.Store {
	return seen.NewStore(db)
}

func provideAggregator(cfg *config.Config, orders *order.Store, th *thread.Thread, cursors *seen.Store, logger *zap.Logger, m *metrics.Metrics) *notification.Aggregator {
	return notification.NewAggregator(orders, th, cursors, logger.Named("notification"), m, notification.Options{
		MaxEntries:       cfg.Notification.MaxEntries,
		SummaryLength:    cfg.Notification.SummaryLength,
		FetchConcurrency: cfg.Notification.FetchConcurrency,
	})
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, srv *Server, db *sql.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("error shutting down http server", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing database", zap.Error(err))
			}
			logger.Info("market server stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
