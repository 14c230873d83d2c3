// marketサーバーのエントリポイント。
// 注文・メッセージ・未読通知のAPIを提供する。
package main

import (
	"flag"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/market/internal/market"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "market.toml", "path to the TOML config file")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)

	app := fx.New(
		market.Module(market.Params{ConfigPath: *configPath}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	app.Run()
}
