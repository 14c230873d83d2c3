// marketwatchは未読通知をターミナルに表示するクライアント。
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nao1215/market/internal/config"
	"github.com/nao1215/market/internal/watch"
	"github.com/nao1215/market/pkg/httpclient"
	"github.com/nao1215/market/pkg/logging"
)

func main() {
	configPath := flag.String("config", "market.toml", "path to the TOML config file")
	serverURL := flag.String("url", "", "market server URL (overrides config)")
	token := flag.String("token", "", "bearer token (overrides config)")
	initConfig := flag.Bool("init", false, "write the default config to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.Save(*configPath, config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}
	if *token != "" {
		cfg.Client.Token = *token
	}
	if cfg.Client.Token == "" {
		fmt.Fprintln(os.Stderr, "error: token is required (set client.token, MARKET_TOKEN or -token)")
		os.Exit(1)
	}

	// 画面を壊さないようにログはファイルにだけ出す
	logger, err := logging.NewFileOnly("marketwatch", cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	client := httpclient.New(cfg.Client.ServerURL, httpclient.WithToken(cfg.Client.Token))
	if err := watch.New(client, cfg.PollInterval(), logger).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
