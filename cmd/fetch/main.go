package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henners-111/Stock-Correlation/internal/config"
	"github.com/Henners-111/Stock-Correlation/internal/history"
	"github.com/Henners-111/Stock-Correlation/internal/httpx"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/provider/stooq"
	"github.com/Henners-111/Stock-Correlation/internal/provider/yahoo"
)

func main() {
	var (
		ticker     string
		start      string
		end        string
		cfgPath    string
		timeoutSec int
		verbose    bool
	)
	flag.StringVar(&ticker, "ticker", getenv("TICKER", "AAPL"), "ticker, alias, or raw symbol")
	flag.StringVar(&start, "start", "", "range start (ISO or common date formats)")
	flag.StringVar(&end, "end", "", "range end (ISO or common date formats)")
	flag.StringVar(&cfgPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.IntVar(&timeoutSec, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 20), "request timeout seconds")
	flag.BoolVar(&verbose, "v", false, "log provider attempts")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeoutSec != 0 {
		cfg.Server.RequestTimeoutSec = timeoutSec
	}

	logLevel := zerolog.WarnLevel
	if verbose {
		logLevel = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(logLevel).With().Timestamp().Logger()

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	yahooClient := yahoo.NewClient(
		yahoo.WithHTTPClient(httpClient.HTTP),
		yahoo.WithRetries(cfg.Yahoo.Retries),
	)
	stooqCfg := stooq.Config{
		HistoryEndpoint: cfg.Stooq.HistoryEndpoint,
		SearchEndpoint:  cfg.Stooq.SearchEndpoint,
		Retries:         cfg.Stooq.Retries,
	}

	byName := map[string]provider.HistoryProvider{
		"yahoo": yahoo.NewHistory(yahoo.Config{}, yahooClient, logger),
		"stooq": stooq.NewHistory(stooqCfg, httpClient, logger),
	}
	var providers []provider.HistoryProvider
	for _, name := range cfg.History.ProviderOrder {
		if p, ok := byName[name]; ok {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		log.Fatal("no providers configured; check provider_order")
	}

	svc := &history.Service{
		Providers:  providers,
		IndexFirst: cfg.History.IndexFirst,
		Log:        logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
	defer cancel()

	res := svc.Get(ctx, ticker, start, end)
	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
	if res.Error != "" {
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
