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
	"github.com/Henners-111/Stock-Correlation/internal/httpx"
	"github.com/Henners-111/Stock-Correlation/internal/provider/stooq"
	"github.com/Henners-111/Stock-Correlation/internal/provider/yahoo"
	"github.com/Henners-111/Stock-Correlation/internal/suggest"
)

func main() {
	var (
		query      string
		limit      int
		cfgPath    string
		timeoutSec int
	)
	flag.StringVar(&query, "q", "", "search query (required)")
	flag.IntVar(&limit, "limit", 0, "max suggestions (0 = config default)")
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeoutSec, "timeout", 20, "request timeout seconds")
	flag.Parse()

	if query == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if limit <= 0 {
		limit = cfg.Suggest.DefaultLimit
	}
	if limit > cfg.Suggest.MaxLimit {
		limit = cfg.Suggest.MaxLimit
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	httpClient := httpx.New(time.Duration(timeoutSec) * time.Second)
	yahooClient := yahoo.NewClient(
		yahoo.WithHTTPClient(httpClient.HTTP),
		yahoo.WithRetries(cfg.Yahoo.Retries),
	)
	stooqCfg := stooq.Config{
		HistoryEndpoint: cfg.Stooq.HistoryEndpoint,
		SearchEndpoint:  cfg.Stooq.SearchEndpoint,
		Retries:         cfg.Stooq.Retries,
	}

	svc := &suggest.Service{
		Primary:   yahoo.NewSuggest(yahoo.Config{}, yahooClient, logger),
		Secondary: stooq.NewSuggest(stooqCfg, httpClient, logger),
		Log:       logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	items, _, err := svc.Suggest(ctx, query, limit)
	if err != nil {
		log.Fatalf("suggest: %v", err)
	}
	b, _ := json.MarshalIndent(items, "", "  ")
	fmt.Println(string(b))
}
