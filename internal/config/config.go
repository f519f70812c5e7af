package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string   `json:"port"`
	RequestTimeoutSec int      `json:"request_timeout_sec"`
	AllowOrigins      []string `json:"allow_origins"`
}

type History struct {
	ProviderOrder []string `json:"provider_order"`
	IndexFirst    string   `json:"index_first"`
}

type Yahoo struct {
	ChartEndpoint         string `json:"chart_endpoint"`
	SearchEndpoint        string `json:"search_endpoint"`
	Retries               int    `json:"retries"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
}

type Stooq struct {
	HistoryEndpoint       string `json:"history_endpoint"`
	SearchEndpoint        string `json:"search_endpoint"`
	Retries               int    `json:"retries"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
}

type Suggest struct {
	CacheTTLSeconds int `json:"cache_ttl_sec"`
	CacheMaxEntries int `json:"cache_max_entries"`
	DefaultLimit    int `json:"default_limit"`
	MaxLimit        int `json:"max_limit"`
}

type Config struct {
	Server  Server  `json:"server"`
	History History `json:"history"`
	Yahoo   Yahoo   `json:"yahoo"`
	Stooq   Stooq   `json:"stooq"`
	Suggest Suggest `json:"suggest"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 20, AllowOrigins: []string{"*"}},
		History: History{
			ProviderOrder: []string{"stooq", "yahoo"},
			IndexFirst:    "yahoo",
		},
		Yahoo: Yahoo{
			Retries:              2,
			MaxRequestsPerMinute: 60,
			Burst:                10,
		},
		Stooq: Stooq{
			Retries:              2,
			MaxRequestsPerMinute: 30,
			Burst:                5,
		},
		Suggest: Suggest{
			CacheTTLSeconds: 300,
			CacheMaxEntries: 4096,
			DefaultLimit:    12,
			MaxLimit:        40,
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitCSV(v)
	}
	if v := os.Getenv("PROVIDER_ORDER"); v != "" {
		cfg.History.ProviderOrder = splitCSV(v)
	}
	if v := os.Getenv("INDEX_FIRST"); v != "" {
		cfg.History.IndexFirst = v
	}
	if v := os.Getenv("YAHOO_CHART_ENDPOINT"); v != "" {
		cfg.Yahoo.ChartEndpoint = v
	}
	if v := os.Getenv("YAHOO_SEARCH_ENDPOINT"); v != "" {
		cfg.Yahoo.SearchEndpoint = v
	}
	if v := os.Getenv("YAHOO_RETRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Yahoo.Retries = x
		}
	}
	if v := os.Getenv("YAHOO_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Yahoo.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("YAHOO_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Yahoo.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("YAHOO_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Yahoo.Burst = x
		}
	}
	if v := os.Getenv("STOOQ_HISTORY_ENDPOINT"); v != "" {
		cfg.Stooq.HistoryEndpoint = v
	}
	if v := os.Getenv("STOOQ_SEARCH_ENDPOINT"); v != "" {
		cfg.Stooq.SearchEndpoint = v
	}
	if v := os.Getenv("STOOQ_RETRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Stooq.Retries = x
		}
	}
	if v := os.Getenv("STOOQ_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Stooq.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("STOOQ_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Stooq.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("STOOQ_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Stooq.Burst = x
		}
	}
	if v := os.Getenv("SUGGEST_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Suggest.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("SUGGEST_CACHE_MAX_ENTRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Suggest.CacheMaxEntries = x
		}
	}
	if v := os.Getenv("SUGGEST_DEFAULT_LIMIT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Suggest.DefaultLimit = x
		}
	}
	if v := os.Getenv("SUGGEST_MAX_LIMIT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Suggest.MaxLimit = x
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
