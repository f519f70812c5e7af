package main

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henners-111/Stock-Correlation/internal/config"
	"github.com/Henners-111/Stock-Correlation/internal/history"
	"github.com/Henners-111/Stock-Correlation/internal/httpx"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/provider/ratelimit"
	"github.com/Henners-111/Stock-Correlation/internal/provider/stooq"
	"github.com/Henners-111/Stock-Correlation/internal/provider/yahoo"
	"github.com/Henners-111/Stock-Correlation/internal/suggest"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	port := cfg.Server.Port
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second

	httpClient := httpx.New(timeout)

	yopts := []yahoo.ClientOption{
		yahoo.WithHTTPClient(httpClient.HTTP),
		yahoo.WithRetries(cfg.Yahoo.Retries),
	}
	if cfg.Yahoo.ChartEndpoint != "" {
		yopts = append(yopts, yahoo.WithChartURL(cfg.Yahoo.ChartEndpoint))
	}
	if cfg.Yahoo.SearchEndpoint != "" {
		yopts = append(yopts, yahoo.WithSearchURL(cfg.Yahoo.SearchEndpoint))
	}
	yahooClient := yahoo.NewClient(yopts...)

	stooqCfg := stooq.Config{
		HistoryEndpoint: cfg.Stooq.HistoryEndpoint,
		SearchEndpoint:  cfg.Stooq.SearchEndpoint,
		Retries:         cfg.Stooq.Retries,
	}

	byName := map[string]provider.HistoryProvider{
		"yahoo": throttled(yahoo.NewHistory(yahoo.Config{}, yahooClient, log),
			cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst, cfg.Yahoo.MinRequestIntervalSec),
		"stooq": throttled(stooq.NewHistory(stooqCfg, httpClient, log),
			cfg.Stooq.MaxRequestsPerMinute, cfg.Stooq.Burst, cfg.Stooq.MinRequestIntervalSec),
	}
	var providers []provider.HistoryProvider
	for _, name := range cfg.History.ProviderOrder {
		if p, ok := byName[name]; ok {
			providers = append(providers, p)
		} else {
			log.Warn().Str("provider", name).Msg("unknown provider in provider_order; skipping")
		}
	}

	srvState := &server{
		history: &history.Service{
			Providers:  providers,
			IndexFirst: cfg.History.IndexFirst,
			Log:        log,
		},
		suggest: &suggest.Service{
			Primary:   yahoo.NewSuggest(yahoo.Config{}, yahooClient, log),
			Secondary: stooq.NewSuggest(stooqCfg, httpClient, log),
			Cache: suggest.NewCache(
				time.Duration(cfg.Suggest.CacheTTLSeconds)*time.Second,
				cfg.Suggest.CacheMaxEntries,
			),
			Timeout: timeout,
			Log:     log,
		},
		defaultLimit: cfg.Suggest.DefaultLimit,
		maxLimit:     cfg.Suggest.MaxLimit,
		timeout:      timeout,
		log:          log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srvState.handleRoot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/history", srvState.handleHistory)
	mux.HandleFunc("/suggest", srvState.handleSuggest)
	mux.HandleFunc("/correlate", srvState.handleCorrelate)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           withJSONHeaders(cfg.Server.AllowOrigins, withGzip(recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// throttled wraps a provider per the configured rate knobs. A token bucket
// with burst is preferred when an RPM cap is set, otherwise min-interval.
func throttled(p provider.HistoryProvider, rpm, burst, minIntervalSec int) provider.HistoryProvider {
	if rpm > 0 {
		if burst <= 0 {
			burst = 1
		}
		return &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(rpm)/60.0, burst)}
	}
	if minIntervalSec > 0 {
		return &ratelimit.MinInterval{P: p, Interval: time.Duration(minIntervalSec) * time.Second}
	}
	return p
}

// withJSONHeaders sets the response content type and CORS headers. The
// Access-Control-Allow-Origin header is single-valued: with an allow list the
// request's Origin is echoed back only when it matches.
func withJSONHeaders(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
