// Package stooq adapts Stooq's CSV download and symbol directory endpoints.
// Stooq is the scrape-based source: cheap and rarely throttled, but it only
// serves cash instruments (no ^-indices or =-pairs) and its download
// endpoint takes no range parameters, so filtering happens locally.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
	"github.com/Henners-111/Stock-Correlation/internal/httpx"
	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/symbols"
)

// Config controls both Stooq adapters.
type Config struct {
	Name            string // display name, default: stooq
	HistoryEndpoint string // CSV download endpoint
	SearchEndpoint  string // symbol directory endpoint
	Retries         int    // bounded retries on 429/5xx
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = "stooq"
	}
	if c.HistoryEndpoint == "" {
		c.HistoryEndpoint = "https://stooq.com/q/d/l/"
	}
	if c.SearchEndpoint == "" {
		c.SearchEndpoint = "https://stooq.com/cmp/r/"
	}
}

// History fetches daily series as CSV downloads.
type History struct {
	cfg    Config
	client *httpx.Client
	log    zerolog.Logger
}

func NewHistory(cfg Config, hc *httpx.Client, log zerolog.Logger) *History {
	cfg.defaults()
	return &History{cfg: cfg, client: hc, log: log}
}

func (h *History) Name() string { return h.cfg.Name }

// Fetch downloads the full daily history for symbol and filters it to the
// requested range. When the bare symbol yields nothing, the US home-market
// suffix is tried, matching how Stooq names American listings.
func (h *History) Fetch(ctx context.Context, symbol string, r dates.Range) ([]ohlcv.Row, error) {
	sym := strings.ToLower(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, nil
	}
	candidates := []string{sym}
	if !strings.Contains(sym, ".") {
		candidates = append(candidates, sym+".us")
	}

	var lastErr error
	for _, cand := range candidates {
		body, err := h.download(ctx, cand)
		if err != nil {
			lastErr = err
			continue
		}
		rows := filterRange(ohlcv.Sanitize(parseCSV(body)), r)
		if len(rows) > 0 {
			h.log.Debug().Str("symbol", cand).Int("rows", len(rows)).Msg("stooq series fetched")
			return rows, nil
		}
	}
	return nil, lastErr
}

func (h *History) download(ctx context.Context, sym string) (string, error) {
	u, err := url.Parse(h.cfg.HistoryEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("s", sym)
	q.Set("i", "d")
	u.RawQuery = q.Encode()

	body, err := h.get(ctx, u.String())
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || strings.EqualFold(trimmed, "no data") {
		return "", fmt.Errorf("stooq: no data for %s", sym)
	}
	if strings.Contains(trimmed, "Exceeded the daily hits limit") {
		return "", &httpx.StatusError{Code: http.StatusTooManyRequests, Body: "stooq daily hits limit"}
	}
	return body, nil
}

// get performs a GET with the bounded retry policy shared by all adapters.
func (h *History) get(ctx context.Context, u string) (string, error) {
	attempt := 0
	for {
		body, err := getOnce(ctx, h.client, u)
		if err == nil {
			return body, nil
		}
		if attempt < h.cfg.Retries && httpx.Retryable(err) {
			if serr := httpx.Sleep(ctx, httpx.Backoff(attempt)); serr != nil {
				return "", serr
			}
			attempt++
			continue
		}
		return "", err
	}
}

func getOnce(ctx context.Context, client *httpx.Client, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", err
	}
	res, err := client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return "", &httpx.StatusError{Code: res.StatusCode, Body: string(b)}
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// canonical column layouts for the expected download shape.
var positionalWithVolume = []string{"date", "open", "high", "low", "close", "volume"}
var positionalNoVolume = []string{"date", "open", "high", "low", "close"}

// parseCSV reshapes a Stooq download into the canonical frame. The expected
// shape is parsed positionally; anything else falls back to header names,
// lower-cased and underscored, with the date-bearing column located by
// probing the first data row.
func parseCSV(body string) ohlcv.Frame {
	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return ohlcv.Frame{}
	}

	header := records[0]
	var columns []string
	switch len(header) {
	case len(positionalWithVolume):
		columns = positionalWithVolume
	case len(positionalNoVolume):
		columns = positionalNoVolume
	default:
		columns = headerColumns(header, records[1])
	}

	frame := ohlcv.Frame{Columns: columns, Cells: make([][]any, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if len(rec) != len(columns) {
			continue
		}
		cells := make([]any, len(rec))
		for i, v := range rec {
			cells[i] = v
		}
		frame.Cells = append(frame.Cells, cells)
	}
	return frame
}

func headerColumns(header, sample []string) []string {
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if name == "adjclose" {
			name = "adj_close"
		}
		columns[i] = name
	}
	// Locate the date-bearing column when none is labeled as such.
	if !contains(columns, "date") {
		for i := range columns {
			if i < len(sample) {
				if _, ok := dates.ParseValue(strings.TrimSpace(sample[i])); ok {
					columns[i] = "date"
					break
				}
			}
		}
	}
	return columns
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func filterRange(rows []ohlcv.Row, r dates.Range) []ohlcv.Row {
	out := rows[:0]
	for _, row := range rows {
		if r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out
}

// directoryScore ranks every directory hit strictly below any Yahoo search
// score so the richer records win the merge on collision.
const directoryScore = -1

// Suggest adapts the symbol directory lookup to the suggestion capability.
type Suggest struct {
	cfg    Config
	client *httpx.Client
	log    zerolog.Logger
}

func NewSuggest(cfg Config, hc *httpx.Client, log zerolog.Logger) *Suggest {
	cfg.defaults()
	return &Suggest{cfg: cfg, client: hc, log: log}
}

func (s *Suggest) Name() string { return s.cfg.Name }

// Suggest queries the directory endpoint, which answers with pipe-delimited
// rows of symbol|name|exchange. The ".US" home-market suffix is stripped so
// directory hits collide with their Yahoo counterparts during the merge.
func (s *Suggest) Suggest(ctx context.Context, query string, limit int) ([]provider.Scored, error) {
	u, err := url.Parse(s.cfg.SearchEndpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	attempt := 0
	var body string
	for {
		body, err = getOnce(ctx, s.client, u.String())
		if err == nil {
			break
		}
		if attempt < s.cfg.Retries && httpx.Retryable(err) {
			if serr := httpx.Sleep(ctx, httpx.Backoff(attempt)); serr != nil {
				return nil, serr
			}
			attempt++
			continue
		}
		return nil, err
	}

	out := make([]provider.Scored, 0, limit)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "symbol") {
			continue
		}
		fields := strings.Split(line, "|")
		sym := strings.ToUpper(strings.TrimSpace(fields[0]))
		if sym == "" {
			continue
		}
		sym = strings.TrimSuffix(sym, ".US")

		item := provider.Suggestion{Symbol: sym}
		if len(fields) > 1 {
			item.Name = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			item.Exchange = strings.TrimSpace(fields[2])
		}
		if mapped, ok := symbols.RemapSuggestion(sym); ok {
			item.AliasOf = sym
			item.Symbol = mapped
		}
		out = append(out, provider.Scored{Suggestion: item, Score: directoryScore})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
