package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
	"github.com/Henners-111/Stock-Correlation/internal/history"
	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/suggest"
)

type fakeHistory struct {
	name string
	rows map[string][]ohlcv.Row
}

func (f fakeHistory) Name() string { return f.name }

func (f fakeHistory) Fetch(_ context.Context, symbol string, _ dates.Range) ([]ohlcv.Row, error) {
	return f.rows[symbol], nil
}

type fakeSuggest struct {
	name  string
	items []provider.Scored
	err   error
}

func (f fakeSuggest) Name() string { return f.name }

func (f fakeSuggest) Suggest(context.Context, string, int) ([]provider.Scored, error) {
	return f.items, f.err
}

func newTestServer(hist []provider.HistoryProvider, primary, secondary provider.SuggestProvider) *server {
	return &server{
		history: &history.Service{Providers: hist, IndexFirst: "yahoo", Log: zerolog.Nop()},
		suggest: &suggest.Service{
			Primary:   primary,
			Secondary: secondary,
			Cache:     suggest.NewCache(time.Minute, 0),
			Log:       zerolog.Nop(),
		},
		defaultLimit: 12,
		maxLimit:     40,
		timeout:      5 * time.Second,
		log:          zerolog.Nop(),
	}
}

func TestHandleHistory_Success(t *testing.T) {
	t.Parallel()

	p := fakeHistory{name: "stooq", rows: map[string][]ohlcv.Row{
		"AAPL": {{Date: "2024-01-02", Open: 1, High: 2, Low: 0.5, Close: 1.5}},
	}}
	s := newTestServer([]provider.HistoryProvider{p}, fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleHistory(rr, httptest.NewRequest("GET", "/history?ticker=AAPL&start=2024-01-01&end=2024-01-10", nil))

	require.Equal(t, 200, rr.Code)
	var res history.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, "AAPL", res.Ticker)
	require.Equal(t, "stooq", res.Provider)
	require.Len(t, res.Data, 1)
	require.Empty(t, res.Error)
}

func TestHandleHistory_UpstreamFailureStays200(t *testing.T) {
	t.Parallel()

	s := newTestServer(
		[]provider.HistoryProvider{fakeHistory{name: "stooq"}, fakeHistory{name: "yahoo"}},
		fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"},
	)

	rr := httptest.NewRecorder()
	s.handleHistory(rr, httptest.NewRequest("GET", "/history?ticker=NOPE", nil))

	require.Equal(t, 200, rr.Code, "provider misses are reported in the body, not the status")
	var res history.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, "stooq: no data; yahoo: no data", res.Error)
	require.NotNil(t, res.Data)
	require.Empty(t, res.Data)
}

func TestHandleHistory_MissingTicker(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"})
	rr := httptest.NewRecorder()
	s.handleHistory(rr, httptest.NewRequest("GET", "/history", nil))
	require.Equal(t, 400, rr.Code)
}

func TestHandleSuggest_Success(t *testing.T) {
	t.Parallel()

	primary := fakeSuggest{name: "yahoo", items: []provider.Scored{
		{Suggestion: provider.Suggestion{Symbol: "AAPL", Name: "Apple Inc."}, Score: 500},
	}}
	s := newTestServer(nil, primary, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=aap", nil))
	require.Equal(t, 200, rr.Code)

	var resp suggestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "aap", resp.Query)
	require.False(t, resp.Cached)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "AAPL", resp.Data[0].Symbol)

	// Second identical request comes from cache.
	rr = httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=aap", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Cached)
}

func TestHandleSuggest_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest", nil))
	require.Equal(t, 400, rr.Code, "q is required")

	rr = httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=abcdefghijklmnopqrstuvwxy", nil))
	require.Equal(t, 400, rr.Code, "q is capped at 24 characters")

	rr = httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=aap&limit=0", nil))
	require.Equal(t, 400, rr.Code)

	rr = httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=aap&limit=abc", nil))
	require.Equal(t, 400, rr.Code)
}

func TestHandleSuggest_BothSourcesDownIs502(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil,
		fakeSuggest{name: "yahoo", err: errors.New("boom")},
		fakeSuggest{name: "stooq", err: errors.New("also boom")},
	)

	rr := httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=aap", nil))
	require.Equal(t, 502, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Error)
}

func TestHandleCorrelate_Success(t *testing.T) {
	t.Parallel()

	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08", "2024-01-09"}
	closes := []float64{100, 110, 105, 115, 120, 118}
	rowsA := make([]ohlcv.Row, len(dates))
	rowsB := make([]ohlcv.Row, len(dates))
	for i, d := range dates {
		rowsA[i] = ohlcv.Row{Date: d, Open: closes[i], High: closes[i], Low: closes[i], Close: closes[i]}
		rowsB[i] = ohlcv.Row{Date: d, Open: 2 * closes[i], High: 2 * closes[i], Low: 2 * closes[i], Close: 2 * closes[i]}
	}
	p := fakeHistory{name: "stooq", rows: map[string][]ohlcv.Row{"AAA": rowsA, "BBB": rowsB}}
	s := newTestServer([]provider.HistoryProvider{p}, fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleCorrelate(rr, httptest.NewRequest("GET", "/correlate?a=AAA&b=BBB&shock=10&window=5&sims=100", nil))
	require.Equal(t, 200, rr.Code)

	var resp correlateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Empty(t, resp.Error)
	require.Equal(t, "AAA", resp.TickerA)
	require.Equal(t, "stooq", resp.ProviderA)
	require.NotNil(t, resp.Analysis)
	require.Equal(t, 6, resp.Analysis.Overlap)
	require.InDelta(t, 1.0, resp.Analysis.Pearson, 1e-9)
	require.InDelta(t, 1.0, resp.Analysis.Beta, 1e-9)
	require.Len(t, resp.Analysis.Rolling, 1, "five return points fill one 5-day window")
	require.Equal(t, 100, resp.Analysis.MC.Samples)
}

func TestHandleCorrelate_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleCorrelate(rr, httptest.NewRequest("GET", "/correlate?a=AAA", nil))
	require.Equal(t, 400, rr.Code, "both tickers are required")

	rr = httptest.NewRecorder()
	s.handleCorrelate(rr, httptest.NewRequest("GET", "/correlate?a=AAA&b=BBB&shock=abc", nil))
	require.Equal(t, 400, rr.Code)

	rr = httptest.NewRecorder()
	s.handleCorrelate(rr, httptest.NewRequest("GET", "/correlate?a=AAA&b=BBB&sims=999999", nil))
	require.Equal(t, 400, rr.Code)
}

func TestHandleCorrelate_UpstreamMissStays200(t *testing.T) {
	t.Parallel()

	p := fakeHistory{name: "stooq", rows: map[string][]ohlcv.Row{
		"AAA": {{Date: "2024-01-02", Open: 1, High: 1, Low: 1, Close: 1}},
	}}
	s := newTestServer([]provider.HistoryProvider{p}, fakeSuggest{name: "yahoo"}, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleCorrelate(rr, httptest.NewRequest("GET", "/correlate?a=AAA&b=NOPE", nil))
	require.Equal(t, 200, rr.Code)

	var resp correlateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "NOPE")
	require.Contains(t, resp.Error, "no data")
	require.Nil(t, resp.Analysis)
}

func TestWithJSONHeaders_OriginAllowList(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	h := withJSONHeaders([]string{"https://app.example"}, inner)

	// A matching Origin is echoed back as a single value.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/history", nil)
	req.Header.Set("Origin", "https://app.example")
	h.ServeHTTP(rr, req)
	require.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rr.Header().Values("Vary"), "Origin")

	// A non-listed Origin gets no allow header at all.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/history", nil)
	req.Header.Set("Origin", "https://evil.example")
	h.ServeHTTP(rr, req)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	// Wildcard and empty lists allow everyone.
	for _, origins := range [][]string{nil, {"*"}} {
		rr = httptest.NewRecorder()
		withJSONHeaders(origins, inner).ServeHTTP(rr, httptest.NewRequest("GET", "/history", nil))
		require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHandleSuggest_LimitClamp(t *testing.T) {
	t.Parallel()

	items := make([]provider.Scored, 60)
	for i := range items {
		items[i] = provider.Scored{
			Suggestion: provider.Suggestion{Symbol: "S" + string(rune('A'+i%26)) + string(rune('A'+i/26))},
			Score:      float64(60 - i),
		}
	}
	s := newTestServer(nil, fakeSuggest{name: "yahoo", items: items}, fakeSuggest{name: "stooq"})

	rr := httptest.NewRecorder()
	s.handleSuggest(rr, httptest.NewRequest("GET", "/suggest?q=s&limit=100", nil))
	require.Equal(t, 200, rr.Code)

	var resp suggestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 40, "limit is clamped to the configured maximum")
}
