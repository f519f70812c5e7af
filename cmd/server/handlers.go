package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henners-111/Stock-Correlation/internal/correlate"
	"github.com/Henners-111/Stock-Correlation/internal/history"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/suggest"
)

const maxQueryLen = 24

type server struct {
	history      *history.Service
	suggest      *suggest.Service
	defaultLimit int
	maxLimit     int
	timeout      time.Duration
	log          zerolog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type suggestResponse struct {
	Query  string                `json:"query"`
	Data   []provider.Suggestion `json:"data"`
	Cached bool                  `json:"cached"`
}

type infoResponse struct {
	Service   string   `json:"service"`
	Endpoints []string `json:"endpoints"`
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Service:   "market-data",
		Endpoints: []string{"/history", "/suggest", "/correlate", "/healthz"},
	})
}

// handleHistory serves the fallback cascade result. Upstream failures never
// surface as transport errors here; the body carries the provider notes and
// the status stays 200 so clients can always decode one shape.
func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	ticker := strings.TrimSpace(r.URL.Query().Get("ticker"))
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing ticker query param"})
		return
	}
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res := s.history.Get(ctx, ticker, start, end)
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing q query param"})
		return
	}
	if len(q) > maxQueryLen {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query too long"})
		return
	}
	limit := s.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	items, cached, err := s.suggest.Suggest(ctx, q, limit)
	if err != nil {
		if errors.Is(err, suggest.ErrUpstream) {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		s.log.Error().Err(err).Str("query", q).Msg("suggest failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if items == nil {
		items = []provider.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestResponse{Query: q, Data: items, Cached: cached})
}

type correlateResponse struct {
	TickerA   string              `json:"tickerA"`
	TickerB   string              `json:"tickerB"`
	ProviderA string              `json:"providerA,omitempty"`
	ProviderB string              `json:"providerB,omitempty"`
	Analysis  *correlate.Analysis `json:"analysis,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// handleCorrelate fetches two historical series and reports their joint
// statistics. Like /history, upstream misses are carried in the body with a
// 200 status; only malformed requests get a 4xx.
func (s *server) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	q := r.URL.Query()
	tickerA := strings.TrimSpace(q.Get("a"))
	tickerB := strings.TrimSpace(q.Get("b"))
	if tickerA == "" || tickerB == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing a or b query param"})
		return
	}
	start, end := q.Get("start"), q.Get("end")

	// Shock arrives as a percentage, matching the input the analysis was
	// designed around.
	shockPct := 10.0
	if v := q.Get("shock"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "shock must be a number"})
			return
		}
		shockPct = f
	}
	window := 0
	if v := q.Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "window must be a positive integer"})
			return
		}
		window = n
	}
	sims := 0
	if v := q.Get("sims"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50000 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "sims must be between 1 and 50000"})
			return
		}
		sims = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resCh := make(chan history.Result, 1)
	go func() { resCh <- s.history.Get(ctx, tickerB, start, end) }()
	resA := s.history.Get(ctx, tickerA, start, end)
	resB := <-resCh

	resp := correlateResponse{
		TickerA:   tickerA,
		TickerB:   tickerB,
		ProviderA: resA.Provider,
		ProviderB: resB.Provider,
	}
	var notes []string
	if resA.Error != "" {
		notes = append(notes, tickerA+": "+resA.Error)
	}
	if resB.Error != "" {
		notes = append(notes, tickerB+": "+resB.Error)
	}
	if len(notes) > 0 {
		resp.Error = strings.Join(notes, "; ")
		writeJSON(w, http.StatusOK, resp)
		return
	}

	analysis, err := correlate.Analyze(resA.Data, resB.Data, correlate.Options{
		Shock:  shockPct / 100,
		Window: window,
		Sims:   sims,
	})
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Analysis = analysis
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
