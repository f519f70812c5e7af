// Package history drives the provider fallback cascade for historical
// series: provider by provider, symbol variant by variant, stopping at the
// first non-empty normalized result.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/symbols"
)

// Result is the HTTP-facing history shape. Provider failures never surface
// as transport errors; Error carries the joined no-data notes instead.
type Result struct {
	Ticker         string      `json:"ticker"`
	Data           []ohlcv.Row `json:"data"`
	Provider       string      `json:"provider,omitempty"`
	ProviderSymbol string      `json:"providerSymbol,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// Service holds the prioritized provider list.
type Service struct {
	// Providers in default priority order.
	Providers []provider.HistoryProvider
	// IndexFirst names the provider forced to the front for index- or
	// FX-shaped symbols, which the scrape-based source cannot serve.
	IndexFirst string
	Log        zerolog.Logger
}

// Get fetches the historical series for a raw ticker and raw date range.
func (s *Service) Get(ctx context.Context, rawTicker, rawStart, rawEnd string) Result {
	norm := symbols.Normalize(rawTicker)
	variants := symbols.Variants(rawTicker)
	r := dates.NewRange(rawStart, rawEnd)

	var (
		found    bool
		rows     []ohlcv.Row
		provName string
		symUsed  string
		notes    []string
	)

	for _, p := range s.prioritized(norm) {
		for _, variant := range variants {
			got, err := p.Fetch(ctx, variant, r)
			if err != nil {
				// Adapter failures are demoted to no-data; the next
				// variant or provider may still succeed.
				s.Log.Debug().Err(err).Str("provider", p.Name()).Str("symbol", variant).Msg("history fetch failed")
				continue
			}
			if len(got) > 0 {
				found = true
				rows = got
				provName = p.Name()
				symUsed = variant
				break
			}
		}
		if found {
			break
		}
		notes = append(notes, fmt.Sprintf("%s: no data", p.Name()))
	}

	if !found {
		return Result{Ticker: rawTicker, Data: []ohlcv.Row{}, Error: strings.Join(notes, "; ")}
	}

	res := Result{Ticker: rawTicker, Data: rows, Provider: provName}
	if symUsed != rawTicker {
		res.ProviderSymbol = symUsed
	}
	return res
}

// prioritized reorders the provider list for one request. Index- and
// FX-shaped symbols (leading ^ or an embedded =) force the metadata-rich
// source first regardless of the configured default order.
func (s *Service) prioritized(normalized string) []provider.HistoryProvider {
	if s.IndexFirst == "" || !indexOrFXShaped(normalized) {
		return s.Providers
	}
	out := make([]provider.HistoryProvider, 0, len(s.Providers))
	for _, p := range s.Providers {
		if p.Name() == s.IndexFirst {
			out = append(out, p)
		}
	}
	for _, p := range s.Providers {
		if p.Name() != s.IndexFirst {
			out = append(out, p)
		}
	}
	return out
}

func indexOrFXShaped(symbol string) bool {
	return strings.HasPrefix(symbol, "^") || strings.Contains(symbol, "=")
}
