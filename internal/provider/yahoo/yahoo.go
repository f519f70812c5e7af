// Package yahoo adapts the Yahoo Finance chart and search APIs to the
// engine's provider capabilities. Yahoo is the metadata-rich source: it
// serves index and FX instruments and scores its own search results.
package yahoo

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
	"github.com/Henners-111/Stock-Correlation/internal/symbols"
)

// Config controls both Yahoo adapters.
type Config struct {
	Name string // display name, default: yahoo
}

// History fetches daily series through the chart API.
type History struct {
	cfg    Config
	client *Client
	log    zerolog.Logger
}

func NewHistory(cfg Config, client *Client, log zerolog.Logger) *History {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	return &History{cfg: cfg, client: client, log: log}
}

func (h *History) Name() string { return h.cfg.Name }

// Fetch retrieves the daily series for symbol. The chart API accepts unix
// range bounds directly; unparseable bounds degrade to an open interval so
// a sloppy request still fails soft rather than erroring here.
func (h *History) Fetch(ctx context.Context, symbol string, r dates.Range) ([]ohlcv.Row, error) {
	var period1, period2 int64
	if t, ok := dates.ToTime(r.Start); ok {
		period1 = t.Unix()
	}
	if t, ok := dates.ToTime(r.End); ok {
		// period2 is exclusive; push it past the requested end day.
		period2 = t.Add(24 * time.Hour).Unix()
	} else {
		period2 = time.Now().Unix()
	}

	data, err := h.client.Chart(ctx, symbol, period1, period2)
	if err != nil {
		return nil, err
	}
	if len(data.Timestamps) == 0 {
		return nil, nil
	}

	frame := chartFrame(data)
	rows := ohlcv.Sanitize(frame)
	h.log.Debug().Str("symbol", symbol).Int("rows", len(rows)).Msg("yahoo chart fetched")
	return rows, nil
}

// chartFrame reshapes the flattened chart payload into the canonical
// tabular form. The adjusted-close series appears under one of two labels
// depending on the payload variant; both land on adj_close here.
func chartFrame(data *ChartData) ohlcv.Frame {
	f := ohlcv.Frame{
		Columns: []string{"date", "open", "high", "low", "close", "volume", "adj_close"},
		Cells:   make([][]any, 0, len(data.Timestamps)),
	}
	at := func(s []*float64, i int) any {
		if i >= len(s) || s[i] == nil {
			return nil
		}
		return *s[i]
	}
	for i, ts := range data.Timestamps {
		adj := at(data.AdjClose, i)
		if adj == nil {
			adj = at(data.Close, i)
		}
		f.Cells = append(f.Cells, []any{
			time.Unix(ts, 0).UTC(),
			at(data.Open, i),
			at(data.High, i),
			at(data.Low, i),
			at(data.Close, i),
			at(data.Volume, i),
			adj,
		})
	}
	return f
}

// categoryBonus ranks recognized instrument categories; anything absent
// from this table is dropped from suggestions.
var categoryBonus = map[string]float64{
	"EQUITY":         100,
	"ETF":            80,
	"INDEX":          60,
	"CRYPTOCURRENCY": 50,
	"FUTURE":         40,
	"CURRENCY":       30,
	"MUTUALFUND":     25,
	"FUND":           20,
	"BOND":           10,
}

const unknownCategoryBonus = 5

// positionPenalty preserves Yahoo's own ordering among same-category ties.
const positionPenalty = 0.25

// Suggest adapts the search API to the suggestion capability.
type Suggest struct {
	cfg    Config
	client *Client
	log    zerolog.Logger
}

func NewSuggest(cfg Config, client *Client, log zerolog.Logger) *Suggest {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	return &Suggest{cfg: cfg, client: client, log: log}
}

func (s *Suggest) Name() string { return s.cfg.Name }

func (s *Suggest) Suggest(ctx context.Context, query string, limit int) ([]provider.Scored, error) {
	quotes, err := s.client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]provider.Scored, 0, len(quotes))
	for i, q := range quotes {
		sym := strings.ToUpper(strings.TrimSpace(q.Symbol))
		if sym == "" {
			continue
		}
		category := strings.ToUpper(q.QuoteType)
		bonus, recognized := categoryBonus[category]
		if !recognized {
			if category != "" {
				s.log.Debug().Str("symbol", sym).Str("category", category).Msg("dropping unrecognized category")
				continue
			}
			bonus = unknownCategoryBonus
		}

		item := provider.Suggestion{
			Symbol:        sym,
			Name:          displayName(q),
			Exchange:      q.Exchange,
			Last:          q.Last,
			ChangePercent: q.ChangePercent,
		}
		if mapped, ok := symbols.RemapSuggestion(sym); ok {
			item.AliasOf = sym
			item.Symbol = mapped
		}
		out = append(out, provider.Scored{
			Suggestion: item,
			Score:      q.Score + bonus - positionPenalty*float64(i),
		})
	}
	return out, nil
}

func displayName(q SearchQuote) string {
	if q.LongName != "" {
		return q.LongName
	}
	return q.ShortName
}
