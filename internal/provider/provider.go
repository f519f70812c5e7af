package provider

import (
	"context"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
)

// HistoryProvider fetches a daily series for one symbol over one range.
// An empty row slice with a nil error means the source had nothing for the
// symbol; errors are demoted to no-data by the orchestrator.
type HistoryProvider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, r dates.Range) ([]ohlcv.Row, error)
}

// SuggestProvider returns ranked symbol-suggestion candidates for a
// free-text query.
type SuggestProvider interface {
	Name() string
	Suggest(ctx context.Context, query string, limit int) ([]Scored, error)
}

// Suggestion is the externally visible suggestion shape. AliasOf records the
// user-facing symbol when a quirky provider symbol was remapped to the
// convention the history path can serve.
type Suggestion struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Exchange      string   `json:"exchange,omitempty"`
	Last          *float64 `json:"last,omitempty"`
	ChangePercent *float64 `json:"changePercent,omitempty"`
	AliasOf       string   `json:"aliasOf,omitempty"`
}

// Scored carries the transient ranking score used during merge. It never
// leaves the aggregation path.
type Scored struct {
	Suggestion
	Score float64
}
