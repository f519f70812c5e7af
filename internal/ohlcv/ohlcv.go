// Package ohlcv defines the canonical daily bar schema and the sanitation
// pipeline that turns a provider's reshaped tabular response into valid rows.
package ohlcv

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
)

// Row is one trading day of one instrument. Open/high/low/close are always
// finite; volume is optional and omitted when the provider had none.
type Row struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// Frame is the common tabular shape adapters hand to Sanitize: lower-cased
// underscored column names over untyped cells (strings from CSV sources,
// floats from JSON sources).
type Frame struct {
	Columns []string
	Cells   [][]any
}

// Col returns the index of a named column, or -1.
func (f Frame) Col(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

var required = []string{"date", "open", "high", "low", "close"}

// Sanitize converts a frame into canonical rows. A frame missing any core
// column yields no rows rather than an error; the orchestrator treats that
// as "no usable data". Rows are kept only when all four prices coerce to
// finite floats and the date coerces to a calendar date. Output is sorted
// ascending by date with same-date rows collapsed to the last occurrence.
func Sanitize(f Frame) []Row {
	idx := make(map[string]int, len(required)+1)
	for _, name := range required {
		i := f.Col(name)
		if i < 0 {
			return nil
		}
		idx[name] = i
	}
	volIdx := f.Col("volume")

	rows := make([]Row, 0, len(f.Cells))
	for _, cells := range f.Cells {
		if len(cells) < len(f.Columns) {
			continue
		}
		date, ok := coerceDate(cells[idx["date"]])
		if !ok {
			continue
		}
		open, ok := coerceFloat(cells[idx["open"]])
		if !ok {
			continue
		}
		high, ok := coerceFloat(cells[idx["high"]])
		if !ok {
			continue
		}
		low, ok := coerceFloat(cells[idx["low"]])
		if !ok {
			continue
		}
		closep, ok := coerceFloat(cells[idx["close"]])
		if !ok {
			continue
		}
		row := Row{Date: date, Open: open, High: high, Low: low, Close: closep}
		if volIdx >= 0 {
			if v, ok := coerceFloat(cells[volIdx]); ok {
				row.Volume = &v
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	// Collapse duplicate dates keeping the last row seen.
	out := rows[:0]
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].Date == r.Date {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

// coerceFloat accepts the cell types adapters produce and rejects anything
// non-finite; NaN and infinities are treated the same as missing values.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceDate(v any) (string, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.UTC().Format("2006-01-02"), true
	case string:
		t, ok := dates.ParseValue(strings.TrimSpace(x))
		if !ok {
			return "", false
		}
		return t.Format("2006-01-02"), true
	default:
		return "", false
	}
}
