package symbols

import "strings"

// aliases maps user-facing shorthand to the canonical provider symbol.
// Lookup is on trim(lower(input)). "intrus.m" is a historical misspelling
// of Stooq's US policy-rate series that leaked into saved frontend links.
var aliases = map[string]string{
	"gold":     "XAUUSD=X",
	"xauusd":   "XAUUSD=X",
	"us10y":    "^TNX",
	"10y":      "^TNX",
	"^tnx":     "^TNX",
	"us30y":    "^TYX",
	"30y":      "^TYX",
	"^tyx":     "^TYX",
	"intrus.m": "INRTUS.M",
}

// variantGroups lists ordered candidate spellings per canonical symbol:
// spot/futures/ETF/Stooq-native for gold, index/ETF-proxy/Stooq rate series
// for the treasury yields. Both yield tenors fall back to Stooq's single
// policy-rate series.
var variantGroups = map[string][]string{
	"XAUUSD=X": {"XAUUSD=X", "GC=F", "GLD", "XAUUSD"},
	"^TNX":     {"^TNX", "IEF", "INRTUS.M"},
	"^TYX":     {"^TYX", "TLT", "INRTUS.M"},
}

// suggestionRemap rewrites provider-specific suggestion symbols to the
// convention the history path can serve. Crypto pairs and gold futures map
// to Stooq-native symbols; the yield index maps to the Stooq rate series.
var suggestionRemap = map[string]string{
	"BTC-USD":  "BTC.V",
	"BTC=F":    "BTC.V",
	"ETH-USD":  "ETH.V",
	"ETH=F":    "ETH.V",
	"XAUUSD=X": "XAUUSD",
	"GC=F":     "XAUUSD",
	"^TNX":     "INRTUS.M",
}

// Normalize maps a raw user symbol to its canonical provider symbol.
// Unknown symbols pass through unchanged. Never fails.
func Normalize(raw string) string {
	if v, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return v
	}
	return raw
}

// Variants expands a raw symbol into the ordered candidate list tried by the
// fallback cascade: the normalized symbol first, then its synonym group, then
// the raw input if distinct from everything before it. Duplicates are
// suppressed by exact string match; provider-side casing is the adapters'
// concern.
func Variants(raw string) []string {
	norm := Normalize(raw)
	out := make([]string, 0, 5)
	seen := make(map[string]struct{}, 5)
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	add(norm)
	for _, v := range variantGroups[norm] {
		add(v)
	}
	add(raw)
	return out
}

// RemapSuggestion returns the history-servable symbol for a provider
// suggestion symbol and whether a remap applied. Lookup is on the
// upper-cased symbol.
func RemapSuggestion(symbol string) (string, bool) {
	v, ok := suggestionRemap[strings.ToUpper(strings.TrimSpace(symbol))]
	return v, ok
}
