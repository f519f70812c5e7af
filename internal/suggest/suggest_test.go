package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Henners-111/Stock-Correlation/internal/httpx"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
)

type fakeSource struct {
	name  string
	items []provider.Scored
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Suggest(ctx context.Context, _ string, _ int) ([]provider.Scored, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.items, f.err
}

func scored(symbol, name string, score float64) provider.Scored {
	return provider.Scored{
		Suggestion: provider.Suggestion{Symbol: symbol, Name: name},
		Score:      score,
	}
}

func newSuggestService(primary, secondary provider.SuggestProvider) *Service {
	return &Service{
		Primary:   primary,
		Secondary: secondary,
		Cache:     NewCache(time.Minute, 0),
		Log:       zerolog.Nop(),
	}
}

func TestSuggest_MergesAndDeduplicatesBySymbol(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", items: []provider.Scored{
		scored("AAPL", "Apple Inc.", 500),
	}}
	secondary := &fakeSource{name: "stooq", items: []provider.Scored{
		scored("aapl", "APPLE", -1),
		scored("MSFT", "MICROSOFT", -1),
	}}

	got, cached, err := newSuggestService(primary, secondary).Suggest(context.Background(), "aap", 10)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, []provider.Suggestion{
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "MSFT", Name: "MICROSOFT"},
	}, got, "first occurrence keeps its richer fields; scores never leak out")
}

func TestSuggest_SortsByScoreAndTruncates(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", items: []provider.Scored{
		scored("GLD", "SPDR Gold Shares", 479.75),
		scored("XAUUSD", "Gold Spot", 529.5),
		scored("GDX", "Gold Miners ETF", 380),
	}}
	secondary := &fakeSource{name: "stooq", items: []provider.Scored{
		scored("GLDM", "GOLD MINI", -1),
	}}

	got, _, err := newSuggestService(primary, secondary).Suggest(context.Background(), "gold", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "XAUUSD", got[0].Symbol)
	require.Equal(t, "GLD", got[1].Symbol)
	require.Equal(t, "GDX", got[2].Symbol)
}

func TestSuggest_SingleSourceFailureIsTolerated(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", err: errors.New("boom")}
	secondary := &fakeSource{name: "stooq", items: []provider.Scored{
		scored("MSFT", "MICROSOFT", -1),
	}}

	got, _, err := newSuggestService(primary, secondary).Suggest(context.Background(), "msf", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "MSFT", got[0].Symbol)
}

func TestSuggest_BothSourcesFailing(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", err: errors.New("boom")}
	secondary := &fakeSource{name: "stooq", err: errors.New("also boom")}

	_, _, err := newSuggestService(primary, secondary).Suggest(context.Background(), "aap", 10)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestSuggest_RateLimitWithEmptyFallback(t *testing.T) {
	t.Parallel()

	limited := &httpx.StatusError{Code: 429, Body: "slow down"}
	primary := &fakeSource{name: "yahoo", err: limited}
	secondary := &fakeSource{name: "stooq"}

	_, _, err := newSuggestService(primary, secondary).Suggest(context.Background(), "aap", 10)
	require.ErrorIs(t, err, ErrUpstream)

	// With usable rows from the other source the limit is absorbed.
	secondary.items = []provider.Scored{scored("AAPL", "APPLE", -1)}
	got, _, err := newSuggestService(primary, secondary).Suggest(context.Background(), "aap", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSuggest_ServesRepeatQueriesFromCache(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", items: []provider.Scored{
		scored("AAPL", "Apple Inc.", 500),
	}}
	secondary := &fakeSource{name: "stooq"}
	svc := newSuggestService(primary, secondary)

	_, cached, err := svc.Suggest(context.Background(), "aap", 10)
	require.NoError(t, err)
	require.False(t, cached)

	got, cached, err := svc.Suggest(context.Background(), "AAP", 10)
	require.NoError(t, err)
	require.True(t, cached, "cache key ignores query case")
	require.Len(t, got, 1)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)

	// A different limit is a different key.
	_, cached, err = svc.Suggest(context.Background(), "aap", 5)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 2, primary.calls)
}

func TestSuggest_SurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", items: []provider.Scored{
		scored("AAPL", "Apple Inc.", 500),
	}}
	secondary := &fakeSource{name: "stooq"}
	svc := newSuggestService(primary, secondary)

	// The coalesced fetch runs detached, so a caller that has already gone
	// away still produces a result for the cohort sharing its flight.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, cached, err := svc.Suggest(ctx, "aap", 10)
	require.NoError(t, err)
	require.False(t, cached)
	require.Len(t, got, 1)
	require.Equal(t, "AAPL", got[0].Symbol)
}

func TestSuggest_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	primary := &fakeSource{name: "yahoo", err: errors.New("boom")}
	secondary := &fakeSource{name: "stooq", err: errors.New("also boom")}
	svc := newSuggestService(primary, secondary)

	_, _, err := svc.Suggest(context.Background(), "aap", 10)
	require.ErrorIs(t, err, ErrUpstream)

	primary.err = nil
	primary.items = []provider.Scored{scored("AAPL", "Apple Inc.", 500)}
	got, cached, err := svc.Suggest(context.Background(), "aap", 10)
	require.NoError(t, err)
	require.False(t, cached)
	require.Len(t, got, 1)
}
