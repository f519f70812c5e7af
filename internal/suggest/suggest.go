// Package suggest aggregates ticker suggestions from the metadata-rich and
// scrape-based sources into one deduplicated, scored, cached result set.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Henners-111/Stock-Correlation/internal/httpx"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
)

// ErrUpstream marks the gateway-failure class: no suggestion source could
// produce anything usable. It is the only suggestion error callers see.
var ErrUpstream = errors.New("suggestion sources unavailable")

// Service merges suggestions from two providers. Primary is queried first in
// merge precedence (its richer records win symbol collisions); both sources
// are fetched concurrently since the merge needs them regardless of order.
type Service struct {
	Primary   provider.SuggestProvider
	Secondary provider.SuggestProvider
	Cache     *Cache
	// Timeout bounds one coalesced upstream fetch. Defaults to 15s.
	Timeout time.Duration
	Log     zerolog.Logger

	sf singleflight.Group
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 15 * time.Second
}

// Suggest returns up to limit merged suggestions for query, reporting
// whether the result was served from cache.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]provider.Suggestion, bool, error) {
	if items, ok := s.Cache.Get(query, limit); ok {
		return items, true, nil
	}

	// Coalesce concurrent misses for the same key into one upstream fetch.
	// The fetch runs on a detached context with its own deadline: the first
	// caller cancelling must not fail every coalesced waiter.
	sfKey := strings.ToLower(query) + "|" + strconv.Itoa(limit)
	v, err, _ := s.sf.Do(sfKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()
		items, err := s.fetch(fetchCtx, query, limit)
		if err != nil {
			return nil, err
		}
		s.Cache.Put(query, limit, items)
		return items, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]provider.Suggestion), false, nil
}

func (s *Service) fetch(ctx context.Context, query string, limit int) ([]provider.Suggestion, error) {
	type result struct {
		items []provider.Scored
		err   error
	}
	primCh := make(chan result, 1)
	secCh := make(chan result, 1)
	go func() {
		items, err := s.Primary.Suggest(ctx, query, limit)
		primCh <- result{items, err}
	}()
	go func() {
		items, err := s.Secondary.Suggest(ctx, query, limit)
		secCh <- result{items, err}
	}()
	prim, sec := <-primCh, <-secCh

	if prim.err != nil {
		s.Log.Warn().Err(prim.err).Str("provider", s.Primary.Name()).Msg("suggestion source failed")
	}
	if sec.err != nil {
		s.Log.Warn().Err(sec.err).Str("provider", s.Secondary.Name()).Msg("suggestion source failed")
	}
	if prim.err != nil && sec.err != nil {
		return nil, fmt.Errorf("%w: %s: %v; %s: %v", ErrUpstream,
			s.Primary.Name(), prim.err, s.Secondary.Name(), sec.err)
	}
	// An explicit rate-limit or server refusal is surfaced when the other
	// source produced nothing usable either.
	if httpx.RateLimited(prim.err) && len(sec.items) == 0 {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, s.Primary.Name(), prim.err)
	}
	if httpx.RateLimited(sec.err) && len(prim.items) == 0 {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, s.Secondary.Name(), sec.err)
	}

	return merge(prim.items, sec.items, limit), nil
}

// merge aggregates by canonical upper-cased symbol with first occurrence
// winning, sorts by score descending, truncates, and strips the transient
// score.
func merge(primary, secondary []provider.Scored, limit int) []provider.Suggestion {
	merged := make([]provider.Scored, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	for _, batch := range [][]provider.Scored{primary, secondary} {
		for _, item := range batch {
			sym := strings.ToUpper(item.Symbol)
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}
			item.Symbol = sym
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > limit {
		merged = merged[:limit]
	}

	out := make([]provider.Suggestion, len(merged))
	for i, item := range merged {
		out[i] = item.Suggestion
	}
	return out
}
