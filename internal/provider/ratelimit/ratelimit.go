package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Henners-111/Stock-Correlation/internal/dates"
	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
	"github.com/Henners-111/Stock-Correlation/internal/provider"
)

// MinInterval wraps a history provider and enforces a minimum time between
// upstream calls. Concurrent requests wait until the interval has elapsed
// since the last call, or return early if the context is canceled.
type MinInterval struct {
	P        provider.HistoryProvider
	Interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, symbol string, r dates.Range) ([]ohlcv.Row, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	rows, err := m.P.Fetch(ctx, symbol, r)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return rows, err
}
