// Package marketdata provides cil.MarketDataPort implementations: an
// in-memory fixture for tests/dev, a mutex-guarded map keyed by the query
// dimensions.
package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smilemakc/cil/internal/application/cil"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

type seriesKey struct {
	symbol string
	timeframe string
}

// FixtureStore is a deterministic, in-memory cil.MarketDataPort backed by
// caller-loaded bars, used in tests and local development in place of a real
// exchange feed.
type FixtureStore struct {
	mu sync.RWMutex
	series map[seriesKey][]cil.OHLCVBar
}

// NewFixtureStore builds an empty FixtureStore.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{series: make(map[seriesKey][]cil.OHLCVBar)}
}

// LoadBars replaces the bar series for (symbol, timeframe), sorting by time
// and flagging bars that follow a detected gap (a missing expected bar,
// inferred from the timeframe's nominal duration — : "implementations
// must return ... explicit gaps rather than silently interpolating").
func (f *FixtureStore) LoadBars(symbol, timeframe string, bars []cil.OHLCVBar) {
	sorted := append([]cil.OHLCVBar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	step := nominalStep(timeframe)
	for i := 1; i < len(sorted); i++ {
		if step > 0 && sorted[i].Time.Sub(sorted[i-1].Time) > step+step/2 {
			sorted[i].Gap = true
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[seriesKey{symbol, timeframe}] = sorted
}

// OHLCV implements cil.MarketDataPort.
func (f *FixtureStore) OHLCV(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]cil.OHLCVBar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	series, ok := f.series[seriesKey{symbol, timeframe}]
	if !ok {
		return nil, domerrors.Newf(domerrors.CodeNotFound, "no fixture series loaded for %s/%s", symbol, timeframe)
	}

	var out []cil.OHLCVBar
	for _, bar := range series {
		if bar.Time.Before(from) || bar.Time.After(to) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

func nominalStep(timeframe string) time.Duration {
	switch timeframe {
		case "1m":
			return time.Minute
		case "5m":
			return 5 * time.Minute
		case "15m":
			return 15 * time.Minute
		case "1h":
			return time.Hour
		case "4h":
			return 4 * time.Hour
		case "1d":
			return 24 * time.Hour
		default:
			return 0
	}
}
