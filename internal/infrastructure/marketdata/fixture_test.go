package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cil/internal/application/cil"
)

func TestFixtureStore_OHLCV_FiltersWindowAndFlagsGaps(t *testing.T) {
	store := NewFixtureStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.LoadBars("BTCUSD", "1m", []cil.OHLCVBar{
			{Time: base, Close: 100},
			{Time: base.Add(time.Minute), Close: 101},
			{Time: base.Add(5 * time.Minute), Close: 105}, // gap: skipped 3 expected bars
	})

	bars, err := store.OHLCV(context.Background(), "BTCUSD", "1m", base, base.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.False(t, bars[0].Gap)
	assert.False(t, bars[1].Gap)
	assert.True(t, bars[2].Gap)
}

func TestFixtureStore_OHLCV_NotFound(t *testing.T) {
	store := NewFixtureStore()
	_, err := store.OHLCV(context.Background(), "ETHUSD", "1h", time.Now(), time.Now())
	assert.Error(t, err)
}
