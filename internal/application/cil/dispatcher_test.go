package cil

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cil/internal/domain"
	"github.com/smilemakc/cil/internal/infrastructure/config"
	"github.com/smilemakc/cil/internal/infrastructure/storage"
)

func testBraidQualityGate() config.BraidQualityGate {
	return config.BraidQualityGate{}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeMarketData struct {
	bars []OHLCVBar
	err error
}

func (f fakeMarketData) OHLCV(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]OHLCVBar, error) {
	return f.bars, f.err
}

func newActivePrediction(t *testing.T, now time.Time, symbol, groupSignature string, target, stop float64, maxHoldMS int64) *domain.Strand {
	t.Helper()
	content, err := domain.EncodeContent(domain.PredictionContent{
			GroupSignature: groupSignature, EntryPrice: 100, TargetPrice: target, StopLoss: stop,
			MaxHoldDuration: maxHoldMS, MatchQuality: domain.MatchFirstTime,
	})
	require.NoError(t, err)
	p, err := domain.New(domain.Params{
			Kind: domain.KindPrediction, BraidLevel: 1, Symbol: symbol, Timeframe: "1h",
			Content: content, TrackingStatus: domain.StatusActive,
		}, now)
	require.NoError(t, err)
	return p
}

func TestDispatcher_ResolutionSweep_ExpiresOnTimeoutWithNoMarketData(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	p := newActivePrediction(t, now, "BTCUSD", "sig-1", 110, 90, 1000)
	_, err := store.Append(context.Background(), p)
	require.NoError(t, err)

	d := NewDispatcher(store, nil, nil, nil, nil, nil, nil, DispatcherConfig{}, zerolog.Nop(), fixedClock{now: now.Add(2 * time.Second)})
	d.ResolutionSweep(context.Background())

	got, err := store.Get(context.Background(), p.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.TrackingStatus())
}

func TestDispatcher_ResolutionSweep_CompletesAndReviewsOnTargetHit(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	p := newActivePrediction(t, now, "BTCUSD", "sig-2", 110, 90, 10_000_000)
	_, err := store.Append(context.Background(), p)
	require.NoError(t, err)

	md := fakeMarketData{bars: []OHLCVBar{
			{Time: now.Add(time.Minute), Open: 100, High: 112, Low: 99, Close: 111},
	}}
	outcomes := NewOutcomeAnalyzer(store, md)
	clusters := NewClusterEngine(store, 0)
	d := NewDispatcher(store, md, outcomes, clusters, nil, nil, nil, DispatcherConfig{}, zerolog.Nop(), fixedClock{now: now.Add(time.Minute)})

	d.ResolutionSweep(context.Background())

	got, err := store.Get(context.Background(), p.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.TrackingStatus())

	reviews, err := store.Query(context.Background(), domain.QueryFilter{Kind: domain.KindPredictionReview})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.NotEmpty(t, reviews[0].ClusterKey())
}

func TestDispatcher_CancelDerived(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	match := newActivePrediction(t, now, "BTCUSD", "sig-match", 200, 50, 1_000_000)
	other := newActivePrediction(t, now, "BTCUSD", "sig-other", 200, 50, 1_000_000)
	_, err := store.Append(context.Background(), match)
	require.NoError(t, err)
	_, err = store.Append(context.Background(), other)
	require.NoError(t, err)

	d := NewDispatcher(store, nil, nil, nil, nil, nil, nil, DispatcherConfig{}, zerolog.Nop(), fixedClock{now: now})
	require.NoError(t, d.CancelDerived(context.Background(), "sig-match", now))

	gotMatch, err := store.Get(context.Background(), match.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, gotMatch.TrackingStatus())

	gotOther, err := store.Get(context.Background(), other.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, gotOther.TrackingStatus())
}

func TestDispatcher_ClusterSweep_AppliesBackpressureMinBraidSize(t *testing.T) {
	store := storage.NewMemoryStore()
	learning := NewLearningLoop(store, nil, nil, BackoffPolicy{}, nil, 2, 10, testBraidQualityGate(), zerolog.Nop())
	backpressure := NewBackpressureController(1, 1, 2, 8, 10)

	d := NewDispatcher(store, nil, nil, nil, learning, nil, backpressure, DispatcherConfig{BraidQueueHighWatermark: 1}, zerolog.Nop(), fixedClock{})

	d.ClusterSweep(context.Background())
	assert.Greater(t, learning.currentMinBraidSize(), 0)
}
