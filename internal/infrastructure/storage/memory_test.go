package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

func newTestPattern(t *testing.T, symbol string) *domain.Strand {
	t.Helper()
	st, err := domain.New(domain.Params{
			Kind: domain.KindPattern,
			BraidLevel: 1,
			Symbol: symbol,
			Timeframe: "5m",
			Content: domain.Content{"pattern_type": "divergence", "strength": 0.8},
			Tags: []string{"cil:pattern"},
		}, time.Now().UTC())
	require.NoError(t, err)
	return st
}

func TestMemoryStore_AppendAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	st := newTestPattern(t, "BTC-USD")
	id, err := s.Append(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, st.ID(), id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", got.Symbol())
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), uuid.New())
	assert.True(t, domerrors.Is(err, domerrors.CodeNotFound))
}

func TestMemoryStore_Query_FiltersBySymbolAndKind(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := newTestPattern(t, "BTC-USD")
	b := newTestPattern(t, "ETH-USD")
	_, _ = s.Append(ctx, a)
	_, _ = s.Append(ctx, b)

	out, err := s.Query(ctx, domain.QueryFilter{Kind: domain.KindPattern, Symbol: "BTC-USD"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a.ID(), out[0].ID())
}

func TestMemoryStore_UpdateConsumed_FlipsOnlyMatchingSlot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	st, err := domain.New(domain.Params{
			Kind: domain.KindPredictionReview,
			BraidLevel: 1,
			Symbol: "BTC-USD",
			Content: domain.Content{"group_signature": "sig-1"},
			ClusterKey: domain.ClusterSlots{
				{ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", BraidLevel: 1},
				{ClusterType: domain.ClusterTimeframe, ClusterKey: "5m", BraidLevel: 1},
			},
		}, time.Now().UTC())
	require.NoError(t, err)
	id, _ := s.Append(ctx, st)

	key := domain.ClusterSlotKey{ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", BraidLevel: 1}
	require.NoError(t, s.UpdateConsumed(ctx, id, key))

	got, _ := s.Get(ctx, id)
	assetSlot, _ := got.ClusterKey().Find(key)
	assert.True(t, assetSlot.Consumed)

	tfSlot, _ := got.ClusterKey().Find(domain.ClusterSlotKey{ClusterType: domain.ClusterTimeframe, ClusterKey: "5m", BraidLevel: 1})
	assert.False(t, tfSlot.Consumed)
}

func TestMemoryStore_UpdateConsumed_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	st := newTestPattern(t, "BTC-USD")
	id, _ := s.Append(ctx, st)

	err := s.UpdateConsumed(ctx, id, domain.ClusterSlotKey{ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", BraidLevel: 1})
	assert.True(t, domerrors.Is(err, domerrors.CodeNotFound))
}

func TestMemoryStore_UpdateMutableFields_TrackingStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	st, err := domain.New(domain.Params{
			Kind: domain.KindPrediction,
			BraidLevel: 1,
			Symbol: "BTC-USD",
			Content: domain.Content{"group_signature": "sig-1"},
		}, time.Now().UTC())
	require.NoError(t, err)
	id, _ := s.Append(ctx, st)

	completed := domain.StatusCompleted
	require.NoError(t, s.UpdateMutableFields(ctx, id, domain.MutablePatch{TrackingStatus: &completed}))

	got, _ := s.Get(ctx, id)
	assert.Equal(t, domain.StatusCompleted, got.TrackingStatus())
}
