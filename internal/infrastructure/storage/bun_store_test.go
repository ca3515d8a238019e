package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cil/internal/domain"
	"github.com/smilemakc/cil/internal/infrastructure/storage"
)

// TestBunStore_AppendGetQuery exercises the Postgres-backed store end to
// end. It only runs when CIL_TEST_DSN points at a reachable database; CI
// without Postgres configured skips it rather than failing.
func TestBunStore_AppendGetQuery(t *testing.T) {
	dsn := os.Getenv("CIL_TEST_DSN")
	if dsn == "" {
		t.Skip("CIL_TEST_DSN not set, skipping Postgres-backed storage test")
	}

	store := storage.NewBunStore(dsn)
	ctx := context.Background()
	require.NoError(t, store.InitSchema(ctx))

	st, err := domain.New(domain.Params{
			Kind: domain.KindPattern,
			BraidLevel: 1,
			Symbol: "BTC-USD",
			Timeframe: "5m",
			Content: domain.Content{"pattern_type": "volume_spike", "strength": 0.9},
			Tags: []string{"cil:pattern"},
		}, time.Now().UTC())
	require.NoError(t, err)

	id, err := store.Append(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, st.ID(), id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", got.Symbol())
	assert.Equal(t, domain.KindPattern, got.Kind())

	out, err := store.Query(ctx, domain.QueryFilter{Kind: domain.KindPattern, Symbol: "BTC-USD", Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestBunStore_UpdateConsumed(t *testing.T) {
	dsn := os.Getenv("CIL_TEST_DSN")
	if dsn == "" {
		t.Skip("CIL_TEST_DSN not set, skipping Postgres-backed storage test")
	}

	store := storage.NewBunStore(dsn)
	ctx := context.Background()
	require.NoError(t, store.InitSchema(ctx))

	st, err := domain.New(domain.Params{
			Kind: domain.KindPredictionReview,
			BraidLevel: 1,
			Symbol: "BTC-USD",
			Content: domain.Content{"group_signature": "sig-1"},
			ClusterKey: domain.ClusterSlots{
				{ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", BraidLevel: 1},
			},
		}, time.Now().UTC())
	require.NoError(t, err)
	id, err := store.Append(ctx, st)
	require.NoError(t, err)

	key := domain.ClusterSlotKey{ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", BraidLevel: 1}
	require.NoError(t, store.UpdateConsumed(ctx, id, key))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	slot, ok := got.ClusterKey().Find(key)
	require.True(t, ok)
	assert.True(t, slot.Consumed)
}
