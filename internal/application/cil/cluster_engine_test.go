package cil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cil/internal/domain"
	"github.com/smilemakc/cil/internal/infrastructure/storage"
)

func appendReview(t *testing.T, s domain.StrandStore, now time.Time, symbol, groupSignature, groupCode string, realizedReturn float64, method domain.PredictionMethod) *domain.Strand {
	t.Helper()
	content, err := domain.EncodeContent(domain.PredictionReviewContent{
			GroupSignature: groupSignature, GroupCode: groupCode, Method: method,
			Outcome: domain.Outcome{RealizedReturn: realizedReturn},
	})
	require.NoError(t, err)
	r, err := domain.New(domain.Params{Kind: domain.KindPredictionReview, BraidLevel: 1, Symbol: symbol, Timeframe: "1h", Content: content}, now)
	require.NoError(t, err)
	id, err := s.Append(context.Background(), r)
	require.NoError(t, err)
	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

func TestClusterEngine_Assign_Level1ReviewGetsAllSevenFamilies(t *testing.T) {
	s := storage.NewMemoryStore()
	now := time.Now()
	r := appendReview(t, s, now, "BTC-USD", "sig-1", string(GroupCodeA), 5, domain.MethodCode)

	c := NewClusterEngine(s, 0)
	require.NoError(t, c.Assign(context.Background(), r))

	got, err := s.Get(context.Background(), r.ID())
	require.NoError(t, err)
	assert.Len(t, got.ClusterKey(), 7, "a level-1 review must receive one slot per cluster family")
}

func TestClusterEngine_Assign_IdempotentOnRepeatedCalls(t *testing.T) {
	s := storage.NewMemoryStore()
	now := time.Now()
	r := appendReview(t, s, now, "BTC-USD", "sig-1", string(GroupCodeA), 5, domain.MethodCode)

	c := NewClusterEngine(s, 0)
	require.NoError(t, c.Assign(context.Background(), r))

	got, err := s.Get(context.Background(), r.ID())
	require.NoError(t, err)
	require.NoError(t, c.Assign(context.Background(), got))

	again, err := s.Get(context.Background(), r.ID())
	require.NoError(t, err)
	assert.Len(t, again.ClusterKey(), 7, "re-running assignment on the same review must not duplicate slots")
}

func TestClusterEngine_Assign_OutcomeFamilySplitsOnSuccessThreshold(t *testing.T) {
	s := storage.NewMemoryStore()
	now := time.Now()
	win := appendReview(t, s, now, "BTC-USD", "sig-win", string(GroupCodeA), 10, domain.MethodCode)
	loss := appendReview(t, s, now, "BTC-USD", "sig-loss", string(GroupCodeA), -10, domain.MethodCode)

	c := NewClusterEngine(s, 1)
	require.NoError(t, c.Assign(context.Background(), win))
	require.NoError(t, c.Assign(context.Background(), loss))

	winGot, err := s.Get(context.Background(), win.ID())
	require.NoError(t, err)
	lossGot, err := s.Get(context.Background(), loss.ID())
	require.NoError(t, err)

	assert.True(t, winGot.ClusterKey().HasKey(domain.ClusterSlotKey{ClusterType: domain.ClusterOutcome, ClusterKey: "success", BraidLevel: 1}))
	assert.True(t, lossGot.ClusterKey().HasKey(domain.ClusterSlotKey{ClusterType: domain.ClusterOutcome, ClusterKey: "failure", BraidLevel: 1}))
}

func TestClusterEngine_Assign_BraidInheritsSingleOriginatingFamily(t *testing.T) {
	s := storage.NewMemoryStore()
	now := time.Now()

	content, err := domain.EncodeContent(domain.LearningBraidContent{
			ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", MemberCount: 5, SuccessRate: 0.6,
	})
	require.NoError(t, err)
	braid, err := domain.New(domain.Params{Kind: domain.KindPredictionReview, BraidLevel: 2, Symbol: "BTC-USD", Timeframe: "1h", Content: content}, now)
	require.NoError(t, err)
	id, err := s.Append(context.Background(), braid)
	require.NoError(t, err)

	c := NewClusterEngine(s, 0)
	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, c.Assign(context.Background(), got))

	final, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, final.ClusterKey(), 1, "a braid re-enters clustering through exactly the one family it was synthesized from")
	assert.Equal(t, domain.ClusterAsset, final.ClusterKey()[0].ClusterType)
	assert.Equal(t, "BTC-USD", final.ClusterKey()[0].ClusterKey)
}

// TestClusterEngine_Assign_IndependentFamiliesFromSamePool mirrors the
// scenario where the same pool of reviews braids independently across
// asset, outcome, and method families: consuming the slot for one family
// must leave the other families' slots on the very same strands untouched
// and still queryable.
func TestClusterEngine_Assign_IndependentFamiliesFromSamePool(t *testing.T) {
	s := storage.NewMemoryStore()
	now := time.Now()
	c := NewClusterEngine(s, 0)

	var reviews []*domain.Strand
	for i := 0; i < 5; i++ {
		r := appendReview(t, s, now, "BTC-USD", "sig-shared", string(GroupCodeA), 5, domain.MethodCode)
		require.NoError(t, c.Assign(context.Background(), r))
		got, err := s.Get(context.Background(), r.ID())
		require.NoError(t, err)
		reviews = append(reviews, got)
	}

	assetSlot := domain.ClusterSlotKey{ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD", BraidLevel: 1}
	for _, r := range reviews {
		require.NoError(t, s.UpdateConsumed(context.Background(), r.ID(), assetSlot))
	}

	outcomeKey := domain.ClusterSlotKey{ClusterType: domain.ClusterOutcome, ClusterKey: "success", BraidLevel: 1}
	methodKey := domain.ClusterSlotKey{ClusterType: domain.ClusterMethod, ClusterKey: domain.MethodCode.String(), BraidLevel: 1}

	for _, r := range reviews {
		got, err := s.Get(context.Background(), r.ID())
		require.NoError(t, err)

		for _, slot := range got.ClusterKey() {
			if slot.Key() == assetSlot {
				assert.True(t, slot.Consumed, "the asset slot was consumed and must report as such")
			}
		}
		assert.True(t, got.ClusterKey().HasKey(outcomeKey), "the outcome family's slot must remain independently present")
		assert.True(t, got.ClusterKey().HasKey(methodKey), "the method family's slot must remain independently present")
	}

	unconsumedOutcome := 1
	eligible, err := s.Query(context.Background(), domain.QueryFilter{
			Kind: domain.KindPredictionReview, ClusterType: domain.ClusterOutcome, ClusterKey: "success",
			BraidLevel: 1, UnconsumedAt: &unconsumedOutcome,
	})
	require.NoError(t, err)
	assert.Len(t, eligible, 5, "consuming the asset family's slots must not touch the outcome family's unconsumed state")

	unconsumedAsset := 1
	stillEligible, err := s.Query(context.Background(), domain.QueryFilter{
			Kind: domain.KindPredictionReview, ClusterType: domain.ClusterAsset, ClusterKey: "BTC-USD",
			BraidLevel: 1, UnconsumedAt: &unconsumedAsset,
	})
	require.NoError(t, err)
	assert.Empty(t, stillEligible, "the consumed asset family must no longer surface as braid-eligible")
}
