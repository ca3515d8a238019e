package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/smilemakc/cil/internal/domain"
)

func newFixtureStrand(t *testing.T) *domain.Strand {
	t.Helper()
	content, err := domain.EncodeContent(domain.PatternContent{})
	require.NoError(t, err)
	s, err := domain.New(domain.Params{
			Kind: domain.KindPattern, BraidLevel: 1, Symbol: "BTCUSD", Timeframe: "1h",
			Content: content, Tags: []string{"breakout", "momentum"},
		}, time.Now())
	require.NoError(t, err)
	return s
}

func TestNewStrandEvent(t *testing.T) {
	s := newFixtureStrand(t)
	before := time.Now()
	event := NewStrandEvent(EventStrandAppended, s)
	after := time.Now()

	assert.Equal(t, EventStrandAppended, event.Type)
	assert.Equal(t, s.ID().String(), event.StrandID)
	assert.Equal(t, domain.KindPattern, event.Kind)
	assert.Equal(t, "BTCUSD", event.Symbol)
	assert.Equal(t, "1h", event.Timeframe)
	assert.Equal(t, []string{"breakout", "momentum"}, event.Tags)
	assert.True(t, !event.Timestamp.Before(before) && !event.Timestamp.After(after))
}

func TestStrandEvent_MsgpackRoundTrip(t *testing.T) {
	s := newFixtureStrand(t)
	event := NewStrandEvent(EventStrandAppended, s)

	data, err := msgpack.Marshal(event)
	require.NoError(t, err)

	var decoded StrandEvent
	require.NoError(t, msgpack.Unmarshal(data, &decoded))

	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, event.StrandID, decoded.StrandID)
	assert.Equal(t, event.Kind, decoded.Kind)
	assert.Equal(t, event.Tags, decoded.Tags)
}

func TestNewSuccessResponse(t *testing.T) {
	resp := newSuccessResponse(CmdSubscribe, "subscribed")
	assert.Equal(t, CmdSubscribe, resp.Type)
	assert.True(t, resp.Success)
	assert.Equal(t, "subscribed", resp.Message)
	assert.Empty(t, resp.Error)
}

func TestNewErrorResponse(t *testing.T) {
	resp := newErrorResponse(CmdSubscribe, "tags or kind required")
	assert.Equal(t, CmdSubscribe, resp.Type)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Message)
	assert.Equal(t, "tags or kind required", resp.Error)
}

func TestEventTypeConstants(t *testing.T) {
	assert.Equal(t, "strand.appended", EventStrandAppended)
	assert.Equal(t, "strand.updated", EventStrandUpdated)
}

func TestCommandTypeConstants(t *testing.T) {
	assert.Equal(t, "subscribe", CmdSubscribe)
	assert.Equal(t, "unsubscribe", CmdUnsubscribe)
}
