package websocket

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/smilemakc/cil/internal/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel)
}

func newTestClient(id string) *Client {
	return &Client{
		id: id,
		subs: NewSubscriptions(),
		send: make(chan *StrandEvent, sendBufferSize),
	}
}

func testEvent(kind domain.Kind, tags ...string) *StrandEvent {
	return &StrandEvent{Type: EventStrandAppended, Timestamp: time.Now(), StrandID: "s-1", Kind: kind, Tags: tags}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.byTag)
	assert.NotNil(t, hub.byKind)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_RegisterAndUnregisterClient(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := newTestClient("client-1")
	client.hub = hub

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_SubscribeAndUnsubscribeByTag(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("client-1")
	client.hub = hub

	hub.Subscribe(client, []string{"breakout"}, "")

	hub.mu.RLock()
	_, ok := hub.byTag["breakout"][client]
	hub.mu.RUnlock()
	assert.True(t, ok)

	hub.Unsubscribe(client, []string{"breakout"}, "")

	hub.mu.RLock()
	_, ok = hub.byTag["breakout"]
	hub.mu.RUnlock()
	assert.False(t, ok)
}

func TestHub_SubscribeAndUnsubscribeByKind(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("client-1")
	client.hub = hub

	hub.Subscribe(client, nil, string(domain.KindPrediction))

	hub.mu.RLock()
	_, ok := hub.byKind[string(domain.KindPrediction)][client]
	hub.mu.RUnlock()
	assert.True(t, ok)

	hub.Unsubscribe(client, nil, string(domain.KindPrediction))

	hub.mu.RLock()
	_, ok = hub.byKind[string(domain.KindPrediction)]
	hub.mu.RUnlock()
	assert.False(t, ok)
}

func TestHub_BroadcastToTagSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client1 := newTestClient("client-1")
	client1.hub = hub
	client2 := newTestClient("client-2")
	client2.hub = hub

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(client1, []string{"breakout"}, "")
	hub.Subscribe(client2, []string{"reversal"}, "")

	hub.Broadcast(testEvent(domain.KindPattern, "breakout"))

	select {
		case received := <-client1.send:
			assert.Equal(t, EventStrandAppended, received.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("client1 did not receive event")
	}

	select {
		case <-client2.send:
			t.Fatal("client2 should not receive event for a different tag")
		case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastToKindSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client := newTestClient("client-1")
	client.hub = hub
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(client, nil, string(domain.KindPrediction))
	hub.Broadcast(testEvent(domain.KindPrediction))

	select {
		case received := <-client.send:
			assert.Equal(t, domain.KindPrediction, received.Kind)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("client did not receive event")
	}
}

func TestHub_UnsubscribedClientReceivesEverything(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client := newTestClient("client-1")
	client.hub = hub
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(testEvent(domain.KindLearningBraid, "anything"))

	select {
		case received := <-client.send:
			assert.Equal(t, domain.KindLearningBraid, received.Kind)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("unsubscribed client should receive all events")
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, hub.ClientCount())
	for i := 0; i < 3; i++ {
		client := newTestClient("client")
		client.hub = hub
		hub.register <- client
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, hub.ClientCount())
}

func TestHub_UnregisterCleansUpSubscriptions(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client := newTestClient("client-1")
	client.hub = hub
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(client, []string{"breakout"}, string(domain.KindPattern))

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	_, tagExists := hub.byTag["breakout"]
	_, kindExists := hub.byKind[string(domain.KindPattern)]
	hub.mu.RUnlock()
	assert.False(t, tagExists)
	assert.False(t, kindExists)
}

func TestHub_BroadcasterInterface(t *testing.T) {
	var _ Broadcaster = NewHub(testLogger())
}

func TestHub_UnsubscribePreservesOtherSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	client1 := newTestClient("client-1")
	client1.hub = hub
	client2 := newTestClient("client-2")
	client2.hub = hub

	hub.Subscribe(client1, []string{"breakout"}, "")
	hub.Subscribe(client2, []string{"breakout"}, "")

	hub.Unsubscribe(client1, []string{"breakout"}, "")

	hub.mu.RLock()
	_, client2Ok := hub.byTag["breakout"][client2]
	hub.mu.RUnlock()
	assert.True(t, client2Ok)
}

func TestNewSubscriptions(t *testing.T) {
	subs := NewSubscriptions()
	assert.NotNil(t, subs)
	assert.True(t, subs.empty())
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- newTestClient("unknown")
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, hub.ClientCount())
}
