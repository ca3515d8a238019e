package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cil/internal/domain"
)

// mockBroadcaster is a mock implementation of the Broadcaster interface.
type mockBroadcaster struct {
	mu sync.Mutex
	events []*StrandEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{events: make([]*StrandEvent, 0)}
}

func (m *mockBroadcaster) Broadcast(event *StrandEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockBroadcaster) lastEvent() *StrandEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockBroadcaster) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestSocketObserver_ImplementsInterface(t *testing.T) {
	var _ StrandObserver = (*SocketObserver)(nil)
}

func TestNewSocketObserver(t *testing.T) {
	broadcaster := newMockBroadcaster()
	observer := NewSocketObserver(broadcaster)

	assert.NotNil(t, observer)
	assert.Equal(t, broadcaster, observer.hub)
}

func TestSocketObserver_OnStrandAppended(t *testing.T) {
	broadcaster := newMockBroadcaster()
	observer := NewSocketObserver(broadcaster)

	s := newFixtureStrand(t)
	observer.OnStrandAppended(s)

	event := broadcaster.lastEvent()
	require.NotNil(t, event)

	assert.Equal(t, EventStrandAppended, event.Type)
	assert.Equal(t, s.ID().String(), event.StrandID)
	assert.Equal(t, domain.KindPattern, event.Kind)
	assert.Equal(t, []string{"breakout", "momentum"}, event.Tags)
}

func TestSocketObserver_OnStrandUpdated(t *testing.T) {
	broadcaster := newMockBroadcaster()
	observer := NewSocketObserver(broadcaster)

	s := newFixtureStrand(t)
	observer.OnStrandUpdated(s)

	event := broadcaster.lastEvent()
	require.NotNil(t, event)

	assert.Equal(t, EventStrandUpdated, event.Type)
	assert.Equal(t, s.ID().String(), event.StrandID)
}

func TestSocketObserver_MultipleEvents(t *testing.T) {
	broadcaster := newMockBroadcaster()
	observer := NewSocketObserver(broadcaster)

	s := newFixtureStrand(t)
	observer.OnStrandAppended(s)
	observer.OnStrandUpdated(s)
	observer.OnStrandUpdated(s)

	assert.Equal(t, 3, broadcaster.eventCount())

	broadcaster.mu.Lock()
	events := broadcaster.events
	broadcaster.mu.Unlock()

	assert.Equal(t, EventStrandAppended, events[0].Type)
	assert.Equal(t, EventStrandUpdated, events[1].Type)
	assert.Equal(t, EventStrandUpdated, events[2].Type)
}

func TestSocketObserver_ConcurrentBroadcasts(t *testing.T) {
	broadcaster := newMockBroadcaster()
	observer := NewSocketObserver(broadcaster)
	s := newFixtureStrand(t)

	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				observer.OnStrandAppended(s)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, numGoroutines*eventsPerGoroutine, broadcaster.eventCount())
}

func TestSocketObserver_TimestampIsRecent(t *testing.T) {
	broadcaster := newMockBroadcaster()
	observer := NewSocketObserver(broadcaster)

	before := time.Now()
	observer.OnStrandAppended(newFixtureStrand(t))
	after := time.Now()

	event := broadcaster.lastEvent()
	require.NotNil(t, event)
	assert.True(t, !event.Timestamp.Before(before) && !event.Timestamp.After(after))
}
