package websocket

import "github.com/smilemakc/cil/internal/domain"

// StrandObserver is notified whenever a strand is appended to or mutated in
// the store. ObservingStore calls these after a successful store write, so
// the components that write strands need not know about observers.
type StrandObserver interface {
	OnStrandAppended(s *domain.Strand)
	OnStrandUpdated(s *domain.Strand)
}

// SocketObserver implements StrandObserver and fans strand changes out to
// subscribed WebSocket clients through the Broadcaster interface.
type SocketObserver struct {
	hub Broadcaster
}

// NewSocketObserver creates a new SocketObserver.
func NewSocketObserver(hub Broadcaster) *SocketObserver {
	return &SocketObserver{hub: hub}
}

// OnStrandAppended broadcasts a strand.appended event.
func (so *SocketObserver) OnStrandAppended(s *domain.Strand) {
	so.hub.Broadcast(NewStrandEvent(EventStrandAppended, s))
}

// OnStrandUpdated broadcasts a strand.updated event.
func (so *SocketObserver) OnStrandUpdated(s *domain.Strand) {
	so.hub.Broadcast(NewStrandEvent(EventStrandUpdated, s))
}
