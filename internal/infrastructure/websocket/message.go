package websocket

import (
	"time"

	"github.com/smilemakc/cil/internal/domain"
)

// Event types (server -> client)
const (
	EventStrandAppended = "strand.appended"
	EventStrandUpdated = "strand.updated"
)

// Command types (client -> server)
const (
	CmdSubscribe = "subscribe"
	CmdUnsubscribe = "unsubscribe"
)

// StrandEvent represents a strand change fanned out to subscribed clients.
// It carries enough of the strand's identity and classification for a client
// to decide whether to fetch the full record over the REST query surface.
type StrandEvent struct {
	Type string `msgpack:"type" json:"type"`
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
	StrandID string `msgpack:"strand_id" json:"strand_id"`
	Kind domain.Kind `msgpack:"kind" json:"kind"`
	BraidLevel int `msgpack:"braid_level" json:"braid_level"`
	Symbol string `msgpack:"symbol,omitempty" json:"symbol,omitempty"`
	Timeframe string `msgpack:"timeframe,omitempty" json:"timeframe,omitempty"`
	Tags []string `msgpack:"tags,omitempty" json:"tags,omitempty"`
}

// NewStrandEvent builds a StrandEvent describing s.
func NewStrandEvent(eventType string, s *domain.Strand) *StrandEvent {
	return &StrandEvent{
		Type: eventType,
		Timestamp: time.Now(),
		StrandID: s.ID().String(),
		Kind: s.Kind(),
		BraidLevel: s.BraidLevel(),
		Symbol: s.Symbol(),
		Timeframe: s.Timeframe(),
		Tags: s.Tags(),
	}
}

// WSCommand represents a command sent from client to server, as plain JSON
// text frames (commands are low-frequency; only the strand fan-out itself
// needs the compact msgpack wire format).
type WSCommand struct {
	Action string `json:"action"`
	Tags []string `json:"tags,omitempty"`
	Kind string `json:"kind,omitempty"`
}

// WSResponse represents a response to a client command.
type WSResponse struct {
	Type string `json:"type"`
	Success bool `json:"success"`
	Message string `json:"message,omitempty"`
	Error string `json:"error,omitempty"`
}

func newSuccessResponse(responseType, message string) *WSResponse {
	return &WSResponse{Type: responseType, Success: true, Message: message}
}

func newErrorResponse(responseType, errorMsg string) *WSResponse {
	return &WSResponse{Type: responseType, Success: false, Error: errorMsg}
}
